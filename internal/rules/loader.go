package rules

import (
	"encoding/json"
	"fmt"
)

// RuleFileError carries the offending fragment of a malformed rule document.
// The loader never partially accepts a rule file: any structural problem
// aborts the whole load.
type RuleFileError struct {
	Reason    string
	Fragment  string
}

func (e *RuleFileError) Error() string {
	return fmt.Sprintf("invalid rule file: %s: %s", e.Reason, e.Fragment)
}

type ruleDocument struct {
	SourceRules    []json.RawMessage `json:"source_rules"`
	TraversalRules []json.RawMessage `json:"traversal_rules"`
}

type traversalRuleEnvelope struct {
	Type   string            `json:"type"`
	Values []json.RawMessage `json:"values"`
}

// Load parses raw JSON rule-file bytes into a strongly-typed RuleSet.
func Load(data []byte) (*RuleSet, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &RuleFileError{Reason: "not valid JSON", Fragment: err.Error()}
	}
	if extra := extraKeys(doc, "source_rules", "traversal_rules"); len(extra) > 0 {
		return nil, &RuleFileError{Reason: "unexpected top-level key", Fragment: fmt.Sprint(extra)}
	}

	var parsed ruleDocument
	if raw, ok := doc["source_rules"]; ok {
		if err := json.Unmarshal(raw, &parsed.SourceRules); err != nil {
			return nil, &RuleFileError{Reason: "source_rules must be an array", Fragment: string(raw)}
		}
	}
	if raw, ok := doc["traversal_rules"]; ok {
		if err := json.Unmarshal(raw, &parsed.TraversalRules); err != nil {
			return nil, &RuleFileError{Reason: "traversal_rules must be an array", Fragment: string(raw)}
		}
	}

	sourceRules, err := parseSourceRules(parsed.SourceRules)
	if err != nil {
		return nil, err
	}

	tableRules, dataRules, err := parseTraversalRules(parsed.TraversalRules)
	if err != nil {
		return nil, err
	}

	return &RuleSet{
		SourceRules:     sourceRules,
		TableGraphRules: tableRules,
		DataGraphRules:  dataRules,
	}, nil
}

func parseSourceRules(entries []json.RawMessage) ([]SourceRule, error) {
	seen := make(map[string]bool, len(entries))
	rules := make([]SourceRule, 0, len(entries))

	for _, raw := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &RuleFileError{Reason: "source_rules entry must be an object", Fragment: string(raw)}
		}
		if extra := extraKeys(fields, "table", "where"); len(extra) > 0 {
			return nil, &RuleFileError{Reason: "source_rules entry has unexpected keys", Fragment: string(raw)}
		}

		var r SourceRule
		if err := requireString(fields, "table", &r.Table); err != nil {
			return nil, &RuleFileError{Reason: "source_rules entry missing table", Fragment: string(raw)}
		}
		if err := requireString(fields, "where", &r.Where); err != nil {
			return nil, &RuleFileError{Reason: "source_rules entry missing where", Fragment: string(raw)}
		}

		if seen[r.Table] {
			return nil, &RuleFileError{Reason: "duplicate source rule table", Fragment: r.Table}
		}
		seen[r.Table] = true

		rules = append(rules, r)
	}

	return rules, nil
}

func parseTraversalRules(entries []json.RawMessage) ([]TableGraphRule, map[string]TableDataRules, error) {
	var tableRules []TableGraphRule
	dataRules := make(map[string]TableDataRules)

	for _, raw := range entries {
		var env traversalRuleEnvelope
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, nil, &RuleFileError{Reason: "traversal_rules entry must be an object", Fragment: string(raw)}
		}
		if extra := extraKeys(fields, "type", "values"); len(extra) > 0 {
			return nil, nil, &RuleFileError{Reason: "traversal_rules entry has unexpected keys", Fragment: string(raw)}
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, nil, &RuleFileError{Reason: "malformed traversal_rules entry", Fragment: string(raw)}
		}

		ruleType := RuleType(env.Type)
		if ruleType != NoEnter && ruleType != NoExit && ruleType != LimitDistance {
			return nil, nil, &RuleFileError{Reason: "unknown traversal rule type", Fragment: env.Type}
		}

		for _, rawValue := range env.Values {
			var valueFields map[string]json.RawMessage
			if err := json.Unmarshal(rawValue, &valueFields); err != nil {
				return nil, nil, &RuleFileError{Reason: "traversal rule value must be an object", Fragment: string(rawValue)}
			}

			var table string
			if err := requireString(valueFields, "table", &table); err != nil {
				return nil, nil, &RuleFileError{Reason: "traversal rule value missing table", Fragment: string(rawValue)}
			}

			if _, hasWhere := valueFields["where"]; hasWhere {
				if ruleType == LimitDistance {
					return nil, nil, &RuleFileError{Reason: "limit_distance does not support where", Fragment: string(rawValue)}
				}
				if extra := extraKeys(valueFields, "table", "where"); len(extra) > 0 {
					return nil, nil, &RuleFileError{Reason: "data-graph rule value has unexpected keys", Fragment: string(rawValue)}
				}
				var where string
				if err := requireString(valueFields, "where", &where); err != nil {
					return nil, nil, &RuleFileError{Reason: "data-graph rule value missing where", Fragment: string(rawValue)}
				}
				td := dataRules[table]
				rule := DataGraphRule{Type: ruleType, Table: table, Where: where}
				switch ruleType {
				case NoEnter:
					td.NoEnter = append(td.NoEnter, rule)
				case NoExit:
					td.NoExit = append(td.NoExit, rule)
				}
				dataRules[table] = td
				continue
			}

			allowed := []string{"table"}
			if ruleType == LimitDistance {
				allowed = append(allowed, "max_distance")
			}
			if extra := extraKeys(valueFields, allowed...); len(extra) > 0 {
				return nil, nil, &RuleFileError{Reason: "table-graph rule value has unexpected keys", Fragment: string(rawValue)}
			}

			tr := TableGraphRule{Type: ruleType, Table: table}
			if ruleType == LimitDistance {
				if raw, ok := valueFields["max_distance"]; ok {
					if err := json.Unmarshal(raw, &tr.MaxDistance); err != nil {
						return nil, nil, &RuleFileError{Reason: "max_distance must be an integer", Fragment: string(raw)}
					}
				}
			}
			tableRules = append(tableRules, tr)
		}
	}

	return tableRules, dataRules, nil
}

func requireString(fields map[string]json.RawMessage, key string, out *string) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("missing key %q", key)
	}
	return json.Unmarshal(raw, out)
}

func extraKeys(fields map[string]json.RawMessage, allowed ...string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	var extra []string
	for k := range fields {
		if !allowedSet[k] {
			extra = append(extra, k)
		}
	}
	return extra
}
