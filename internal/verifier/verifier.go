// Package verifier provides post-copy data integrity verification for
// pgrelay, comparing rows already staged behind the FDW bridge against what
// landed in the target schema.
package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

// Method selects how a table is verified.
type Method string

const (
	// MethodCount compares row counts only (fast).
	MethodCount Method = "count"
	// MethodSHA256 compares a row-order-independent hash of every column (slower, thorough).
	MethodSHA256 Method = "sha256"
	// MethodSkip performs no verification.
	MethodSkip Method = "skip"
)

// Result holds the verification outcome for a single table.
type Result struct {
	Table        string
	Method       Method
	SourceCount  int64
	TargetCount  int64
	SourceHash   string
	TargetHash   string
	Match        bool
	ErrorMessage string
}

// Stats summarizes a full verification run.
type Stats struct {
	TablesVerified int
	TablesPassed   int
	TablesFailed   int
	TotalRows      int64
	Method         Method
}

// Verifier compares rows reachable through the FDW remote schema against
// the target schema, within the target-side transaction it is bound to —
// it never opens a second connection to the source.
type Verifier struct {
	tx            pgx.Tx
	remoteSchema  string
	targetSchema  string
	method        Method
}

// New creates a Verifier bound to tx, comparing remoteSchema (the FDW
// import) against targetSchema using method. An empty method defaults to
// MethodCount.
func New(tx pgx.Tx, remoteSchema, targetSchema string, method Method) *Verifier {
	if method == "" {
		method = MethodCount
	}
	return &Verifier{tx: tx, remoteSchema: remoteSchema, targetSchema: targetSchema, method: method}
}

// VerifySourceRules verifies every source-rule table's WHERE-filtered row
// set: the set of rows the walk was seeded from, which must land in the
// target unchanged in count (and, for MethodSHA256, in content). This
// supplements §8's invariants with an operational check rather than adding
// a new one — it does not attempt to verify rows reached only transitively
// through traversal, since those have no single WHERE predicate to re-apply.
func (v *Verifier) VerifySourceRules(ctx context.Context, ruleSet *rules.RuleSet) (*Stats, error) {
	stats := &Stats{Method: v.method}

	if v.method == MethodSkip {
		return stats, nil
	}

	for _, sr := range ruleSet.SourceRules {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		result, err := v.verifyTable(ctx, sr.Table, sr.Where)
		if err != nil {
			return stats, fmt.Errorf("verify table %s: %w", sr.Table, err)
		}

		stats.TablesVerified++
		stats.TotalRows += result.SourceCount
		if result.Match {
			stats.TablesPassed++
		} else {
			stats.TablesFailed++
			return stats, fmt.Errorf("verification mismatch in table %s: %s", sr.Table, result.ErrorMessage)
		}
	}

	if stats.TablesFailed > 0 {
		return stats, fmt.Errorf("verification failed: %d tables had mismatches", stats.TablesFailed)
	}
	return stats, nil
}

func (v *Verifier) verifyTable(ctx context.Context, table, where string) (*Result, error) {
	switch v.method {
	case MethodCount:
		return v.verifyByCount(ctx, table, where)
	case MethodSHA256:
		return v.verifyBySHA256(ctx, table, where)
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", v.method)
	}
}

func (v *Verifier) verifyByCount(ctx context.Context, table, where string) (*Result, error) {
	sourceCount, err := v.count(ctx, v.remoteSchema, table, where)
	if err != nil {
		return nil, fmt.Errorf("count source: %w", err)
	}
	targetCount, err := v.count(ctx, v.targetSchema, table, where)
	if err != nil {
		return nil, fmt.Errorf("count target: %w", err)
	}

	result := &Result{
		Table:       table,
		Method:      MethodCount,
		SourceCount: sourceCount,
		TargetCount: targetCount,
		Match:       sourceCount == targetCount,
	}
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: source=%d, target=%d", sourceCount, targetCount)
	}
	return result, nil
}

func (v *Verifier) count(ctx context.Context, schema, table, where string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, sqlident.QuoteQualified(schema, table), where)
	var n int64
	if err := v.tx.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (v *Verifier) verifyBySHA256(ctx context.Context, table, where string) (*Result, error) {
	sourceHash, sourceCount, err := v.hashTable(ctx, v.remoteSchema, table, where)
	if err != nil {
		return nil, fmt.Errorf("hash source: %w", err)
	}
	targetHash, targetCount, err := v.hashTable(ctx, v.targetSchema, table, where)
	if err != nil {
		return nil, fmt.Errorf("hash target: %w", err)
	}

	result := &Result{
		Table:       table,
		Method:      MethodSHA256,
		SourceCount: sourceCount,
		TargetCount: targetCount,
		SourceHash:  sourceHash,
		TargetHash:  targetHash,
		Match:       sourceHash == targetHash && sourceCount == targetCount,
	}
	if !result.Match {
		if sourceCount != targetCount {
			result.ErrorMessage = fmt.Sprintf("count mismatch: source=%d, target=%d", sourceCount, targetCount)
		} else {
			result.ErrorMessage = fmt.Sprintf("hash mismatch: source=%s, target=%s", sourceHash[:16], targetHash[:16])
		}
	}
	return result, nil
}

// hashTable computes a row-order-independent SHA256 over every column of
// every row matching where: each row hashes to its own digest, and those
// digests are XORed together, so the result doesn't depend on the order
// postgres_fdw or the target happen to return rows in.
func (v *Verifier) hashTable(ctx context.Context, schema, table, where string) (string, int64, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s`, sqlident.QuoteQualified(schema, table), where)
	rows, err := v.tx.Query(ctx, query)
	if err != nil {
		return "", 0, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var combined [sha256.Size]byte
	var total int64

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("hash computation interrupted: %w", err)
		}
		values, err := rows.Values()
		if err != nil {
			return "", 0, err
		}
		rowHash := sha256.Sum256([]byte(serializeRow(columns, values)))
		for i := range combined {
			combined[i] ^= rowHash[i]
		}
		total++
	}
	if err := rows.Err(); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(combined[:]), total, nil
}

// serializeRow renders columns/values as "col=value\x00col=value..." — a
// null byte separator avoids ambiguity with values that contain commas.
func serializeRow(columns []string, values []interface{}) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		var valStr string
		switch val := values[i].(type) {
		case nil:
			valStr = "NULL"
		case []byte:
			valStr = string(val)
		default:
			valStr = fmt.Sprintf("%v", val)
		}
		parts[i] = col + "=" + valStr
	}
	return strings.Join(parts, "\x00")
}
