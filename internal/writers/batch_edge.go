package writers

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsmedya/pgrelay/internal/config"
	"github.com/dbsmedya/pgrelay/internal/dbconn"
	"github.com/dbsmedya/pgrelay/internal/fdw"
	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/sqlident"
)

// BatchEdgeWriter copies whole edges at a time: given a relation edge, it
// diffs the target-vs-remote primary-key sets and inserts only the rows the
// target doesn't already have (§4.4.3). Used by the table walker.
type BatchEdgeWriter struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	txn     *dbconn.WriteTxn
	session *fdw.Session
}

// NewBatchEdgeWriter creates a BatchEdgeWriter bound to cfg, writing through pool.
func NewBatchEdgeWriter(cfg *config.Config, pool *pgxpool.Pool) *BatchEdgeWriter {
	return &BatchEdgeWriter{cfg: cfg, pool: pool}
}

// Begin opens the target write transaction and bootstraps the FDW bridge.
func (w *BatchEdgeWriter) Begin(ctx context.Context) error {
	txn, err := dbconn.BeginWrite(ctx, w.pool, "")
	if err != nil {
		return err
	}
	session, err := fdw.Bootstrap(ctx, txn.Tx(), w.cfg.Source, w.cfg.FDW, w.cfg.Schemas)
	if err != nil {
		_ = txn.Rollback(ctx)
		return fmt.Errorf("bootstrap FDW: %w", err)
	}
	w.txn = txn
	w.session = session
	return nil
}

// WriteTableWhere seeds the target with every row of the remote table
// matching where — used to copy a source-rule table's full matching rows
// before walking its edges.
func (w *BatchEdgeWriter) WriteTableWhere(ctx context.Context, table pgmeta.TableInfo, where string) error {
	targetTbl := sqlident.QuoteQualified(w.cfg.Schemas.Target, table.Name)
	remoteTbl := sqlident.QuoteQualified(w.session.RemoteSchema, table.Name)

	conflict, err := onConflictClause(table)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s SELECT * FROM %s WHERE %s %s`, targetTbl, remoteTbl, where, conflict)
	if _, err := w.txn.Tx().Exec(ctx, query); err != nil {
		return fmt.Errorf("seed table %s: %w", table.Name, err)
	}
	return nil
}

// WriteEdge implements copy_related_table: it finds every row on the remote
// side reachable from an already-copied row of edge.SourceTable, subtracts
// the target's existing primary keys, and copies only what's new. It returns
// the number of newly inserted rows.
func (w *BatchEdgeWriter) WriteEdge(ctx context.Context, edge graph.RelationEdge, targetTable pgmeta.TableInfo) (int, error) {
	if len(targetTable.PrimaryKey) == 0 {
		return 0, fmt.Errorf("table %s has no primary key; batch edge copy requires one", targetTable.Name)
	}

	srcRows, err := w.sourceKeyValues(ctx, edge)
	if err != nil {
		return 0, err
	}
	if len(srcRows) == 0 {
		return 0, nil
	}

	newPKs, err := w.remoteKeysNotYetLocal(ctx, edge, targetTable, srcRows)
	if err != nil {
		return 0, err
	}
	if len(newPKs) == 0 {
		return 0, nil
	}

	if err := w.copyRows(ctx, edge.TargetTable, targetTable, newPKs); err != nil {
		return 0, err
	}
	return len(newPKs), nil
}

// sourceKeyValues reads edge.SourceKey from the already-copied target-side
// edge.SourceTable, skipping rows with any null key column.
func (w *BatchEdgeWriter) sourceKeyValues(ctx context.Context, edge graph.RelationEdge) ([][]interface{}, error) {
	cols := quoteAll(edge.SourceKey)
	var notNull []string
	for _, c := range cols {
		notNull = append(notNull, c+" IS NOT NULL")
	}
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s`,
		strings.Join(cols, ", "),
		sqlident.QuoteQualified(w.cfg.Schemas.Target, edge.SourceTable),
		strings.Join(notNull, " AND "),
	)

	rows, err := w.txn.Tx().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read source keys of %s: %w", edge.SourceTable, err)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// remoteKeysNotYetLocal resolves edge.TargetKey tuples matching srcRows on
// the remote side, then subtracts the target table's existing primary keys.
func (w *BatchEdgeWriter) remoteKeysNotYetLocal(ctx context.Context, edge graph.RelationEdge, targetTable pgmeta.TableInfo, srcRows [][]interface{}) ([][]interface{}, error) {
	tupleClause, args := tupleInClause(edge.TargetKey, srcRows)

	remoteQuery := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s`,
		strings.Join(quoteAll(targetTable.PrimaryKey), ", "),
		sqlident.QuoteQualified(w.session.RemoteSchema, edge.TargetTable),
		tupleClause,
	)
	remoteRows, err := w.txn.Tx().Query(ctx, remoteQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve remote keys of %s: %w", edge.TargetTable, err)
	}
	remotePKs, err := collectTuples(remoteRows)
	if err != nil {
		return nil, err
	}

	localQuery := fmt.Sprintf(
		`SELECT %s FROM %s`,
		strings.Join(quoteAll(targetTable.PrimaryKey), ", "),
		sqlident.QuoteQualified(w.cfg.Schemas.Target, targetTable.Name),
	)
	localRows, err := w.txn.Tx().Query(ctx, localQuery)
	if err != nil {
		return nil, fmt.Errorf("read existing keys of %s: %w", targetTable.Name, err)
	}
	localPKs, err := collectTuples(localRows)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(localPKs))
	for _, t := range localPKs {
		existing[tupleKey(t)] = true
	}

	var fresh [][]interface{}
	for _, t := range remotePKs {
		if !existing[tupleKey(t)] {
			fresh = append(fresh, t)
		}
	}
	return fresh, nil
}

func (w *BatchEdgeWriter) copyRows(ctx context.Context, sourceTableName string, targetTable pgmeta.TableInfo, newPKs [][]interface{}) error {
	tupleClause, args := tupleInClause(targetTable.PrimaryKey, newPKs)

	conflict, err := onConflictClause(targetTable)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s SELECT * FROM %s WHERE %s %s`,
		sqlident.QuoteQualified(w.cfg.Schemas.Target, targetTable.Name),
		sqlident.QuoteQualified(w.session.RemoteSchema, sourceTableName),
		tupleClause, conflict,
	)
	if _, err := w.txn.Tx().Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("copy new rows of %s: %w", targetTable.Name, err)
	}
	return nil
}

// Commit tears down the FDW bridge, then commits the write transaction.
func (w *BatchEdgeWriter) Commit(ctx context.Context) error {
	if err := fdw.Teardown(ctx, w.txn.Tx(), w.cfg.Schemas); err != nil {
		_ = w.txn.Rollback(ctx)
		return err
	}
	return w.txn.Commit(ctx)
}

// Rollback aborts the write transaction, dropping any FDW objects with it.
func (w *BatchEdgeWriter) Rollback(ctx context.Context) error {
	return w.txn.Rollback(ctx)
}

func collectTuples(rows pgx.Rows) ([][]interface{}, error) {
	defer rows.Close()
	var out [][]interface{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func tupleKey(t []interface{}) string {
	var b strings.Builder
	for _, v := range t {
		fmt.Fprintf(&b, "%v\x00", v)
	}
	return b.String()
}

// tupleInClause builds "(col1, col2) IN (($1,$2),($3,$4),...)" and the
// flattened argument list, for a composite-key membership test.
func tupleInClause(cols []string, tuples [][]interface{}) (string, []interface{}) {
	quotedCols := quoteAll(cols)
	var args []interface{}
	var groups []string
	n := 0
	for _, t := range tuples {
		var placeholders []string
		for _, v := range t {
			n++
			placeholders = append(placeholders, fmt.Sprintf("$%d", n))
			args = append(args, v)
		}
		groups = append(groups, "("+strings.Join(placeholders, ", ")+")")
	}
	clause := fmt.Sprintf("(%s) IN (%s)", strings.Join(quotedCols, ", "), strings.Join(groups, ", "))
	return clause, args
}

func onConflictClause(table pgmeta.TableInfo) (string, error) {
	if len(table.PrimaryKey) == 0 {
		return "", fmt.Errorf("table %s has no primary key", table.Name)
	}
	pkCols := quoteAll(table.PrimaryKey)
	updateCols := quoteAll(nonPKColumnNames(table))
	if len(updateCols) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(pkCols, ", ")), nil
	}
	excluded := make([]string, len(updateCols))
	for i, c := range updateCols {
		excluded[i] = "EXCLUDED." + c
	}
	return fmt.Sprintf(
		"ON CONFLICT (%s) DO UPDATE SET (%s) = (%s)",
		strings.Join(pkCols, ", "), strings.Join(updateCols, ", "), strings.Join(excluded, ", "),
	), nil
}
