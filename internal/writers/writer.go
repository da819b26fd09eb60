// Package writers implements the data sinks a walker emits into: three
// FDW-backed variants (single-row, batched-by-edge, concurrent) and a
// not-yet-implemented file sink, sharing a scoped begin/commit contract.
package writers

import (
	"context"

	"github.com/dbsmedya/pgrelay/internal/graph"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/walknode"
)

// Kind names a writer variant, used by the walker/writer compatibility
// matrix and by the CLI's --writer flag.
type Kind string

const (
	KindToFile    Kind = "to_file"
	KindSingleFDW Kind = "single_fdw"
	KindBatchFDW  Kind = "batch_fdw"
	KindAsyncFDW  Kind = "async_fdw"
)

// Writer is the scoped begin/commit contract every sink implements.
type Writer interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RowWriter accepts per-row emissions from the row-BFS walkers.
type RowWriter interface {
	Writer
	WriteRow(ctx context.Context, table pgmeta.TableInfo, node walknode.DataNode) error
}

// EdgeWriter accepts per-table-seed and per-edge emissions from the table
// walker's deep_copy algorithm. WriteEdge returns the number of new rows
// inserted, which drives termination (§4.3.2).
type EdgeWriter interface {
	Writer
	WriteTableWhere(ctx context.Context, table pgmeta.TableInfo, where string) error
	WriteEdge(ctx context.Context, edge graph.RelationEdge, targetTable pgmeta.TableInfo) (int, error)
}

// Compatible reports whether walkerKind may drive writerKind, per the static
// compatibility matrix of §4.6. A mismatched pair must be rejected at
// startup, before any connection is opened.
func Compatible(walkerKind string, writerKind Kind) bool {
	switch walkerKind {
	case "table":
		return writerKind == KindBatchFDW
	case "row_sync", "row_concurrent":
		return writerKind == KindToFile || writerKind == KindSingleFDW || writerKind == KindAsyncFDW
	default:
		return false
	}
}
