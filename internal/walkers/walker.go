// Package walkers implements the three traversal engine variants: row-BFS
// (sync and concurrent) driving a RowWriter, and table-BFS driving an
// EdgeWriter. All three share the single-method Walker contract.
package walkers

import "context"

// Walker is the contract every traversal variant exposes.
type Walker interface {
	StartWalk(ctx context.Context) error
}
