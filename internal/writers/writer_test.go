package writers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatibilityMatrix(t *testing.T) {
	assert.True(t, Compatible("table", KindBatchFDW))
	assert.False(t, Compatible("table", KindSingleFDW))
	assert.False(t, Compatible("table", KindToFile))
	assert.False(t, Compatible("table", KindAsyncFDW))

	for _, walker := range []string{"row_sync", "row_concurrent"} {
		assert.True(t, Compatible(walker, KindToFile))
		assert.True(t, Compatible(walker, KindSingleFDW))
		assert.True(t, Compatible(walker, KindAsyncFDW))
		assert.False(t, Compatible(walker, KindBatchFDW))
	}

	assert.False(t, Compatible("unknown", KindSingleFDW))
}

func TestFileWriterIsUnimplemented(t *testing.T) {
	w := NewFileWriter()
	ctx := context.Background()

	assert.ErrorIs(t, w.Begin(ctx), ErrFileWriterNotImplemented)
	assert.ErrorIs(t, w.WriteRow(ctx, fakeTable(), fakeNode()), ErrFileWriterNotImplemented)
	assert.ErrorIs(t, w.Commit(ctx), ErrFileWriterNotImplemented)
	assert.ErrorIs(t, w.Rollback(ctx), ErrFileWriterNotImplemented)
}
