package writers

import (
	"context"
	"errors"

	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/walknode"
)

// ErrFileWriterNotImplemented is returned by every FileWriter method. The
// write-to-file sink is a placeholder: the source this system is modeled on
// never finished it either (WRITER_TO_FILE_LOG_FILENAME exists in config but
// no writer consumes it), and this tree carries that gap forward rather than
// inventing a format that was never specified.
var ErrFileWriterNotImplemented = errors.New("file writer: not implemented")

// FileWriter is the TO_FILE sink. It satisfies RowWriter so the compatibility
// matrix and CLI plumbing can reference it uniformly, but every method fails.
type FileWriter struct{}

// NewFileWriter returns a FileWriter placeholder.
func NewFileWriter() *FileWriter { return &FileWriter{} }

func (w *FileWriter) Begin(ctx context.Context) error { return ErrFileWriterNotImplemented }

func (w *FileWriter) WriteRow(ctx context.Context, table pgmeta.TableInfo, node walknode.DataNode) error {
	return ErrFileWriterNotImplemented
}

func (w *FileWriter) Commit(ctx context.Context) error { return ErrFileWriterNotImplemented }

func (w *FileWriter) Rollback(ctx context.Context) error { return ErrFileWriterNotImplemented }
