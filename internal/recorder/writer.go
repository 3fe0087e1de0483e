package recorder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/distributor"
)

// compressedSuffix marks trace files written through LZ4.
const compressedSuffix = ".lz4"

// IsCompressedPath reports whether path names an LZ4-compressed trace.
func IsCompressedPath(path string) bool {
	return strings.HasSuffix(path, compressedSuffix)
}

// Writer appends assignment or access-info records to a stream. Close is
// idempotent.
type Writer struct {
	buf    *bufio.Writer
	lz4    *lz4.Writer
	closer io.Closer
	closed bool
}

// NewWriter wraps w. The caller keeps ownership of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{buf: bufio.NewWriter(w)}
}

// CreatePath creates (truncating) a trace file, compressing when the path
// carries the ".lz4" suffix.
func CreatePath(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}

	if !IsCompressedPath(path) {
		return &Writer{buf: bufio.NewWriter(file), closer: file}, nil
	}

	zw := lz4.NewWriter(file)

	return &Writer{buf: bufio.NewWriter(zw), lz4: zw, closer: file}, nil
}

// WriteAssignment appends one assignment record.
func (w *Writer) WriteAssignment(assignment distributor.AccessAssignment) error {
	line, err := marshalAssignment(assignment)
	if err != nil {
		return err
	}

	return w.writeLine(line)
}

// WriteAccessInfo appends one access-info record.
func (w *Writer) WriteAccessInfo(info *cache.AccessInfo) error {
	line, err := marshalAccessInfo(info)
	if err != nil {
		return err
	}

	return w.writeLine(line)
}

func (w *Writer) writeLine(line []byte) error {
	if _, err := w.buf.Write(line); err != nil {
		return err
	}

	return w.buf.WriteByte('\n')
}

// Close flushes buffered records and closes the underlying file when the
// writer owns one.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	if err := w.buf.Flush(); err != nil {
		return err
	}

	if w.lz4 != nil {
		if err := w.lz4.Close(); err != nil {
			return err
		}
	}

	if w.closer != nil {
		return w.closer.Close()
	}

	return nil
}
