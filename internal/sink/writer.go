package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"journaltail/internal/tail"
)

// Writer emits one JSON object per line.
type Writer struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *json.Encoder
	zw     *zstd.Encoder
	closer io.Closer
}

// NewWriter writes records to w. Close flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{buf: buf, enc: json.NewEncoder(buf)}
}

// OpenFile appends records to path, creating parent directories as needed.
// With compress set the stream is zstd compressed and each delivery is
// flushed as a complete block. Each run appends a new frame.
func OpenFile(path string, compress bool) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	if !compress {
		w := NewWriter(file)
		w.closer = file
		return w, nil
	}

	zw, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	w := NewWriter(zw)
	w.zw = zw
	w.closer = file
	return w, nil
}

// Deliver encodes rec and flushes it through to the underlying writer.
func (w *Writer) Deliver(ctx context.Context, rec tail.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if w.zw != nil {
		if err := w.zw.Flush(); err != nil {
			return fmt.Errorf("flush zstd frame: %w", err)
		}
	}
	return nil
}

// Close flushes pending output and closes any file opened by OpenFile.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if err := w.buf.Flush(); err != nil {
		firstErr = fmt.Errorf("flush output: %w", err)
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close zstd encoder: %w", err)
		}
		w.zw = nil
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close output file: %w", err)
		}
		w.closer = nil
	}
	return firstErr
}
