package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/bft-labs/stamper/internal/domain"
)

// Writer implements ports.EventSink over newline-delimited JSON.
type Writer struct {
	buf    *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
}

// NewWriter writes events to w. If w is an io.Closer, Close closes it.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	wr := &Writer{buf: buf, enc: enc}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr
}

// Write encodes one line per event and flushes once the batch is written.
func (w *Writer) Write(ctx context.Context, events []*domain.Event) error {
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e == nil {
			continue
		}
		if err := w.enc.Encode(toRecord(e)); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

// Close flushes buffered output and closes the underlying writer.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
