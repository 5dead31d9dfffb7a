package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bft-labs/stamper/internal/domain"
	"github.com/bft-labs/stamper/internal/ports"
)

// DefaultMaxLineBytes is the longest line accepted by default.
const DefaultMaxLineBytes = 1 << 20

// Reader implements ports.EventSource over newline-delimited JSON.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReader reads events from r. Lines longer than maxLineBytes fail with
// bufio.ErrTooLong. If r is an io.Closer, Close closes it.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	rd := &Reader{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Next returns the next event, or ports.ErrEndOfStream after the last line.
// Blank lines are skipped.
// A malformed line yields a *ParseError; reading may continue afterwards.
func (r *Reader) Next(ctx context.Context) (*domain.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("jsonl: line %d: %w", r.line+1, err)
			}
			return nil, ports.ErrEndOfStream
		}
		r.line++

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &ParseError{Line: r.line, Err: err}
		}
		return rec.toEvent(), nil
	}
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// Close closes the underlying reader if it is closable.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
