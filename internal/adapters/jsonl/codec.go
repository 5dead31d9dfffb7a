// Package jsonl reads and writes events as newline-delimited JSON.
//
// Each line holds one event. The body is opaque bytes and travels base64
// encoded, so payloads that are not valid UTF-8 survive unchanged:
//
//	{"headers":{"host":"web-1"},"body":"R0VUIC9oZWFsdGggMjAw"}
package jsonl

import (
	"fmt"

	"github.com/bft-labs/stamper/internal/domain"
)

// record is the wire form of an event.
type record struct {
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

func toRecord(e *domain.Event) record {
	return record{Headers: e.Headers, Body: e.Body}
}

func (r record) toEvent() *domain.Event {
	headers := r.Headers
	if headers == nil {
		headers = make(map[string]string)
	}
	return &domain.Event{Headers: headers, Body: r.Body}
}

// ParseError reports a line that is not a valid event.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonl: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes a ParseError match domain.ErrInvalidEvent.
func (e *ParseError) Is(target error) bool {
	return target == domain.ErrInvalidEvent
}
