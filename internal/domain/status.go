package domain

import "time"

// Status is the pipeline progress snapshot written after every batch.
type Status struct {
	EventsAnnotated uint64    `json:"events_annotated"`
	Batches         uint64    `json:"batches"`
	LastBatchSize   int       `json:"last_batch_size"`
	LastBatchAt     time.Time `json:"last_batch_at"`
	Source          string    `json:"source"`
	Env             string    `json:"env"`
	Preserve        bool      `json:"preserve"`
}

// RecordBatch accounts for a written batch of n events.
func (s *Status) RecordBatch(n int, at time.Time) {
	s.EventsAnnotated += uint64(n)
	s.Batches++
	s.LastBatchSize = n
	s.LastBatchAt = at
}
