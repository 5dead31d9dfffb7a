package annotator

import "github.com/bft-labs/stamper/internal/domain"

// Policy decides what happens when a header is already set.
type Policy int

const (
	// PolicyPreserve only sets a header when the key is absent.
	PolicyPreserve Policy = iota
	// PolicyOverwrite always replaces the header value.
	PolicyOverwrite
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyPreserve:
		return "preserve"
	case PolicyOverwrite:
		return "overwrite"
	default:
		return "unknown"
	}
}

type stampFunc func(e *domain.Event, key, value string)

func (p Policy) stampFunc() stampFunc {
	if p == PolicyOverwrite {
		return overwrite
	}
	return preserve
}

func overwrite(e *domain.Event, key, value string) {
	e.SetHeader(key, value)
}

// preserve treats a present key as set even if its value is empty.
func preserve(e *domain.Event, key, value string) {
	if e.HasHeader(key) {
		return
	}
	e.SetHeader(key, value)
}
