package domain

// Header keys stamped by the annotator.
const (
	HeaderSource = "source"
	HeaderEnv    = "env"
)

// Event is a unit of data flowing through the pipeline.
// Body is never interpreted by stamper.
type Event struct {
	Headers map[string]string
	Body    []byte
}

// NewEvent creates an event with an empty header set.
func NewEvent(body []byte) *Event {
	return &Event{
		Headers: make(map[string]string),
		Body:    body,
	}
}

// SetHeader sets key to value, allocating the header set if needed.
func (e *Event) SetHeader(key, value string) {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
}

// HasHeader reports whether key is present, regardless of its value.
func (e *Event) HasHeader(key string) bool {
	_, ok := e.Headers[key]
	return ok
}

// Size returns the body length in bytes.
func (e *Event) Size() int {
	return len(e.Body)
}
