package scan

import (
	"fmt"

	"github.com/michaelscutari/dirscan/internal/entry"
)

// Recorder is an in-memory Sink that keeps every event in order.
type Recorder struct {
	Events   []string
	Entries  []*entry.Entry
	Outcome  *entry.Outcome
	Finals   int
	MaxDepth int

	depth int
}

// Enter implements Sink.
func (r *Recorder) Enter(e *entry.Entry) error {
	r.Events = append(r.Events, fmt.Sprintf("enter(%s)", e.Name))
	r.Entries = append(r.Entries, e)
	r.depth++
	if r.depth > r.MaxDepth {
		r.MaxDepth = r.depth
	}
	return nil
}

// Leave implements Sink.
func (r *Recorder) Leave() error {
	if r.depth == 0 {
		return fmt.Errorf("leave without matching enter")
	}
	r.Events = append(r.Events, "leave()")
	r.depth--
	return nil
}

// Finalize implements Sink.
func (r *Recorder) Finalize(o entry.Outcome) (entry.Action, error) {
	r.Finals++
	r.Outcome = &o
	if o.Fatal() {
		return entry.ActionTerminate, nil
	}
	return entry.ActionContinue, nil
}

// Depth returns the current nesting depth.
func (r *Recorder) Depth() int {
	return r.depth
}

// Find returns the first recorded entry with the given name.
func (r *Recorder) Find(name string) *entry.Entry {
	for _, e := range r.Entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}
