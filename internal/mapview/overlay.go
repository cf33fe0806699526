// Package mapview composes the interactive map description served to the page.
package mapview

import (
	"sync"
	"time"
)

// State is the lifecycle of an overlay fed by a remote source.
type State string

// Overlay states. A pending overlay may resolve or fail; later refreshes
// move it between resolved and failed.
const (
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateFailed   State = "failed"
)

// Status is the data-independent view of an overlay used by the composer.
type Status struct {
	Updated  time.Time `json:"updated,omitzero"`
	State    State     `json:"state"`
	Error    string    `json:"error,omitempty"`
	Features int       `json:"features"`
}

// StatusReporter is implemented by every overlay regardless of its data type.
type StatusReporter interface {
	Status() Status
}

// Snapshot is a consistent copy of an overlay at one point in time.
type Snapshot[T any] struct {
	Data    T
	Err     error
	Updated time.Time
	State   State
	Version uint64
}

// Overlay is a toggleable layer filled in place by its feed once data arrives.
// It starts pending and empty, so it can be composed before its data exists.
type Overlay[T any] struct {
	updated time.Time
	err     error
	data    T
	count   func(T) int
	state   State
	mu      sync.RWMutex
	version uint64
}

// NewOverlay creates a pending overlay holding empty until resolved.
// count reports the number of features in a data value.
func NewOverlay[T any](empty T, count func(T) int) *Overlay[T] {
	return &Overlay[T]{
		data:  empty,
		count: count,
		state: StatePending,
	}
}

// Resolve replaces the overlay data.
func (o *Overlay[T]) Resolve(data T, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.data = data
	o.err = nil
	o.state = StateResolved
	o.updated = at
	o.version++
}

// Reject records a failed fetch. Data from an earlier successful fetch is kept,
// an overlay that never resolved stays empty.
func (o *Overlay[T]) Reject(err error, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.err = err
	o.state = StateFailed
	o.updated = at
	o.version++
}

// Snapshot returns the current data and state.
func (o *Overlay[T]) Snapshot() Snapshot[T] {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return Snapshot[T]{
		Data:    o.data,
		Err:     o.err,
		State:   o.state,
		Updated: o.updated,
		Version: o.version,
	}
}

// Status implements StatusReporter.
func (o *Overlay[T]) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Status{
		State:   o.state,
		Updated: o.updated,
	}
	if o.err != nil {
		s.Error = o.err.Error()
	}
	if o.count != nil {
		s.Features = o.count(o.data)
	}

	return s
}
