package portal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/geo"
)

// Ticket identifies one load of a view
type Ticket uint64

// Tracker hands out increasing tickets. Only the latest ticket is current.
type Tracker struct {
	latest atomic.Uint64
}

// Next issues a ticket and makes it current
func (t *Tracker) Next() Ticket {
	return Ticket(t.latest.Add(1))
}

// Current reports whether ticket is still the latest
func (t *Tracker) Current(ticket Ticket) bool {
	return uint64(ticket) == t.latest.Load()
}

// ListView holds the rows of a list view. A load whose response arrives after
// a newer load started is dropped.
type ListView[T geo.Tagged] struct {
	mu      sync.RWMutex
	tracker Tracker
	rows    []T
	total   int
	err     error
	scope   geo.Predicate
}

// NewListView creates a view that keeps only rows matching scope. A nil
// scope keeps everything.
func NewListView[T geo.Tagged](scope geo.Predicate) *ListView[T] {
	if scope == nil {
		scope = geo.AcceptAll
	}
	return &ListView[T]{scope: scope}
}

// NewListViewFor creates a view scoped to what actor may see. Leaders filter
// the already server-filtered rows again by their area.
func NewListViewFor[T geo.Tagged](actor auth.Actor) *ListView[T] {
	if actor.Role == auth.RoleLeader {
		return NewListView[T](actor.Visibility())
	}
	return NewListView[T](nil)
}

// Load runs fetch and applies its result if no newer load started. It
// reports whether the result was applied.
func (v *ListView[T]) Load(ctx context.Context, fetch func(ctx context.Context) (Page[T], error)) bool {
	ticket := v.tracker.Next()
	page, err := fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.tracker.Current(ticket) {
		return false
	}

	v.err = err
	if err != nil {
		return true
	}
	v.rows = geo.Filter(page.Data, v.scope)
	v.total = page.Total
	if dropped := len(page.Data) - len(v.rows); dropped > 0 {
		v.total -= dropped
	}
	return true
}

// Rows returns the applied rows and total
func (v *ListView[T]) Rows() ([]T, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]T(nil), v.rows...), v.total
}

// Err returns the error of the last applied load
func (v *ListView[T]) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}
