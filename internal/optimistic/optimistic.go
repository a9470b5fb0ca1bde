// Package optimistic applies local state changes ahead of remote confirmation
// and restores the pre-mutation snapshot when the remote call fails.
package optimistic

import (
	"context"
	"sync"

	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("buildmanager-optimistic")

// Outcomes reported to metrics.
const (
	Committed  = "committed"
	RolledBack = "rolled_back"
	Rejected   = "rejected"
)

// Mutation describes one optimistic change.
//
// Apply performs the local change and may reject it before anything is
// visible. Remote persists it. Revert restores the state captured before
// Apply and runs only when Remote fails. Commit, if set, runs after a
// successful Remote to fold the server's answer into local state.
type Mutation struct {
	Name   string
	Apply  func() error
	Remote func(ctx context.Context) error
	Revert func()
	Commit func()
}

// Run executes m. A rejected Apply leaves state untouched and skips Remote.
func Run(ctx context.Context, m Mutation) error {
	ctx, span := tracer.Start(ctx, "optimistic."+m.Name)
	defer span.End()

	if err := m.Apply(); err != nil {
		span.SetAttributes(attribute.String("outcome", Rejected))
		metrics.RecordMutation(m.Name, Rejected)
		return err
	}

	if err := m.Remote(ctx); err != nil {
		if m.Revert != nil {
			m.Revert()
		}
		span.RecordError(err)
		span.SetAttributes(attribute.String("outcome", RolledBack))
		metrics.RecordMutation(m.Name, RolledBack)
		logging.WithContext(ctx).Warn("mutation rolled back",
			logging.String("mutation", m.Name), logging.Err(err))
		return err
	}

	if m.Commit != nil {
		m.Commit()
	}
	span.SetAttributes(attribute.String("outcome", Committed))
	metrics.RecordMutation(m.Name, Committed)
	return nil
}

// Cell holds a value that mutations replace wholesale.
type Cell[S any] struct {
	mu sync.RWMutex
	v  S
}

// NewCell returns a cell holding v.
func NewCell[S any](v S) *Cell[S] {
	return &Cell[S]{v: v}
}

// Get returns the current value.
func (c *Cell[S]) Get() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Set replaces the current value.
func (c *Cell[S]) Set(v S) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = v
}

// Update runs an optimistic mutation against a cell. apply derives the
// optimistic value from the current one. remote persists it and returns the
// authoritative value, which replaces the optimistic one. On remote failure
// the cell goes back to the value it held before apply.
//
// Update does not serialize callers; concurrent updates to the same cell must
// be ordered by the caller.
func Update[S any](ctx context.Context, c *Cell[S], name string,
	apply func(S) (S, error), remote func(context.Context, S) (S, error)) (S, error) {

	before := c.Get()
	var optimisticValue, final S
	err := Run(ctx, Mutation{
		Name: name,
		Apply: func() error {
			next, err := apply(before)
			if err != nil {
				return err
			}
			optimisticValue = next
			c.Set(next)
			return nil
		},
		Remote: func(ctx context.Context) error {
			v, err := remote(ctx, optimisticValue)
			final = v
			return err
		},
		Revert: func() { c.Set(before) },
		Commit: func() { c.Set(final) },
	})
	if err != nil {
		return before, err
	}
	return final, nil
}
