package workspace

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry keeps one open Store per project.
type Registry struct {
	api  Backend
	opts []Option

	mu     sync.Mutex
	stores map[string]*Store
	group  singleflight.Group
}

// NewRegistry creates a registry opening stores against api with opts.
func NewRegistry(api Backend, opts ...Option) *Registry {
	return &Registry{
		api:    api,
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// Get returns the open store for projectID, opening it on first use.
// Concurrent first calls share one load.
func (r *Registry) Get(ctx context.Context, projectID string) (*Store, error) {
	r.mu.Lock()
	s, ok := r.stores[projectID]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(projectID, func() (any, error) {
		r.mu.Lock()
		if s, ok := r.stores[projectID]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s, err := Open(context.WithoutCancel(ctx), projectID, r.api, r.opts...)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.stores[projectID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Close closes and forgets the store for projectID. It reports whether one
// was open.
func (r *Registry) Close(projectID string) bool {
	r.mu.Lock()
	s, ok := r.stores[projectID]
	delete(r.stores, projectID)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// CloseAll closes every open store.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()
	for _, s := range stores {
		s.Close()
	}
}

// Len returns the number of open stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
