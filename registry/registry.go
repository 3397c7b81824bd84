package registry

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handle identifies exactly one resource for the lifetime of the
// process. Zero is never a valid handle.
type Handle int64

// Resource is anything the registry can own. Close must be safe to call
// more than once.
type Resource interface {
	Close() error
}

// ErrNotFound is returned when a handle has no registry entry, either
// because it was never issued or because it was already released.
var ErrNotFound = errors.New("handle not found")

// Registry is a process-wide table of live resources. The zero value is
// not usable; call New.
type Registry struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]Resource
}

// New creates an empty registry. Handle numbering starts at 1.
func New() *Registry {
	return &Registry{
		entries: make(map[Handle]Resource),
	}
}

// Allocate stores res and returns its new handle. Handles are unique
// for the process lifetime even across releases.
func (r *Registry) Allocate(res Resource) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := r.next
	r.entries[h] = res

	logrus.WithFields(logrus.Fields{
		"function": "Allocate",
		"handle":   int64(h),
		"live":     len(r.entries),
	}).Debug("resource registered")
	return h
}

// Lookup returns the resource behind h, or ErrNotFound.
func (r *Registry) Lookup(h Handle) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.entries[h]
	if !ok {
		return nil, ErrNotFound
	}
	return res, nil
}

// Release removes h's entry and returns the resource so the caller can
// close it outside the registry lock. Releasing an unknown or already
// released handle returns ErrNotFound; callers treating duplicate
// cleanup as benign map that to success themselves.
func (r *Registry) Release(h Handle) (Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.entries[h]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.entries, h)

	logrus.WithFields(logrus.Fields{
		"function": "Release",
		"handle":   int64(h),
		"live":     len(r.entries),
	}).Debug("resource deregistered")
	return res, nil
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Handles returns the handles of all live entries, in no particular
// order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	return out
}

// Sweep removes every entry and closes each resource, returning the
// number of resources swept. It is the process-teardown safety net for
// clients that terminated without releasing their handles. Close errors
// are logged, not returned; a sweep never stops halfway.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	swept := make(map[Handle]Resource, len(r.entries))
	for h, res := range r.entries {
		swept[h] = res
	}
	r.entries = make(map[Handle]Resource)
	r.mu.Unlock()

	for h, res := range swept {
		if err := res.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Sweep",
				"handle":   int64(h),
				"error":    err.Error(),
			}).Warn("failed to close resource during sweep")
		}
	}
	return len(swept)
}
