package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResource counts Close calls so tests can verify sweep behavior.
type fakeResource struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeResource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeResource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestAllocateLookupRelease(t *testing.T) {
	r := New()
	res := &fakeResource{}

	h := r.Allocate(res)
	assert.Greater(t, int64(h), int64(0), "zero is never a valid handle")
	assert.Equal(t, 1, r.Len())

	got, err := r.Lookup(h)
	require.NoError(t, err)
	assert.Same(t, res, got)

	released, err := r.Release(h)
	require.NoError(t, err)
	assert.Same(t, res, released)
	assert.Equal(t, 0, r.Len())

	_, err = r.Lookup(h)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseUnknownHandle(t *testing.T) {
	r := New()

	_, err := r.Release(42)
	assert.ErrorIs(t, err, ErrNotFound)

	h := r.Allocate(&fakeResource{})
	_, err = r.Release(h)
	require.NoError(t, err)

	// Second release of the same handle: gone means gone.
	_, err = r.Release(h)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandlesAreNeverRecycled(t *testing.T) {
	r := New()

	h1 := r.Allocate(&fakeResource{})
	_, err := r.Release(h1)
	require.NoError(t, err)

	h2 := r.Allocate(&fakeResource{})
	assert.NotEqual(t, h1, h2, "a released handle value must never be reissued")
	assert.Greater(t, int64(h2), int64(h1))
}

func TestConcurrentAllocation(t *testing.T) {
	const n = 64
	r := New()

	var wg sync.WaitGroup
	handles := make(chan Handle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles <- r.Allocate(&fakeResource{})
		}()
	}
	wg.Wait()
	close(handles)

	seen := make(map[Handle]bool)
	for h := range handles {
		assert.False(t, seen[h], "handle %d issued twice", h)
		seen[h] = true

		_, err := r.Lookup(h)
		assert.NoError(t, err)
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, r.Len())
}

func TestConcurrentLookupAndRelease(t *testing.T) {
	r := New()
	h := r.Allocate(&fakeResource{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Either outcome is fine; a torn state is not.
			res, err := r.Lookup(h)
			if err == nil {
				assert.NotNil(t, res)
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Release(h)
	}()
	wg.Wait()
}

func TestSweep(t *testing.T) {
	r := New()
	resources := []*fakeResource{{}, {}, {}}
	for _, res := range resources {
		r.Allocate(res)
	}

	assert.Equal(t, 3, r.Sweep())
	assert.Equal(t, 0, r.Len())
	for _, res := range resources {
		assert.Equal(t, 1, res.closeCount())
	}

	// A second sweep finds nothing and closes nothing twice.
	assert.Equal(t, 0, r.Sweep())
	for _, res := range resources {
		assert.Equal(t, 1, res.closeCount())
	}
}

func TestHandles(t *testing.T) {
	r := New()
	h1 := r.Allocate(&fakeResource{})
	h2 := r.Allocate(&fakeResource{})

	assert.ElementsMatch(t, []Handle{h1, h2}, r.Handles())
}
