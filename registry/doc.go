// Package registry maps opaque integer handles to live native
// resources. It is the sole authority for resource identity and
// lifetime: boundary clients hold handles, never references.
//
// Handles are assigned from a monotonically increasing counter and are
// never recycled within one process run, so a use-after-release shows
// up as ErrNotFound instead of silently aliasing a newer resource.
// Allocation and release are serialized with respect to lookup; a
// lookup racing a release observes either the pre-release or the
// post-release state, never a partially destructed resource.
package registry
