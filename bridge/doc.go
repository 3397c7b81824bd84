// Package bridge implements the control protocol surface: every
// boundary operation as a plain Go function taking a handle and encoded
// text and returning encoded text. The capi package wraps these
// functions one-to-one with cgo exports; keeping the logic here keeps
// it testable without a C toolchain.
//
// Every operation returns a decodable payload, even on failure. Errors
// cross the boundary as {"error": "..."} payloads; nothing panics and
// nothing aborts the caller.
package bridge
