// Package main provides the C API for p2pcore, enabling foreign
// runtimes (Python, Ruby, C itself) to create and drive embedded libp2p
// nodes through opaque integer handles and JSON strings.
//
// # Build Instructions
//
// To build as a C shared library:
//
//	go build -buildmode=c-shared -o libp2pcore.so ./capi/
//
// This generates libp2pcore.so plus libp2pcore.h with the exported
// declarations.
//
// # Calling Convention
//
// Every function returning *C.char allocates the string with C.CString;
// the caller owns it and must pass it to p2p_free_string. Responses are
// JSON: either a success body or {"error": "message"} — presence of the
// "error" key is the sole failure discriminator. Handles are int64
// values that are never recycled within a process; a released handle
// stays invalid forever.
//
// Clients should probe p2p_abi_version once at load time and refuse to
// proceed on a mismatch, and should call p2p_shutdown before unloading
// the library to sweep any handles leaked by abnormal teardown.
package main
