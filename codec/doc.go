// Package codec converts the structured values of the control protocol
// to and from the flat JSON text that crosses the C boundary.
//
// Every boundary response is either a success body or an error payload
// carrying a message under the reserved "error" key; presence of that
// key is the sole discriminator. Decode inspects the key before any
// structural parsing, so an error payload is never misread as a success
// body. Missing optional fields on decode fall back to the documented
// defaults instead of failing; genuinely malformed text surfaces as a
// DecodeError.
package codec
