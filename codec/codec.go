package codec

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/opd-ai/p2pcore"
)

// errorKey is the reserved top-level field that discriminates error
// payloads from success bodies.
const errorKey = "error"

// DecodeError reports boundary text that could not be decoded: invalid
// JSON or a shape mismatch. It indicates a protocol bug or corruption,
// never an expected condition.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// RemoteError is an error payload decoded from the boundary: the far
// side reported failure with this message.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Encode serializes v as the boundary's canonical JSON text.
func Encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// Error builds an error payload carrying msg under the reserved key.
// The message is JSON-escaped, so it may contain arbitrary text.
func Error(msg string) string {
	data, _ := json.Marshal(map[string]string{errorKey: msg})
	return string(data)
}

// Errorf builds an error payload from a format string.
func Errorf(format string, args ...any) string {
	return Error(fmt.Sprintf(format, args...))
}

// Success is the minimal success body for operations that return no
// data.
func Success() string {
	return `{"success":true}`
}

// IsError reports whether payload is an error payload. Text that is not
// valid JSON at all counts as an error payload, since it can never be a
// success body.
func IsError(payload string) bool {
	if !gjson.Valid(payload) {
		return true
	}
	return gjson.Get(payload, errorKey).Exists()
}

// ErrorMessage extracts the message from an error payload. The second
// return is false when payload is a success body.
func ErrorMessage(payload string) (string, bool) {
	if !gjson.Valid(payload) {
		return "", false
	}
	res := gjson.Get(payload, errorKey)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// Decode parses payload into v. The reserved error key takes
// precedence: if present, Decode returns a RemoteError and v is left
// untouched, so an error payload can never be half-read as a success
// body. Invalid JSON or a shape mismatch returns a DecodeError.
func Decode(payload string, v any) error {
	if !gjson.Valid(payload) {
		return &DecodeError{Cause: fmt.Errorf("not valid JSON: %q", truncate(payload))}
	}
	if msg := gjson.Get(payload, errorKey); msg.Exists() {
		return &RemoteError{Message: msg.String()}
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return &DecodeError{Cause: err}
	}
	return nil
}

// DecodeConfig decodes a configuration record, filling the documented
// defaults for any omitted field and validating the result. Decoding
// starts from the default record, so an omitted feature flag keeps its
// documented enabled state while an explicit false disables it, and an
// explicitly empty listener list is preserved where an absent one falls
// back to the default listener.
func DecodeConfig(payload string) (*p2pcore.Config, error) {
	cfg := p2pcore.DefaultConfig()
	if err := Decode(payload, cfg); err != nil {
		return nil, err
	}
	return p2pcore.BuildConfig(cfg)
}

// DecodeStringList decodes a bare JSON array of strings, the shape used
// for address lists crossing the boundary.
func DecodeStringList(payload string) ([]string, error) {
	if !gjson.Valid(payload) {
		return nil, &DecodeError{Cause: fmt.Errorf("not valid JSON: %q", truncate(payload))}
	}
	var out []string
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	return out, nil
}

// truncate keeps decode errors readable when the malformed payload is
// large.
func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
