package p2pcore

import (
	"fmt"
)

// ValidationError reports a configuration or address that failed
// validation before any resource was constructed. It is always
// recoverable: the caller can fix the record and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConstructionError reports that building the underlying libp2p
// resources failed (listener bind conflict, DHT or pubsub setup).
// Construction is all-or-nothing: when this error is returned every
// partially built component has already been torn down.
type ConstructionError struct {
	Stage string
	Cause error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction failed at %s: %v", e.Stage, e.Cause)
}

func (e *ConstructionError) Unwrap() error {
	return e.Cause
}

// LifecycleError reports an operation that is not valid in the node's
// current state, such as querying a node that was never started or
// restarting a released node. The node's state is unchanged.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cannot %s node in state %s", e.Op, e.State)
}
