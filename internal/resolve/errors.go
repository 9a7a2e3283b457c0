package resolve

import (
	"errors"
	"fmt"
)

// Kind classifies a ResolutionError.
type Kind string

const (
	KindCycle              Kind = "cycle"
	KindNoSuchAncestor     Kind = "no-such-ancestor"
	KindUnresolvedProperty Kind = "unresolved-property"
	KindPathCollision      Kind = "path-collision"
	KindUnknownReference   Kind = "unknown-reference"
)

// ErrResolution is the sentinel all ResolutionErrors unwrap to.
var ErrResolution = errors.New("resolution error")

// ResolutionError reports a symbolic reference that cannot be turned into
// a concrete value for an instance. It is fatal at build time.
type ResolutionError struct {
	Kind     Kind
	Instance string
	Ref      string
	Message  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("instance %s: %s: %s", e.Instance, e.Kind, e.Message)
}

func (e *ResolutionError) Unwrap() error { return ErrResolution }

func newError(kind Kind, instance, ref, format string, args ...any) *ResolutionError {
	return &ResolutionError{
		Kind:     kind,
		Instance: instance,
		Ref:      ref,
		Message:  fmt.Sprintf(format, args...),
	}
}
