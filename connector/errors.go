package connector

import (
	"errors"
	"fmt"
)

// Kind tells which phase of a connect operation failed.
type Kind int

const (
	// KindResolve means the resolver failed.
	KindResolve Kind = iota + 1
	// KindConnect means the establisher failed.
	KindConnect
)

func (k Kind) String() string {
	switch k {
	case KindResolve:
		return "resolve"
	case KindConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// Error is the failure of a connect operation.  Err is the resolver's
// or establisher's error, unmodified.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsResolve reports whether err is a resolution failure.
func IsResolve(err error) bool { return hasKind(err, KindResolve) }

// IsConnect reports whether err is a connection failure.
func IsConnect(err error) bool { return hasKind(err, KindConnect) }

func hasKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}
