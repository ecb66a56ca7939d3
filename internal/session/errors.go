// ABOUTME: Typed failure taxonomy for session resolution
// ABOUTME: Store errors are translated into one of four kinds exactly once, in this package

package session

import (
	"errors"
	"fmt"
)

// Kind classifies a session failure
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that aren't *Error
	KindUnknown Kind = iota
	// KindInvalidCompanyKey means no company matches the public key
	KindInvalidCompanyKey
	// KindStoreUnavailable means a store lookup or write failed
	KindStoreUnavailable
	// KindNoAgentsAvailable means the roster has no available agent
	KindNoAgentsAvailable
	// KindProvisioningIncomplete means a new conversation could not be
	// written or could not be read back fully hydrated
	KindProvisioningIncomplete
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCompanyKey:
		return "invalid_company_key"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindNoAgentsAvailable:
		return "no_agents_available"
	case KindProvisioningIncomplete:
		return "provisioning_incomplete"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidCompanyKey      = &Error{Kind: KindInvalidCompanyKey}
	ErrStoreUnavailable       = &Error{Kind: KindStoreUnavailable}
	ErrNoAgentsAvailable      = &Error{Kind: KindNoAgentsAvailable}
	ErrProvisioningIncomplete = &Error{Kind: KindProvisioningIncomplete}
)

// Error is a session failure with its kind, the failing step and the cause
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so wrapped errors compare equal to the sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
