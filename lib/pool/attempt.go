package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned by operations on a released pool
	ErrPoolClosed = errors.New("pool is closed")
	// ErrNoPayloads is returned by Send if connections are live but no payload was given
	ErrNoPayloads = errors.New("invalid argument: no payloads to send")

	// ErrConnect matches every AttemptFailure of kind FailureConnect
	ErrConnect = errors.New("connect failed")
	// ErrHandshake matches every AttemptFailure of kind FailureHandshake
	ErrHandshake = errors.New("handshake failed")
)

// --------------------------------------------------------------------------
// Attempt state machine
// --------------------------------------------------------------------------

// AttemptState is the state of a single connect attempt.
//
//	plain: Connecting -> {Connected | Failed}
//	tls:   Connecting -> Handshaking -> {Connected | Failed}
type AttemptState int

const (
	StateConnecting AttemptState = iota
	StateHandshaking
	StateConnected
	StateFailed
)

func (s AttemptState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FailureKind classifies attempt failures
type FailureKind int

const (
	// FailureConnect covers dial errors and socket option errors
	FailureConnect FailureKind = iota
	// FailureHandshake covers TLS negotiation and peer identity errors
	FailureHandshake
)

func (k FailureKind) String() string {
	if k == FailureHandshake {
		return "handshake"
	}
	return "connect"
}

// AttemptFailure describes one connect attempt that did not make it into the
// live set. Failures are reported data, they are never returned as error of
// Connect.
type AttemptFailure struct {
	// Attempt is the index of the attempt within its Connect call
	Attempt int
	// FailedIn is the state the attempt was in when it failed
	FailedIn AttemptState
	Kind     FailureKind
	Err      error
}

func (f AttemptFailure) Error() string {
	return fmt.Sprintf("attempt %d: %s failed while %s: %v", f.Attempt, f.Kind, f.FailedIn, f.Err)
}

func (f AttemptFailure) Unwrap() error {
	return f.Err
}

// Is lets errors.Is match the kind sentinels ErrConnect and ErrHandshake
func (f AttemptFailure) Is(target error) bool {
	switch target {
	case ErrConnect:
		return f.Kind == FailureConnect
	case ErrHandshake:
		return f.Kind == FailureHandshake
	}
	return false
}

// IsHandshake reports whether the failure is a TLS handshake failure
func (f AttemptFailure) IsHandshake() bool {
	return f.Kind == FailureHandshake
}

// WriteFailure describes a write of Send that did not complete. Other writes
// of the same Send are not affected.
type WriteFailure struct {
	// Position is the index of the connection in the live set
	Position int
	// PayloadIndex is the index of the payload assigned to that connection
	PayloadIndex int
	// Written is the number of bytes written before the error
	Written int
	Err     error
}

func (f WriteFailure) Error() string {
	return fmt.Sprintf("write to connection %d (payload %d) failed after %d bytes: %v", f.Position, f.PayloadIndex, f.Written, f.Err)
}

func (f WriteFailure) Unwrap() error {
	return f.Err
}
