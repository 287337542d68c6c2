package common

import (
	"errors"
	"fmt"
)

// SessionErrType classifies the ways an anti-entropy session can fail.
type SessionErrType uint32

const (
	// ProtocolViolation is an unexpected message type or state transition.
	ProtocolViolation SessionErrType = iota
	// TransportFailure is a connection drop, IO error or expired deadline.
	TransportFailure
	// SerializationFailure is a malformed or version-mismatched payload.
	SerializationFailure
)

// String ...
func (t SessionErrType) String() string {
	switch t {
	case ProtocolViolation:
		return "ProtocolViolation"
	case TransportFailure:
		return "TransportFailure"
	case SerializationFailure:
		return "SerializationFailure"
	default:
		return "Unknown"
	}
}

// SessionErr is the error returned by a failed session. Session is 0 when the
// failure happened below the session layer and has not been attributed yet.
type SessionErr struct {
	errType SessionErrType
	session int64
	cause   error
}

// NewSessionErr ...
func NewSessionErr(errType SessionErrType, session int64, cause error) SessionErr {
	return SessionErr{
		errType: errType,
		session: session,
		cause:   cause,
	}
}

// Type ...
func (e SessionErr) Type() SessionErrType {
	return e.errType
}

// Session ...
func (e SessionErr) Session() int64 {
	return e.session
}

// WithSession returns a copy of the error attributed to a session.
func (e SessionErr) WithSession(session int64) SessionErr {
	e.session = session
	return e
}

// Error ...
func (e SessionErr) Error() string {
	return fmt.Sprintf("session %d, %s: %v", e.session, e.errType, e.cause)
}

// Unwrap ...
func (e SessionErr) Unwrap() error {
	return e.cause
}

// IsSession checks that an error is, or wraps, a SessionErr of the given type.
func IsSession(err error, t SessionErrType) bool {
	var sessionErr SessionErr
	return errors.As(err, &sessionErr) && sessionErr.errType == t
}
