// Package landerr implements the engine's error taxonomy: sentinel errors
// for engine-internal failure modes, and a StructuredError the wire
// protocol and ActionResponse/JoinError frames serialize to clients.
package landerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine-internal conditions not already carrying a
// client-facing code (see Code for those).
var (
	ErrKeeperStopped     = errors.New("landkeeper: keeper stopped")
	ErrAlreadyJoined      = errors.New("landkeeper: session already joined")
	ErrAlreadyJoining     = errors.New("landkeeper: session already joining")
	ErrSessionNotFound    = errors.New("landkeeper: session not found")
	ErrLandNotFound       = errors.New("landkeeper: land not found")
	ErrQueueFull          = errors.New("landkeeper: pending item queue full")
	ErrInvariantViolation = errors.New("landkeeper: engine invariant violation")
	ErrLandLimitReached   = errors.New("landkeeper: land type instance limit reached")
	ErrRealmStopped       = errors.New("landkeeper: realm stopped")
)

// Code is a stable, client-branchable error identifier suitable for
// client-side switch/branching logic.
type Code string

const (
	CodeInvalidFrame       Code = "INVALID_FRAME"
	CodeAuthFailed         Code = "AUTH_FAILED"
	CodeAlreadyJoined      Code = "ALREADY_JOINED"
	CodeAlreadyJoining     Code = "ALREADY_JOINING"
	CodeJoinRoomFull       Code = "JOIN_ROOM_FULL"
	CodeJoinDenied         Code = "JOIN_DENIED"
	CodeActionNotRegistered Code = "ACTION_NOT_REGISTERED"
	CodeResolverFailed     Code = "RESOLVER_FAILED"
	CodeEventHandlerFailed Code = "EVENT_HANDLER_FAILED"
	CodeSlowConsumer       Code = "SLOW_CONSUMER"
	CodeTransportError     Code = "TRANSPORT_ERROR"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// StructuredError is the {code, message, details} shape sent to clients.
// It implements error so engine-internal code can return it directly.
type StructuredError struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *StructuredError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs a StructuredError with optional details.
func New(code Code, message string, details map[string]any) *StructuredError {
	return &StructuredError{Code: code, Message: message, Details: details}
}

// SessionError wraps an error with session context.
type SessionError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("landkeeper: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("landkeeper: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// NewSessionError constructs a SessionError.
func NewSessionError(sessionID, op string, err error) *SessionError {
	return &SessionError{SessionID: sessionID, Op: op, Err: err}
}

// HandlerPanic wraps a recovered panic from a transition handler, surfaced
// as an engine invariant violation: the owning Keeper logs it at slog's
// error level and is marked failed.
type HandlerPanic struct {
	LandID    string
	TypeID    string
	Recovered any
	Stack     []byte
}

func (e *HandlerPanic) Error() string {
	return fmt.Sprintf("landkeeper: handler panic in land %s, type %s: %v", e.LandID, e.TypeID, e.Recovered)
}

func (e *HandlerPanic) Unwrap() error { return ErrInvariantViolation }
