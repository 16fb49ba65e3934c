package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProtectedContent means the source forbids direct re-transmission.
	ErrProtectedContent = errors.New("source chat has protected content")
	// ErrProtocolSkew means the transport received a shape it does not
	// recognize. Reconnecting is safe.
	ErrProtocolSkew = errors.New("unrecognized data from transport")
	// ErrSessionInvalidated means the credential was revoked or is in use by
	// another process. Reconnecting in place cannot recover.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrNoMedia is returned by Download for a message without media.
	ErrNoMedia = errors.New("message has no media")
)

// FloodWaitError asks the caller to wait before the next call.
type FloodWaitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s: %v", e.RetryAfter, e.Err)
}

func (e *FloodWaitError) Unwrap() error {
	return e.Err
}

func IsProtectedContent(err error) bool {
	return errors.Is(err, ErrProtectedContent)
}

func IsProtocolSkew(err error) bool {
	return errors.Is(err, ErrProtocolSkew)
}

func IsSessionInvalidated(err error) bool {
	return errors.Is(err, ErrSessionInvalidated)
}

// FloodWait reports the requested wait if err is a flood-wait error.
func FloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.RetryAfter, true
	}
	return 0, false
}

// Classified wraps cause so that errors.Is(err, kind) holds while the
// original message is kept.
func Classified(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &classifiedError{kind: kind, cause: cause}
}

type classifiedError struct {
	kind  error
	cause error
}

func (e *classifiedError) Error() string {
	return fmt.Sprintf("%v: %v", e.kind, e.cause)
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.kind, e.cause}
}
