package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide between retrying,
// skipping the unit of work, or aborting.
type Kind int

const (
	KindUnknown Kind = iota
	// KindRemoteUnavailable: retries exhausted against the remote API.
	KindRemoteUnavailable
	// KindRemoteAuth: 401/403 from the remote API. Never retried.
	KindRemoteAuth
	// KindRemoteRequest: any other permanent 4xx.
	KindRemoteRequest
	// KindReferentialPrecondition: the load payload has dangling references.
	KindReferentialPrecondition
	// KindArchivalWrite: a raw document could not be archived.
	KindArchivalWrite
)

func (k Kind) String() string {
	switch k {
	case KindRemoteUnavailable:
		return "remote_unavailable"
	case KindRemoteAuth:
		return "remote_auth"
	case KindRemoteRequest:
		return "remote_request"
	case KindReferentialPrecondition:
		return "referential_precondition"
	case KindArchivalWrite:
		return "archival_write"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Op   string
	// Status is the last HTTP status seen, zero when no response was received.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, RemoteAuth) works
// without comparing op or status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Status == 0 && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	RemoteUnavailable       = &Error{Kind: KindRemoteUnavailable}
	RemoteAuth              = &Error{Kind: KindRemoteAuth}
	RemoteRequest           = &Error{Kind: KindRemoteRequest}
	ReferentialPrecondition = &Error{Kind: KindReferentialPrecondition}
	ArchivalWrite           = &Error{Kind: KindArchivalWrite}
)

func New(kind Kind, op string, status int, err error) error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
