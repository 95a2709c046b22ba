package library

import (
	"errors"
	"fmt"
)

// ErrorKind classifies collaborator failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNetwork is a transport failure. Transient; retry is the caller's call.
	KindNetwork
	// KindValidation is input rejected by the service (4xx). Never retried.
	KindValidation
	// KindNotFound is a reference to an id the service does not know.
	KindNotFound
	// KindServer is a collaborator-side failure (5xx or a malformed response).
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against *Error values.
var (
	ErrNetwork    = errors.New("network error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrServer     = errors.New("server error")
)

// Error is the typed failure returned by every Client call.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// KindOf extracts the ErrorKind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// kindForStatus maps an HTTP status code >= 400 onto the taxonomy.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 404:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}
