package api

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	// KindStatus is a non-2xx HTTP response.
	KindStatus Kind = iota + 1
	// KindTransport means no response arrived.
	KindTransport
	// KindConfig means the request could not be built.
	KindConfig
	// KindApplication is a 2xx response whose envelope reports failure.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindTransport:
		return "transport"
	case KindConfig:
		return "config"
	case KindApplication:
		return "application"
	}
	return "unknown"
}

// User-facing messages.
const (
	MsgSessionExpired = "session expired, please log in again"
	MsgForbidden      = "forbidden"
	MsgNotFound       = "not found"
	MsgServerError    = "server error, please try again later"
	MsgNetwork        = "network error, check your connection"
	MsgConfig         = "request configuration error"
	MsgFailed         = "request failed"
)

// ErrSessionRevoked matches (errors.Is) every failure that ended the session.
var ErrSessionRevoked = errors.New("session revoked")

// Error is every failure the client returns.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 without a response
	Code    int    // envelope code, 0 when absent
	Message string // what the user was (or would have been) shown
	// ServerMessage is the server's own wording, if it sent one.
	ServerMessage string
	Path          string
	Err           error
	revoked       bool
	// sentToken is the bearer token the failed request carried.
	sentToken string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (%d): %s", e.Kind, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	if e.revoked {
		return ErrSessionRevoked
	}
	return e.Err
}

// Revoked is published when the server rejects the session.
type Revoked struct {
	Path string
	At   time.Time
}
