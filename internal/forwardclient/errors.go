package forwardclient

import (
	"errors"
	"net"
)

// SocketConnectionError means the origin could not be reached at all —
// connection refused, DNS failure, or another failed dial. A timeout from
// the per-request deadline is classified as a SocketCommunicationError,
// even when it expires before the connection is made. It is the
// error an exploratory proxy fallback treats as a quiet 404 rather than a
// logged failure.
type SocketConnectionError struct {
	Err error
}

func (e *SocketConnectionError) Error() string { return "socket connection failed: " + e.Err.Error() }
func (e *SocketConnectionError) Unwrap() error { return e.Err }

// SocketCommunicationError means a connection was established but the
// exchange failed afterward — a dropped connection mid-response, a
// malformed status line, or a post-connect read/write timeout. In every
// proxy mode it maps to a 404, never to a silent connection close.
type SocketCommunicationError struct {
	Err error
}

func (e *SocketCommunicationError) Error() string {
	return "socket communication failed: " + e.Err.Error()
}
func (e *SocketCommunicationError) Unwrap() error { return e.Err }

// classify turns a raw net/http transport error into one of the two typed
// errors above, inspecting the wrapped net.OpError's Op to tell a failed
// dial (connection-phase) apart from a failed read/write (communication
// phase after the connection succeeded).
func classify(err error) error {
	if err == nil {
		return nil
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return &SocketConnectionError{Err: err}
		default:
			return &SocketCommunicationError{Err: err}
		}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &SocketCommunicationError{Err: err}
	}

	return &SocketCommunicationError{Err: err}
}

// IsConnectionError reports whether err (or anything it wraps) is a
// SocketConnectionError.
func IsConnectionError(err error) bool {
	var connErr *SocketConnectionError
	return errors.As(err, &connErr)
}

// IsCommunicationError reports whether err (or anything it wraps) is a
// SocketCommunicationError.
func IsCommunicationError(err error) bool {
	var commErr *SocketCommunicationError
	return errors.As(err, &commErr)
}
