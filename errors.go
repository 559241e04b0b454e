package evnet

import (
	"errors"
	"io"

	"golang.org/x/xerrors"
)

// Kind classifies the family an Error belongs to.
type Kind int

const (
	KindIllegalState Kind = iota
	KindTransport
	KindConnectFailure
	KindDNSFailure
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindIllegalState:
		return "illegal-state"
	case KindTransport:
		return "transport-error"
	case KindConnectFailure:
		return "connect-failure"
	case KindDNSFailure:
		return "dns-failure"
	case KindParseError:
		return "parse-error"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind, chained with
// golang.org/x/xerrors so callers can errors.Is/errors.As down to Kind
// or the wrapped cause.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return xerrors.Errorf("%s: %w", e.Kind, e.cause).Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so
// callers can errors.Is(err, &evnet.Error{Kind: evnet.KindTransport}).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// ErrECONNRESET is the quiet-termination sentinel: destroying a socket
// because the peer sent RST never emits "error".
var ErrECONNRESET = errors.New("evnet: connection reset by peer")

// ErrNoHandle is returned by SetNoDelay/SetKeepAlive, and passed
// (wrapped in an illegal-state *Error) to a write's callback, when no
// transport handle is attached — e.g. before Connect has resolved, or
// after Destroy.
var ErrNoHandle = errors.New("evnet: socket has no transport handle")

// ErrNoDialer is the cause, wrapped in an illegal-state *Error, that
// Connect destroys the socket with (reported through "error") when no
// Dialer has been installed via Socket.SetDialer.
var ErrNoDialer = errors.New("evnet: socket has no dialer installed")

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func isConnReset(err error) bool {
	return errors.Is(err, ErrECONNRESET)
}
