package ws

import (
	"context"
	"io"
	"net"
	"syscall"

	"github.com/gobwas/ws/wsutil"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// FailureClass separates recoverable connection loss from other faults.
type FailureClass int

const (
	FailureConnectivity FailureClass = iota
	FailureUnexpected
)

func (c FailureClass) String() string {
	if c == FailureConnectivity {
		return "connectivity"
	}
	return "unexpected"
}

// Classify maps a session error to its failure class. Refused, reset and
// closed connections, timeouts and EOF are connectivity failures; anything
// else (handshake rejection, subscribe encoding, handler panics) is unexpected.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureUnexpected
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return FailureUnexpected
	}

	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, context.DeadlineExceeded):
		return FailureConnectivity
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return FailureConnectivity
	}
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return FailureConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureConnectivity
	}
	return FailureUnexpected
}
