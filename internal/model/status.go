package model

import (
	"fmt"
	"time"
)

// ConnKind enumerates the ingestion client's connection states.
type ConnKind int

const (
	ConnConnecting ConnKind = iota
	ConnConnected
	ConnDisconnected
	ConnError
)

func (k ConnKind) String() string {
	switch k {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionState is the latest status of the ingestion client.
// It is overwritten on every transition and never persisted.
type ConnectionState struct {
	Kind   ConnKind      `json:"kind"`
	Detail string        `json:"detail,omitempty"` // stream for Connected, error text otherwise
	Retry  time.Duration `json:"retry,omitempty"`  // reconnect delay, Disconnected only
	At     time.Time     `json:"at"`
}

// Connecting reports a dial in progress.
func Connecting() ConnectionState {
	return ConnectionState{Kind: ConnConnecting, At: time.Now()}
}

// Connected reports a live subscription to stream.
func Connected(stream string) ConnectionState {
	return ConnectionState{Kind: ConnConnected, Detail: stream, At: time.Now()}
}

// Disconnected reports a connection-level failure and the delay before the next attempt.
func Disconnected(reason error, retry time.Duration) ConnectionState {
	return ConnectionState{Kind: ConnDisconnected, Detail: errText(reason), Retry: retry, At: time.Now()}
}

// Errored reports an unexpected failure in the receive loop.
func Errored(detail error) ConnectionState {
	return ConnectionState{Kind: ConnError, Detail: errText(detail), At: time.Now()}
}

// String renders the state as human-readable status text.
func (s ConnectionState) String() string {
	switch s.Kind {
	case ConnConnecting:
		return "Connecting to feed..."
	case ConnConnected:
		return "Connected, subscribed to " + s.Detail
	case ConnDisconnected:
		return fmt.Sprintf("Disconnected, reconnecting in %s (error: %s)", s.Retry, s.Detail)
	case ConnError:
		return "Feed error: " + s.Detail
	default:
		return "Unknown"
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
