package router

import (
	"errors"
	"fmt"

	"github.com/kabili207/lorachat/core"
)

var (
	// ErrNoTransport is returned when no transport is active, including
	// while a transport switch is in progress.
	ErrNoTransport = errors.New("no active transport")
	// ErrTransportNotConnected is returned when the active transport is down.
	ErrTransportNotConnected = errors.New("transport not connected")
	// ErrEmptyMessage is returned by SendChat for blank input; empty text is
	// reserved for pings.
	ErrEmptyMessage = errors.New("empty message")
	// ErrUnknownRadio is returned when switching to a transport whose radio
	// is neither LoRa nor ESP-NOW.
	ErrUnknownRadio = errors.New("unknown radio")
)

// SendError is a transport-level send failure. Nothing in the router changes
// state when a send fails.
type SendError struct {
	Radio core.Radio
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending on %s: %v", e.Radio, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
