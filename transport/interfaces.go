// Package transport provides the radio transport interface and its
// implementations. Every transport carries the same raw LoRaChat frames;
// framing and signal strength reporting are the transport's concern.
package transport

import (
	"context"

	"github.com/kabili207/lorachat/core"
)

// Transport is the base interface for all transport implementations.
type Transport interface {
	// Start brings the radio up and begins delivering frames.
	// The provided context controls the transport's lifetime.
	Start(ctx context.Context) error
	// Stop tears the radio down. No frames are delivered after Stop returns.
	Stop() error
	// IsConnected returns true if the transport can currently send.
	IsConnected() bool
	// Radio identifies which radio this transport drives.
	Radio() core.Radio
	// SetFrameHandler sets the callback for incoming frames.
	SetFrameHandler(fn FrameHandler)
	// SetStateHandler sets the callback for transport state changes.
	SetStateHandler(fn StateHandler)
	// SendFrame transmits one raw frame, blocking until the radio reports
	// success or failure.
	SendFrame(frame []byte) error
}

// FrameHandler is called once per received frame, from a single goroutine
// per transport, in arrival order. rssi is the radio-reported signal strength.
type FrameHandler func(frame []byte, rssi int, radio core.Radio)

// StateHandler is called when the transport state changes.
type StateHandler func(transport Transport, event Event)

// Event represents transport state change events.
type Event int

const (
	// EventConnected is fired when the transport connects.
	EventConnected Event = iota
	// EventDisconnected is fired when the transport disconnects.
	EventDisconnected
	// EventReconnecting is fired when the transport is attempting to reconnect.
	EventReconnecting
	// EventError is fired when an error occurs.
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
