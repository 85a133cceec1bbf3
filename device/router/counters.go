package router

import "sync/atomic"

// Counters tracks frame handling statistics using atomic counters.
// All fields are safe for concurrent access.
type Counters struct {
	FramesRecv   atomic.Uint32 // Frames handed over by a transport
	NoiseDropped atomic.Uint32 // Frames classified as noise
	Undecoded    atomic.Uint32 // Frames missing a username or text
	MessagesRecv atomic.Uint32 // Chat messages delivered to a channel
	PingsRecv    atomic.Uint32 // Presence pings from peers
	FramesSent   atomic.Uint32 // Frames accepted by the transport
	SendFailures atomic.Uint32 // Frames the transport refused
	AcksSent     atomic.Uint32 // Presence acknowledgement pings
	EchoesSent   atomic.Uint32 // Auto-echo replies
}

// CountersSnapshot is a plain-value copy of Counters for reading.
type CountersSnapshot struct {
	FramesRecv   uint32
	NoiseDropped uint32
	Undecoded    uint32
	MessagesRecv uint32
	PingsRecv    uint32
	FramesSent   uint32
	SendFailures uint32
	AcksSent     uint32
	EchoesSent   uint32
}

// Snapshot returns a consistent point-in-time copy of all counters.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		FramesRecv:   c.FramesRecv.Load(),
		NoiseDropped: c.NoiseDropped.Load(),
		Undecoded:    c.Undecoded.Load(),
		MessagesRecv: c.MessagesRecv.Load(),
		PingsRecv:    c.PingsRecv.Load(),
		FramesSent:   c.FramesSent.Load(),
		SendFailures: c.SendFailures.Load(),
		AcksSent:     c.AcksSent.Load(),
		EchoesSent:   c.EchoesSent.Load(),
	}
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	c.FramesRecv.Store(0)
	c.NoiseDropped.Store(0)
	c.Undecoded.Store(0)
	c.MessagesRecv.Store(0)
	c.PingsRecv.Store(0)
	c.FramesSent.Store(0)
	c.SendFailures.Store(0)
	c.AcksSent.Store(0)
	c.EchoesSent.Store(0)
}
