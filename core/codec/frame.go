// Package codec implements the LoRaChat wire format.
//
// Every transport carries the same frame layout:
//
//	byte 0      header: bits 0-5 sender counter, bits 6-7 channel
//	bytes 1..K  username followed by a 0x00 terminator
//	bytes K+1.. text followed by a 0x00 terminator, only when text is non-empty
//
// A frame with an empty text is a keep-alive ping.
package codec

import (
	"bytes"
	"errors"

	"github.com/kabili207/lorachat/core"
)

const (
	// Header bit masks and shifts
	HeaderCounterMask  = 0x3F // 6-bit sender counter
	HeaderChannelShift = 6
	HeaderChannelMask  = 0x03 // 2-bit channel

	// Channels
	ChannelA    = 0x00
	ChannelB    = 0x01
	ChannelC    = 0x02
	ChannelPing = 0x03 // Reserved for keep-alive pings

	// ChatChannelCount is the number of channels that carry visible chat.
	ChatChannelCount = 3

	// Size limits
	HeaderSize     = 1
	MinUsernameLen = 2
	MaxUsernameLen = 8
	MaxTextLen     = 100

	// MinFrameSize is header + shortest username + terminator.
	MinFrameSize = HeaderSize + MinUsernameLen + 1
	// MaxFrameSize is header + longest username and text, each terminated.
	MaxFrameSize = HeaderSize + MaxUsernameLen + 1 + MaxTextLen + 1
)

var (
	ErrFrameTooShort = errors.New("frame too short")
	ErrFrameTooLong  = errors.New("frame too long")
)

// Message is a decoded frame, optionally tagged with the radio that carried it
// and the signal strength the radio reported.
//
// An empty Username marks a message composed on this device. An empty Text
// from a peer is a presence ping and is never shown as a chat line.
type Message struct {
	Channel  uint8
	Counter  uint8
	Username string
	Text     string
	Radio    core.Radio
	RSSI     int
}

// IsOwn returns true for messages composed on this device.
func (m *Message) IsOwn() bool {
	return m.Username == ""
}

// IsPing returns true if the message carries no text.
func (m *Message) IsPing() bool {
	return m.Text == ""
}

// IsComplete returns true if both username and text were recovered.
func (m *Message) IsComplete() bool {
	return m.Username != "" && m.Text != ""
}

// Header packs a channel and sender counter into the frame header byte.
// The counter wraps at 64.
func Header(channel, counter uint8) byte {
	return (counter & HeaderCounterMask) | ((channel & HeaderChannelMask) << HeaderChannelShift)
}

// EncodeFrame builds a frame from its parts. Username and text are truncated
// to MaxUsernameLen and MaxTextLen bytes and are always terminated. When text
// is empty the text section is omitted entirely.
func EncodeFrame(channel, counter uint8, username, text string) []byte {
	u := truncate(username, MaxUsernameLen)
	m := truncate(text, MaxTextLen)

	size := HeaderSize + len(u) + 1
	if len(m) > 0 {
		size += len(m) + 1
	}

	frame := make([]byte, 0, size)
	frame = append(frame, Header(channel, counter))
	frame = append(frame, u...)
	frame = append(frame, 0)
	if len(m) > 0 {
		frame = append(frame, m...)
		frame = append(frame, 0)
	}
	return frame
}

// DecodeFrame parses a frame. Buffers outside [MinFrameSize, MaxFrameSize]
// are rejected with a zero Message. Otherwise decoding always succeeds; a
// frame that yields an empty username or text is left for the caller to judge.
//
// The username is read up to its terminator, or up to MaxUsernameLen bytes if
// no terminator appears in that region. Everything after the username's
// terminator position is text, stopping at the first 0x00. When the username
// is empty the text read starts at its terminator and is empty too, so a
// received frame never decodes as a message of this device's own.
func DecodeFrame(data []byte) (Message, error) {
	var msg Message
	if len(data) < MinFrameSize {
		return msg, ErrFrameTooShort
	}
	if len(data) > MaxFrameSize {
		return msg, ErrFrameTooLong
	}

	msg.Counter = data[0] & HeaderCounterMask
	msg.Channel = (data[0] >> HeaderChannelShift) & HeaderChannelMask

	offset := HeaderSize
	end := min(len(data), offset+MaxUsernameLen)
	msg.Username = string(cstring(data[offset:end]))
	if msg.Username != "" {
		offset += len(msg.Username) + 1
	}

	if offset < len(data) {
		msg.Text = string(cstring(data[offset:]))
	}
	return msg, nil
}

// cstring returns b up to, not including, the first 0x00.
func cstring(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
