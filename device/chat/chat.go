// Package chat holds the per-channel message lists shown by the device and
// tracks which chat channel is active.
package chat

import (
	"sync"

	"github.com/kabili207/lorachat/core/codec"
)

// DefaultMaxMessages bounds each channel's history.
const DefaultMaxMessages = 200

// Config configures a Channels set.
type Config struct {
	// MaxMessages is the number of messages kept per channel; older ones
	// are dropped. Default: 200.
	MaxMessages int
}

// Channels stores the messages of every chat channel.
type Channels struct {
	mu     sync.RWMutex
	max    int
	lists  [codec.ChatChannelCount][]codec.Message
	active uint8
	unread [codec.ChatChannelCount]int
}

// New creates an empty Channels set with channel A active.
func New(cfg Config) *Channels {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultMaxMessages
	}
	return &Channels{max: cfg.MaxMessages, active: codec.ChannelA}
}

// Append adds msg to the list of the given channel. Messages addressed to
// the ping channel or beyond are not chat lines and are ignored; the return
// value reports whether the message was stored.
func (c *Channels) Append(channel uint8, msg codec.Message) bool {
	if int(channel) >= codec.ChatChannelCount {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(channel, msg)
	return true
}

// AppendActive adds msg to the active channel's list and returns that
// channel. The channel cannot change between the lookup and the append.
func (c *Channels) AppendActive(msg codec.Message) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(c.active, msg)
	return c.active
}

func (c *Channels) appendLocked(channel uint8, msg codec.Message) {
	list := append(c.lists[channel], msg)
	if over := len(list) - c.max; over > 0 {
		list = append(list[:0:0], list[over:]...)
	}
	c.lists[channel] = list
	if channel != c.active {
		c.unread[channel]++
	}
}

// Messages returns a copy of the channel's messages, oldest first.
func (c *Channels) Messages(channel uint8) []codec.Message {
	if int(channel) >= codec.ChatChannelCount {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]codec.Message, len(c.lists[channel]))
	copy(out, c.lists[channel])
	return out
}

// Active returns the active chat channel.
func (c *Channels) Active() uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SetActive selects the active chat channel and clears its unread count.
// Values outside the chat channels are ignored.
func (c *Channels) SetActive(channel uint8) {
	if int(channel) >= codec.ChatChannelCount {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = channel
	c.unread[channel] = 0
}

// Unread returns the number of messages appended to a channel while it was
// not active.
func (c *Channels) Unread(channel uint8) int {
	if int(channel) >= codec.ChatChannelCount {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread[channel]
}

// ChannelName returns the tab label of a chat channel.
func ChannelName(channel uint8) string {
	switch channel {
	case codec.ChannelA:
		return "A"
	case codec.ChannelB:
		return "B"
	case codec.ChannelC:
		return "C"
	case codec.ChannelPing:
		return "ping"
	default:
		return "?"
	}
}
