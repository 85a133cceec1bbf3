// Package router connects the active radio transport to the chat state.
//
// The Router sits between a transport and the rest of the device. For every
// received frame it:
//   - Drops radio noise before decoding
//   - Decodes the frame and writes a RECV line to the activity log
//   - Updates presence and answers newly arrived peers with a ping
//   - Delivers chat text to its channel list
//   - Optionally echoes the message back with its signal strength
//
// Outgoing text is encoded, sent on the active transport and mirrored to the
// activity log with its raw bytes. Only one transport is active at a time.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kabili207/lorachat/core"
	"github.com/kabili207/lorachat/core/codec"
	"github.com/kabili207/lorachat/core/config"
	"github.com/kabili207/lorachat/core/logstore"
	"github.com/kabili207/lorachat/core/presence"
	"github.com/kabili207/lorachat/device/chat"
	"github.com/kabili207/lorachat/transport"
)

const (
	// DefaultAckHoldoff is the minimum time since the last transmission
	// before a newly arrived peer is answered with a ping.
	DefaultAckHoldoff = time.Second

	// DefaultQueueSize is the capacity of the inbound frame queue used
	// after Start.
	DefaultQueueSize = 16

	// SendFailedText is the local chat line shown when a send fails.
	SendFailedText = "send failed"
)

// MessageHandler is called for every chat message delivered to a channel,
// including this device's own messages and echo replies.
type MessageHandler func(channel uint8, msg codec.Message)

// Config configures a Router.
type Config struct {
	// Runtime supplies the username and repeat mode. Required.
	Runtime *config.Runtime

	// Presence records peers heard on any transport. Default: a new Tracker.
	Presence *presence.Tracker

	// Chat receives delivered messages. Default: a new chat.Channels.
	Chat *chat.Channels

	// Log is the activity log. Nil disables activity logging.
	Log *logstore.Store

	// LogNoise writes diagnostic lines (verdict, signal strength, raw
	// packet) to the activity log for every frame classified as noise.
	LogNoise bool

	// AckHoldoff is the minimum time since the last transmission before a
	// new peer is acknowledged. Default: 1s.
	AckHoldoff time.Duration

	// QueueSize is the inbound frame queue capacity. Default: 16. Only used
	// when Start() is called.
	QueueSize int

	// Logger for routing events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

type inbound struct {
	frame []byte
	rssi  int
	radio core.Radio
}

// Router handles frame dispatch for one device.
type Router struct {
	cfg      Config
	log      *slog.Logger
	counters Counters

	// txMu serialises transmissions and guards counter.
	txMu    sync.Mutex
	counter uint8

	// switchMu serialises transport switches.
	switchMu sync.Mutex

	mu        sync.RWMutex
	active    transport.Transport
	lastRx    time.Time
	lastTx    time.Time
	onMessage MessageHandler

	frames  chan inbound
	cancel  context.CancelFunc
	done    chan struct{}
	started bool

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// New creates a Router with the given configuration.
func New(cfg Config) *Router {
	if cfg.Runtime == nil {
		cfg.Runtime = config.NewRuntime(config.Defaults())
	}
	if cfg.AckHoldoff <= 0 {
		cfg.AckHoldoff = DefaultAckHoldoff
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Presence == nil {
		cfg.Presence = presence.New(presence.Config{Logger: logger})
	}
	if cfg.Chat == nil {
		cfg.Chat = chat.New(chat.Config{})
	}

	return &Router{
		cfg:   cfg,
		log:   logger.WithGroup("router"),
		nowFn: time.Now,
	}
}

// Start begins the inbound dispatch goroutine. Frames delivered by the
// transport are queued and handled one at a time in arrival order. If Start
// is never called, frames are handled synchronously on the transport's
// goroutine.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.frames = make(chan inbound, r.cfg.QueueSize)
	r.done = make(chan struct{})
	r.started = true
	go r.dispatchLoop(ctx, r.frames, r.done)
}

// Stop cancels the dispatch goroutine and waits for it to finish. Queued
// frames that were not yet handled are dropped.
func (r *Router) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.started = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *Router) dispatchLoop(ctx context.Context, frames <-chan inbound, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-frames:
			r.HandleFrame(in.frame, in.rssi, in.radio)
		}
	}
}

// enqueue queues a frame if the dispatch goroutine is running, otherwise
// handles it synchronously.
func (r *Router) enqueue(frame []byte, rssi int, radio core.Radio) {
	r.mu.RLock()
	started, frames := r.started, r.frames
	r.mu.RUnlock()

	if !started {
		r.HandleFrame(frame, rssi, radio)
		return
	}

	in := inbound{frame: append([]byte(nil), frame...), rssi: rssi, radio: radio}
	select {
	case frames <- in:
	default:
		r.log.Warn("inbound queue full, handling frame inline", "radio", radio)
		r.HandleFrame(in.frame, in.rssi, in.radio)
	}
}

// SetMessageHandler sets the callback for delivered chat messages.
func (r *Router) SetMessageHandler(fn MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMessage = fn
}

// Counters returns the router's statistics.
func (r *Router) Counters() *Counters {
	return &r.counters
}

// Presence returns the presence tracker fed by this router.
func (r *Router) Presence() *presence.Tracker {
	return r.cfg.Presence
}

// Chat returns the channel message lists fed by this router.
func (r *Router) Chat() *chat.Channels {
	return r.cfg.Chat
}

// Transport returns the active transport, or nil.
func (r *Router) Transport() transport.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Activity returns the instants of the last received and the last
// successfully transmitted frame. Zero values mean none since the last
// transport switch.
func (r *Router) Activity() (lastRx, lastTx time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRx, r.lastTx
}

// SwitchTransport tears down the active transport and brings up next in its
// place. The two are never active together: sends made during the switch
// fail with ErrNoTransport. A nil next only tears down.
func (r *Router) SwitchTransport(ctx context.Context, next transport.Transport) error {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	r.mu.Lock()
	prev := r.active
	r.active = nil
	r.lastRx = time.Time{}
	r.lastTx = time.Time{}
	r.mu.Unlock()

	// Wait for a send already in flight on prev.
	r.txMu.Lock()
	r.txMu.Unlock()

	if prev != nil {
		prev.SetFrameHandler(nil)
		if err := prev.Stop(); err != nil {
			r.log.Warn("stopping transport", "radio", prev.Radio(), "error", err)
		}
		r.log.Info("transport stopped", "radio", prev.Radio())
	}

	if next == nil {
		return nil
	}
	if !next.Radio().IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownRadio, next.Radio())
	}

	next.SetFrameHandler(r.enqueue)
	if err := next.Start(ctx); err != nil {
		next.SetFrameHandler(nil)
		return fmt.Errorf("starting %s transport: %w", next.Radio(), err)
	}

	r.mu.Lock()
	r.active = next
	r.mu.Unlock()
	r.cfg.Runtime.SetRadio(next.Radio())

	r.log.Info("transport active", "radio", next.Radio())
	return nil
}

// Send encodes text for channel and transmits it on the active transport,
// blocking until the transport reports the outcome. The returned message is
// this device's own copy: empty username, the counter the frame carried.
// On failure nothing changes and the error is a *SendError, ErrNoTransport
// or wraps ErrTransportNotConnected.
func (r *Router) Send(channel uint8, text string) (codec.Message, error) {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	t := r.Transport()
	if t == nil {
		return codec.Message{}, ErrNoTransport
	}
	radio := t.Radio()
	if !t.IsConnected() {
		return codec.Message{}, &SendError{Radio: radio, Err: ErrTransportNotConnected}
	}

	text = truncateText(text)
	frame := codec.EncodeFrame(channel, r.counter, r.cfg.Runtime.Username(), text)

	if err := t.SendFrame(frame); err != nil {
		r.counters.SendFailures.Add(1)
		r.log.Warn("failed to send frame", "radio", radio, "channel", channel, "error", err)
		return codec.Message{}, &SendError{Radio: radio, Err: err}
	}

	msg := codec.Message{
		Channel: channel & codec.HeaderChannelMask,
		Counter: r.counter,
		Text:    text,
		Radio:   radio,
	}
	r.counter = (r.counter + 1) & codec.HeaderCounterMask

	r.mu.Lock()
	r.lastTx = r.nowFn()
	r.mu.Unlock()
	r.counters.FramesSent.Add(1)

	hex := codec.HexDump(frame)
	r.log.Debug("sent frame", "radio", radio, "channel", msg.Channel, "raw", hex)
	r.appendLog(fmt.Sprintf("SENT %s, Ch:%d, Msg:%s, Raw:%s", radio, msg.Channel, text, hex))

	return msg, nil
}

// SendPing transmits an empty keep-alive frame on the ping channel.
func (r *Router) SendPing() error {
	_, err := r.Send(codec.ChannelPing, "")
	return err
}

// SendChat sends user input on a chat channel and records the outcome in
// that channel's list: the own message on success, a "send failed" line
// otherwise. Input is trimmed; blank input returns ErrEmptyMessage and
// sends nothing.
func (r *Router) SendChat(channel uint8, input string) (codec.Message, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return codec.Message{}, ErrEmptyMessage
	}

	msg, err := r.Send(channel, text)
	if err != nil {
		r.deliver(channel, codec.Message{Channel: channel, Text: SendFailedText})
		return codec.Message{}, err
	}
	r.deliver(channel, msg)
	return msg, nil
}

// HandleFrame processes one received frame. It is safe to call directly;
// transports reach it through the router's queue.
func (r *Router) HandleFrame(frame []byte, rssi int, radio core.Radio) {
	r.counters.FramesRecv.Add(1)
	hex := codec.HexDump(frame)

	// Gate 1: noise, before any decoding
	if reason := codec.ClassifyNoise(frame, rssi); reason != codec.NotNoise {
		r.counters.NoiseDropped.Add(1)
		r.log.Debug("noise ignored", "reason", reason, "raw", hex, "rssi", rssi, "radio", radio)
		if r.cfg.LogNoise {
			r.appendLog(fmt.Sprintf("[DEBUG] Noise ignored: %s, RSSI: %d", hex, rssi))
			r.appendLog(fmt.Sprintf("[%s] RSSI: %d", strings.ToUpper(radio.String()), rssi))
			r.appendLog(fmt.Sprintf("[RAW] Packet: %s, RSSI: %d", hex, rssi))
		}
		return
	}

	// Gate 2: decode. Out-of-range buffers yield an empty message, which the
	// following gates drop.
	msg, err := codec.DecodeFrame(frame)
	if err != nil {
		r.log.Debug("rejected frame", "error", err, "len", len(frame), "radio", radio)
	}
	msg.Radio = radio
	msg.RSSI = rssi

	r.mu.Lock()
	r.lastRx = r.nowFn()
	r.mu.Unlock()

	if msg.IsComplete() {
		r.appendLog(fmt.Sprintf("RECV %s, Ch:%d, From:%s, RSSI:%d, Msg:%s, Raw:%s",
			radio, msg.Channel, msg.Username, rssi, msg.Text, hex))
	} else {
		r.counters.Undecoded.Add(1)
		r.appendLog(fmt.Sprintf("RECV %s, UNKNOWN FORMAT, RSSI:%d, Raw:%s", radio, rssi, hex))
	}
	r.log.Debug("received frame",
		"radio", radio, "channel", msg.Channel, "counter", msg.Counter,
		"username", msg.Username, "text", msg.Text, "rssi", rssi)

	// Gate 3: presence, and an acknowledgement ping for arrivals
	if msg.Username != "" {
		obs := r.cfg.Presence.Observe(msg.Username, radio, rssi)
		if obs.IsArrival() && r.shouldAck() {
			r.log.Debug("new presence, sending response ping", "username", msg.Username, "observation", obs)
			if err := r.SendPing(); err == nil {
				r.counters.AcksSent.Add(1)
			}
		}
	}

	// Gate 4: pure presence pings stop here
	if msg.IsPing() {
		if msg.Username != "" {
			r.counters.PingsRecv.Add(1)
		}
		return
	}

	if !r.deliver(msg.Channel, msg) {
		r.log.Debug("dropping text on non-chat channel", "channel", msg.Channel, "username", msg.Username)
		return
	}
	r.counters.MessagesRecv.Add(1)

	// Gate 5: auto-echo
	if r.cfg.Runtime.RepeatMode() {
		r.echo(msg)
	}
}

// shouldAck reports whether an arrival may be answered now. Repeat mode
// suppresses acknowledgements, and so does a transmission within the
// holdoff, so two devices that discover each other do not ping-pong.
func (r *Router) shouldAck() bool {
	if r.cfg.Runtime.RepeatMode() {
		return false
	}
	r.mu.RLock()
	lastTx := r.lastTx
	r.mu.RUnlock()
	return r.nowFn().Sub(lastTx) > r.cfg.AckHoldoff
}

// echo replies to msg on its channel with the sender, text and signal
// strength. The reply is shown on the active channel.
func (r *Router) echo(msg codec.Message) {
	reply := fmt.Sprintf("name: %s, msg: %s, rssi: %d", msg.Username, msg.Text, msg.RSSI)
	sent, err := r.Send(msg.Channel, reply)
	if err != nil {
		r.log.Warn("failed to send echo", "error", err)
		return
	}
	r.counters.EchoesSent.Add(1)
	r.deliverActive(sent)
}

// deliver appends msg to a channel list and notifies the message handler.
func (r *Router) deliver(channel uint8, msg codec.Message) bool {
	if !r.cfg.Chat.Append(channel, msg) {
		return false
	}

	r.notify(channel, msg)
	return true
}

// deliverActive appends msg to the active channel and notifies the message
// handler.
func (r *Router) deliverActive(msg codec.Message) {
	r.notify(r.cfg.Chat.AppendActive(msg), msg)
}

func (r *Router) notify(channel uint8, msg codec.Message) {
	r.mu.RLock()
	handler := r.onMessage
	r.mu.RUnlock()

	if handler != nil {
		handler(channel, msg)
	}
}

func (r *Router) appendLog(line string) {
	if r.cfg.Log == nil {
		return
	}
	if err := r.cfg.Log.Append(line); err != nil {
		r.log.Warn("activity log append failed", "error", err)
	}
}

func truncateText(s string) string {
	if len(s) > codec.MaxTextLen {
		return s[:codec.MaxTextLen]
	}
	return s
}
