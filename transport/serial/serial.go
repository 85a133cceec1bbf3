// Package serial provides a LoRa transport for E220 radio modules attached
// over a UART.
//
// The E220 has no framing of its own on the serial side. In transparent mode
// every on-air packet is written to the UART as one burst, followed by a
// single RSSI byte when RSSI output is enabled in the module's registers. This
// transport splits the byte stream into packets on inter-byte silence and
// exposes the same Transport interface as the MQTT transport.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kabili207/lorachat/core"
	"github.com/kabili207/lorachat/core/codec"
	"github.com/kabili207/lorachat/transport"
	"go.bug.st/serial"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultBaudRate is the E220 factory UART speed.
	DefaultBaudRate = 9600

	// DefaultFrameGap is the silence that ends a received packet.
	DefaultFrameGap = 100 * time.Millisecond

	// BroadcastAddress reaches every module on the same air channel in
	// fixed transmission mode.
	BroadcastAddress = 0xFFFF

	// readBufSize is the size of the serial read buffer.
	readBufSize = 256

	// maxBurst bounds one received packet: the largest frame plus the
	// trailing RSSI byte.
	maxBurst = codec.MaxFrameSize + 1
)

// ErrNotConnected is returned when sending on a closed port.
var ErrNotConnected = errors.New("serial: not connected")

// Config holds the configuration for a serial transport.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 9600.
	BaudRate int
	// FrameGap is the read silence that terminates a packet. Defaults to 100ms.
	FrameGap time.Duration
	// FixedMode prefixes every transmitted frame with the target address and
	// air channel, as the E220 expects in fixed transmission mode.
	FixedMode bool
	// TargetAddress is the destination module address in fixed mode.
	// Zero selects BroadcastAddress.
	TargetAddress uint16
	// AirChannel is the E220 channel number used in fixed mode.
	AirChannel uint8
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over an E220 UART.
type Transport struct {
	cfg          Config
	port         serial.Port
	log          *slog.Logger
	mu           sync.RWMutex
	writeMu      sync.Mutex
	connected    bool
	cancel       context.CancelFunc
	done         chan struct{}
	frameHandler transport.FrameHandler
	stateHandler transport.StateHandler
}

// New creates a new serial transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.FrameGap <= 0 {
		cfg.FrameGap = DefaultFrameGap
	}
	if cfg.TargetAddress == 0 {
		cfg.TargetAddress = BroadcastAddress
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Transport{
		cfg: cfg,
		log: cfg.Logger.WithGroup("serial"),
	}
}

// Radio reports core.RadioLoRa.
func (t *Transport) Radio() core.Radio { return core.RadioLoRa }

// Start opens the serial port and begins reading packets.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Port == "" {
		return errors.New("serial port is required")
	}

	mode := &serial.Mode{
		BaudRate: t.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(t.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}
	if err := port.SetReadTimeout(t.cfg.FrameGap); err != nil {
		port.Close()
		return fmt.Errorf("setting read timeout: %w", err)
	}

	t.mu.Lock()
	t.port = port
	t.connected = true
	done := make(chan struct{})
	t.done = done
	handler := t.stateHandler
	t.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.readLoop(readCtx, port, done)

	t.log.Info("connected to serial port", "port", t.cfg.Port, "baud", t.cfg.BaudRate)

	if handler != nil {
		handler(t, transport.EventConnected)
	}

	return nil
}

// Stop closes the serial port and stops the read loop.
func (t *Transport) Stop() error {
	t.mu.Lock()
	handler := t.stateHandler
	wasConnected := t.connected
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	t.connected = false
	port := t.port
	t.port = nil
	done := t.done
	t.done = nil
	t.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}

	// Wait for read loop to finish
	if done != nil {
		<-done
	}

	if handler != nil && wasConnected {
		handler(t, transport.EventDisconnected)
	}

	return err
}

// IsConnected returns true if the serial port is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetFrameHandler sets the callback for incoming frames.
func (t *Transport) SetFrameHandler(fn transport.FrameHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameHandler = fn
}

// SetStateHandler sets the callback for transport state changes.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// SendFrame writes one frame to the module, which transmits it on air.
func (t *Transport) SendFrame(frame []byte) error {
	t.mu.RLock()
	port := t.port
	connected := t.connected
	t.mu.RUnlock()

	if !connected || port == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := port.Write(t.wrapFrame(frame)); err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}
	if err := port.Drain(); err != nil {
		return fmt.Errorf("draining serial port: %w", err)
	}
	return nil
}

// wrapFrame adds the fixed-mode routing prefix when configured.
func (t *Transport) wrapFrame(frame []byte) []byte {
	if !t.cfg.FixedMode {
		return frame
	}
	out := make([]byte, 0, len(frame)+3)
	out = append(out, byte(t.cfg.TargetAddress>>8), byte(t.cfg.TargetAddress), t.cfg.AirChannel)
	return append(out, frame...)
}

// readLoop reads bursts from the port and hands each completed packet on.
// A read that times out with no data marks the end of a packet.
func (t *Transport) readLoop(ctx context.Context, port serial.Port, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readBufSize)
	var asm assembler

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return // context cancelled, clean shutdown
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				t.log.Error("serial read error", "error", err)
			}
			t.handleDisconnect(err)
			return
		}

		if n == 0 {
			if burst := asm.flush(); burst != nil {
				t.processBurst(burst)
			}
			continue
		}

		for _, burst := range asm.feed(buf[:n]) {
			t.processBurst(burst)
		}
	}
}

// processBurst splits the trailing RSSI byte off one received packet and
// dispatches the frame.
func (t *Transport) processBurst(burst []byte) {
	if len(burst) < 2 {
		t.log.Debug("dropping short burst", "len", len(burst))
		return
	}

	rssi := DecodeRSSI(burst[len(burst)-1])
	frame := burst[:len(burst)-1]

	t.mu.RLock()
	handler := t.frameHandler
	t.mu.RUnlock()

	if handler != nil {
		handler(frame, rssi, core.RadioLoRa)
	}
}

// DecodeRSSI converts the E220 RSSI register byte to dBm.
func DecodeRSSI(b byte) int {
	return -(256 - int(b))
}

// assembler accumulates UART bytes into packet bursts.
type assembler struct {
	buf []byte
}

// feed appends data and returns any bursts that reached the maximum packet
// size. Remaining bytes stay buffered until the next flush.
func (a *assembler) feed(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		room := min(maxBurst-len(a.buf), len(data))
		a.buf = append(a.buf, data[:room]...)
		data = data[room:]
		if len(a.buf) == maxBurst {
			out = append(out, a.flush())
		}
	}
	return out
}

// flush returns the buffered burst, or nil if nothing is buffered.
func (a *assembler) flush() []byte {
	if len(a.buf) == 0 {
		return nil
	}
	burst := a.buf
	a.buf = nil
	return burst
}

func (t *Transport) handleDisconnect(err error) {
	t.mu.Lock()
	t.connected = false
	handler := t.stateHandler
	t.mu.Unlock()

	if err != nil {
		t.log.Error("serial disconnected", "error", err)
	}

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}
}
