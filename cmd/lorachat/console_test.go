package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kabili207/lorachat/core"
	"github.com/kabili207/lorachat/core/clock"
	"github.com/kabili207/lorachat/core/codec"
	"github.com/kabili207/lorachat/core/config"
	"github.com/kabili207/lorachat/core/logstore"
	"github.com/kabili207/lorachat/device/router"
	"github.com/kabili207/lorachat/transport"
)

// mockTransport implements transport.Transport for testing.
type mockTransport struct {
	mu   sync.Mutex
	sent [][]byte
}

func (m *mockTransport) Start(_ context.Context) error            { return nil }
func (m *mockTransport) Stop() error                              { return nil }
func (m *mockTransport) IsConnected() bool                        { return true }
func (m *mockTransport) Radio() core.Radio                        { return core.RadioLoRa }
func (m *mockTransport) SetFrameHandler(_ transport.FrameHandler) {}
func (m *mockTransport) SetStateHandler(_ transport.StateHandler) {}

func (m *mockTransport) SendFrame(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, frame)
	return nil
}

type testConsole struct {
	*console
	buf      *bytes.Buffer
	mt       *mockTransport
	switched []core.Radio
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()
	dir := t.TempDir()
	rt := config.NewRuntime(config.Defaults())
	clk := clock.New()
	store := logstore.New(logstore.Config{Path: filepath.Join(dir, "logs.txt"), Clock: clk})
	r := router.New(router.Config{Runtime: rt, Log: store})
	mt := &mockTransport{}
	if err := r.SwitchTransport(context.Background(), mt); err != nil {
		t.Fatalf("SwitchTransport: %v", err)
	}

	tc := &testConsole{buf: &bytes.Buffer{}, mt: mt}
	tc.console = newConsole(tc.buf, r, rt, store, clk, filepath.Join(dir, "LoRaChat.conf"),
		func(_ context.Context, radio core.Radio) error {
			tc.switched = append(tc.switched, radio)
			return nil
		})
	r.SetMessageHandler(tc.showMessage)
	return tc
}

func (tc *testConsole) run(t *testing.T, line string) string {
	t.Helper()
	tc.buf.Reset()
	if !tc.handle(context.Background(), line) {
		t.Fatalf("handle(%q) requested quit", line)
	}
	return tc.buf.String()
}

func TestConsole_SendChat(t *testing.T) {
	tc := newTestConsole(t)

	out := tc.run(t, "hello")
	if !strings.Contains(out, "[A] me: hello") {
		t.Errorf("output = %q, want own message on channel A", out)
	}
	if len(tc.mt.sent) != 1 {
		t.Fatalf("expected 1 frame sent, got %d", len(tc.mt.sent))
	}

	tc.run(t, "/ch b")
	tc.run(t, "on b")
	msg, err := codec.DecodeFrame(tc.mt.sent[1])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if msg.Channel != codec.ChannelB {
		t.Errorf("channel = %d, want B", msg.Channel)
	}
}

func TestConsole_ShowsReceived(t *testing.T) {
	tc := newTestConsole(t)
	tc.buf.Reset()

	tc.router.HandleFrame(codec.EncodeFrame(codec.ChannelC, 0, "bob", "hi"), -61, core.RadioLoRa)
	if out := tc.buf.String(); !strings.Contains(out, "[C] bob: hi (LoRa -61)") {
		t.Errorf("output = %q", out)
	}
}

func TestConsole_Channel(t *testing.T) {
	tc := newTestConsole(t)
	if out := tc.run(t, "/ch c"); !strings.Contains(out, "channel C") {
		t.Errorf("output = %q", out)
	}
	if tc.router.Chat().Active() != codec.ChannelC {
		t.Error("expected channel C active")
	}
	if out := tc.run(t, "/ch z"); !strings.Contains(out, "usage") {
		t.Errorf("output = %q, want usage", out)
	}
}

func TestConsole_Log(t *testing.T) {
	tc := newTestConsole(t)
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		tc.run(t, text)
	}

	out := tc.run(t, "/log")
	if !strings.Contains(out, "Msg:five") || !strings.Contains(out, "page 2 / 2") {
		t.Errorf("latest page output = %q", out)
	}

	out = tc.run(t, "/log prev")
	if !strings.Contains(out, "Msg:one") || !strings.Contains(out, "page 1 / 2") {
		t.Errorf("previous page output = %q", out)
	}

	out = tc.run(t, "/log 9")
	if !strings.Contains(out, "page 2 / 2") {
		t.Errorf("out-of-range page should clamp, output = %q", out)
	}

	if out := tc.run(t, "/log x"); !strings.Contains(out, "usage") {
		t.Errorf("output = %q, want usage", out)
	}
}

func TestConsole_Who(t *testing.T) {
	tc := newTestConsole(t)
	if out := tc.run(t, "/who"); !strings.Contains(out, "nobody heard on LoRa") {
		t.Errorf("output = %q", out)
	}

	tc.router.HandleFrame(codec.EncodeFrame(codec.ChannelPing, 0, "bob", ""), -70, core.RadioLoRa)
	out := tc.run(t, "/who")
	if !strings.Contains(out, "bob") || !strings.Contains(out, "RSSI: -70") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "strongest signal: -70") {
		t.Errorf("output = %q, want strongest signal", out)
	}
}

func TestConsole_Settings(t *testing.T) {
	tc := newTestConsole(t)

	if out := tc.run(t, "/name x"); !strings.Contains(out, "must be") {
		t.Errorf("short name accepted: %q", out)
	}
	tc.run(t, "/name Carol")
	if got := tc.runtime.Username(); got != "carol" {
		t.Errorf("username = %q, want carol", got)
	}

	tc.run(t, "/ping off")
	if tc.runtime.PingMode() {
		t.Error("expected ping mode off")
	}
	tc.run(t, "/repeat on")
	if !tc.runtime.RepeatMode() {
		t.Error("expected repeat mode on")
	}
	if out := tc.run(t, "/repeat maybe"); !strings.Contains(out, "usage") {
		t.Errorf("output = %q, want usage", out)
	}
}

func TestConsole_Save(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "/name dave")

	// No file yet: writes on the first press.
	if out := tc.run(t, "/save"); !strings.Contains(out, "settings saved") {
		t.Fatalf("first save output = %q", out)
	}
	data, err := os.ReadFile(tc.settingsPath)
	if err != nil {
		t.Fatalf("reading settings: %v", err)
	}
	if !strings.Contains(string(data), "username=dave") {
		t.Errorf("settings file = %q", data)
	}

	// File exists: confirmation needed.
	if out := tc.run(t, "/save"); !strings.Contains(out, "again to overwrite") {
		t.Errorf("second save output = %q", out)
	}
	// Any other command cancels the confirmation.
	tc.run(t, "/stats")
	if out := tc.run(t, "/save"); !strings.Contains(out, "again to overwrite") {
		t.Errorf("save after cancel output = %q", out)
	}
	if out := tc.run(t, "/save"); !strings.Contains(out, "settings saved") {
		t.Errorf("confirmed save output = %q", out)
	}
}

func TestConsole_Radio(t *testing.T) {
	tc := newTestConsole(t)
	if out := tc.run(t, "/radio espnow"); !strings.Contains(out, "radio ESP-NOW") {
		t.Errorf("output = %q", out)
	}
	if len(tc.switched) != 1 || tc.switched[0] != core.RadioESPNow {
		t.Errorf("switched = %v", tc.switched)
	}

	tc.switchRadio = func(context.Context, core.Radio) error { return errors.New("no broker") }
	if out := tc.run(t, "/radio lora"); !strings.Contains(out, "no broker") {
		t.Errorf("output = %q, want error", out)
	}
}

func TestConsole_Time(t *testing.T) {
	tc := newTestConsole(t)
	if out := tc.run(t, "/time soon"); !strings.Contains(out, "usage") {
		t.Errorf("output = %q, want usage", out)
	}
	if out := tc.run(t, "/time 2026-05-04 03:02:01"); !strings.Contains(out, "clock 05-04 03:02:0") {
		t.Errorf("output = %q", out)
	}
}

func TestConsole_StatsAndMisc(t *testing.T) {
	tc := newTestConsole(t)
	tc.run(t, "hi")

	out := tc.run(t, "/stats")
	if !strings.Contains(out, "sent 1") || !strings.Contains(out, "last rx never") {
		t.Errorf("stats output = %q", out)
	}
	if out := tc.run(t, "/bogus"); !strings.Contains(out, "unknown command") {
		t.Errorf("output = %q", out)
	}
	if out := tc.run(t, "/help"); !strings.Contains(out, "/radio") {
		t.Errorf("help output = %q", out)
	}
	if tc.handle(context.Background(), "/quit") {
		t.Error("expected /quit to stop the console")
	}
}
