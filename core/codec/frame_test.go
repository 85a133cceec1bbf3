package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestHeader(t *testing.T) {
	tests := []struct {
		channel, counter uint8
		want             byte
	}{
		{0, 0, 0x00},
		{1, 0, 0x40},
		{ChannelPing, 0, 0xC0},
		{2, 63, 0xBF},
		{1, 64, 0x40}, // counter wraps
		{1, 65, 0x41},
	}
	for _, tt := range tests {
		if got := Header(tt.channel, tt.counter); got != tt.want {
			t.Errorf("Header(%d, %d) = %#02x, want %#02x", tt.channel, tt.counter, got, tt.want)
		}
	}
}

func TestEncodeFrameLayout(t *testing.T) {
	got := EncodeFrame(1, 5, "bob", "hi")
	want := []byte{0x45, 'b', 'o', 'b', 0x00, 'h', 'i', 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFrame() = % x, want % x", got, want)
	}
}

func TestEncodeFramePing(t *testing.T) {
	got := EncodeFrame(ChannelPing, 2, "bob", "")
	want := []byte{0xC2, 'b', 'o', 'b', 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFrame() = % x, want % x", got, want)
	}
}

func TestEncodeFrameTruncates(t *testing.T) {
	frame := EncodeFrame(0, 0, "averylongname", strings.Repeat("x", 150))

	if len(frame) != MaxFrameSize {
		t.Fatalf("len = %d, want %d", len(frame), MaxFrameSize)
	}
	if frame[HeaderSize+MaxUsernameLen] != 0 {
		t.Error("truncated username is not terminated")
	}
	if frame[len(frame)-1] != 0 {
		t.Error("truncated text is not terminated")
	}
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		channel  uint8
		counter  uint8
		username string
		text     string
		wantUser string
		wantText string
	}{
		{"basic", 1, 0, "bob", "hi", "bob", "hi"},
		{"ping", ChannelPing, 63, "alice", "", "alice", ""},
		{"channel zero", 0, 17, "ab", "hello there", "ab", "hello there"},
		{"channel two", 2, 42, "abcdefgh", "max name", "abcdefgh", "max name"},
		{"long username", 1, 1, "abcdefghijk", "x", "abcdefgh", "x"},
		{"long text", 2, 9, "carol", strings.Repeat("y", 120), "carol", strings.Repeat("y", MaxTextLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := EncodeFrame(tt.channel, tt.counter, tt.username, tt.text)
			msg, err := DecodeFrame(frame)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if msg.Channel != tt.channel {
				t.Errorf("Channel = %d, want %d", msg.Channel, tt.channel)
			}
			if msg.Counter != tt.counter&HeaderCounterMask {
				t.Errorf("Counter = %d, want %d", msg.Counter, tt.counter)
			}
			if msg.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", msg.Username, tt.wantUser)
			}
			if msg.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", msg.Text, tt.wantText)
			}
		})
	}
}

func TestDecodeFrameAllChannelsAndCounters(t *testing.T) {
	for ch := uint8(0); ch < 4; ch++ {
		for ctr := uint8(0); ctr < 64; ctr++ {
			msg, err := DecodeFrame(EncodeFrame(ch, ctr, "dave", "t"))
			if err != nil {
				t.Fatalf("DecodeFrame(ch=%d, ctr=%d) error = %v", ch, ctr, err)
			}
			if msg.Channel != ch || msg.Counter != ctr {
				t.Fatalf("got ch=%d ctr=%d, want ch=%d ctr=%d", msg.Channel, msg.Counter, ch, ctr)
			}
		}
	}
}

func TestDecodeFrameTooShort(t *testing.T) {
	for n := 0; n < MinFrameSize; n++ {
		msg, err := DecodeFrame(bytes.Repeat([]byte{'a'}, n))
		if !errors.Is(err, ErrFrameTooShort) {
			t.Errorf("len %d: err = %v, want ErrFrameTooShort", n, err)
		}
		if msg != (Message{}) {
			t.Errorf("len %d: expected zero message, got %+v", n, msg)
		}
	}
}

func TestDecodeFrameTooLong(t *testing.T) {
	msg, err := DecodeFrame(make([]byte, MaxFrameSize+1))
	if !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("err = %v, want ErrFrameTooLong", err)
	}
	if msg != (Message{}) {
		t.Errorf("expected zero message, got %+v", msg)
	}
}

func TestDecodeFrameUnterminatedUsername(t *testing.T) {
	// Nine username bytes: the ninth sits where the terminator belongs.
	data := append([]byte{0x40}, []byte("abcdefghXtext")...)
	msg, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if msg.Username != "abcdefgh" {
		t.Errorf("Username = %q, want %q", msg.Username, "abcdefgh")
	}
	if msg.Text != "text" {
		t.Errorf("Text = %q, want %q", msg.Text, "text")
	}
}

func TestDecodeFrameNoTextTerminator(t *testing.T) {
	data := []byte{0x41, 'b', 'o', 'b', 0x00, 'h', 'e', 'y'}
	msg, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if msg.Text != "hey" {
		t.Errorf("Text = %q, want %q", msg.Text, "hey")
	}
}

func TestDecodeFrameEmptyUsername(t *testing.T) {
	data := []byte{Header(ChannelB, 0), 0x00, 'h', 'i', 0x00}
	msg, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if msg.Username != "" || msg.Text != "" {
		t.Errorf("DecodeFrame() = %+v, want empty username and text", msg)
	}
	if msg.IsComplete() {
		t.Error("frame without username should not be complete")
	}
}

func TestMessagePredicates(t *testing.T) {
	own := Message{Text: "hi"}
	if !own.IsOwn() || own.IsComplete() {
		t.Error("message without username should be own and incomplete")
	}
	ping := Message{Username: "bob"}
	if !ping.IsPing() || ping.IsOwn() {
		t.Error("message without text should be a peer ping")
	}
	full := Message{Username: "bob", Text: "hi"}
	if !full.IsComplete() || full.IsPing() {
		t.Error("message with both fields should be complete")
	}
}
