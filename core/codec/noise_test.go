package codec

import (
	"bytes"
	"testing"
)

func TestClassifyNoise(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		rssi int
		want NoiseReason
	}{
		{"rssi sentinel", EncodeFrame(1, 0, "bob", "hi"), NoiseRSSI, NoiseRSSISentinel},
		{"empty", nil, -80, NoiseTooShort},
		{"two bytes", []byte{0x41, 'a'}, -80, NoiseTooShort},
		{"all ff", bytes.Repeat([]byte{0xFF}, 10), -80, NoiseUniform},
		{"all zero", make([]byte, 10), -80, NoiseUniform},
		{"all same printable", bytes.Repeat([]byte{'a'}, 10), -80, NotNoise},
		{"printable username", []byte{0x41, 'b', 'o', 'b', 'y', 0x00}, -80, NotNoise},
		{"encoded frame", EncodeFrame(2, 7, "alice", "hello"), -60, NotNoise},
		{"control bytes", []byte{0x41, 0x01, 0x02, 0x03, 0x04, 'a'}, -80, NoiseUnprintable},
		{"half control", []byte{0x41, 0x01, 0x02, 'a', 'b'}, -80, NotNoise},
		{"nulls are neutral", []byte{0x41, 0x00, 0x00, 0x00, 0x01}, -80, NotNoise},
		{"high bytes", []byte{0x00, 0x80, 0x90, 0xA0, 'x', 'y'}, -80, NoiseUnprintable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyNoise(tt.data, tt.rssi); got != tt.want {
				t.Errorf("ClassifyNoise() = %v, want %v", got, tt.want)
			}
			if got := IsNoise(tt.data, tt.rssi); got != (tt.want != NotNoise) {
				t.Errorf("IsNoise() = %v", got)
			}
		})
	}
}

func TestNoiseReasonString(t *testing.T) {
	if NoiseUniform.String() != "uniform bytes" {
		t.Errorf("String() = %q", NoiseUniform.String())
	}
	if NoiseReason(99).String() != "unknown" {
		t.Errorf("String() = %q", NoiseReason(99).String())
	}
}
