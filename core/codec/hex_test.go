package codec

import "testing"

func TestHexDump(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x00}, "00 "},
		{[]byte{0x41, 0x62, 0x00, 0xFF}, "41 62 00 ff "},
	}
	for _, tt := range tests {
		if got := HexDump(tt.data); got != tt.want {
			t.Errorf("HexDump(% x) = %q, want %q", tt.data, got, tt.want)
		}
	}
}
