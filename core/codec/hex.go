package codec

import "encoding/hex"

// HexDump formats data as lowercase hex bytes, each followed by a space,
// the form used for raw frames in the activity log.
func HexDump(data []byte) string {
	out := make([]byte, 0, len(data)*3)
	for i := range data {
		out = hex.AppendEncode(out, data[i:i+1])
		out = append(out, ' ')
	}
	return string(out)
}
