package codec

const (
	// NoiseRSSI is the signal strength the LoRa module reports when nothing
	// was actually received.
	NoiseRSSI = 1

	// MinNoiseFrameLen is the absolute minimum length of a plausible frame.
	MinNoiseFrameLen = 3

	// MinPrintableChars is the number of printable bytes past the header that
	// marks a frame as plausible regardless of the other bytes.
	MinPrintableChars = 3
)

// NoiseReason records why a buffer was judged to be radio noise.
type NoiseReason int

const (
	// NotNoise means the buffer may be a protocol frame.
	NotNoise NoiseReason = iota
	// NoiseRSSISentinel means the radio reported the no-reception RSSI value.
	NoiseRSSISentinel
	// NoiseTooShort means the buffer is shorter than MinNoiseFrameLen.
	NoiseTooShort
	// NoiseUniform means every byte is 0x00 or every byte is 0xFF.
	NoiseUniform
	// NoiseUnprintable means few printable bytes and mostly control bytes.
	NoiseUnprintable
)

func (r NoiseReason) String() string {
	switch r {
	case NotNoise:
		return "not noise"
	case NoiseRSSISentinel:
		return "rssi sentinel"
	case NoiseTooShort:
		return "too short"
	case NoiseUniform:
		return "uniform bytes"
	case NoiseUnprintable:
		return "unprintable"
	default:
		return "unknown"
	}
}

// ClassifyNoise decides whether a received buffer is radio noise rather than
// a protocol frame. It runs before DecodeFrame. The rules are checked in
// order and favour keeping a frame: three printable bytes after the header
// are enough to rule out the unprintable verdict.
func ClassifyNoise(data []byte, rssi int) NoiseReason {
	if rssi == NoiseRSSI {
		return NoiseRSSISentinel
	}
	if len(data) < MinNoiseFrameLen {
		return NoiseTooShort
	}

	first := data[0]
	if first == 0x00 || first == 0xFF {
		uniform := true
		for _, b := range data[1:] {
			if b != first {
				uniform = false
				break
			}
		}
		if uniform {
			return NoiseUniform
		}
	}

	// The header byte may hold any value and is not counted.
	printable, invalid := 0, 0
	for _, b := range data[HeaderSize:] {
		switch {
		case b == 0x00:
		case b >= 0x20 && b <= 0x7E:
			printable++
		default:
			invalid++
		}
	}
	if printable >= MinPrintableChars {
		return NotNoise
	}
	if 2*invalid > len(data)-HeaderSize {
		return NoiseUnprintable
	}
	return NotNoise
}

// IsNoise returns true if ClassifyNoise reports any noise reason.
func IsNoise(data []byte, rssi int) bool {
	return ClassifyNoise(data, rssi) != NotNoise
}
