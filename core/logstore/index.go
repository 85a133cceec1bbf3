package logstore

import (
	"errors"
	"io"
)

const scanBufSize = 4096

// scanOffsets reads r to the end and returns the byte offset of line 0 and
// of every line that follows a newline, keeping only the last limit offsets.
// It also returns the number of bytes read.
func scanOffsets(r io.Reader, limit int) ([]int64, int64, error) {
	offsets := []int64{0}
	buf := make([]byte, scanBufSize)
	var pos int64

	for {
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			pos++
			if c != '\n' {
				continue
			}
			offsets = appendOffset(offsets, pos, limit)
		}
		if errors.Is(err, io.EOF) {
			return offsets, pos, nil
		}
		if err != nil {
			return nil, pos, err
		}
	}
}

// appendOffset adds off to offsets and discards the oldest entries beyond
// limit. Reslicing from the front lets append reallocate with only the live
// entries once capacity runs out.
func appendOffset(offsets []int64, off int64, limit int) []int64 {
	offsets = append(offsets, off)
	if over := len(offsets) - limit; over > 0 {
		offsets = offsets[over:]
	}
	return offsets
}
