package upload

import (
	"encoding/binary"
	"io"
)

// ProbeDurationSeconds reads the duration of an MP4 file by walking its box
// structure to the moov/mvhd header. Duration is advisory metadata for the
// course save payload, so any parse problem (non-MP4 input, truncated boxes,
// zero timescale) yields 0 rather than an error.
func ProbeDurationSeconds(src io.ReadSeeker) int {
	defer src.Seek(0, io.SeekStart)
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	moov, moovEnd, ok := findBox(src, 0, end, "moov")
	if !ok {
		return 0
	}
	mvhd, _, ok := findBox(src, moov, moovEnd, "mvhd")
	if !ok {
		return 0
	}
	if _, err := src.Seek(mvhd, io.SeekStart); err != nil {
		return 0
	}
	var verFlags [4]byte
	if _, err := io.ReadFull(src, verFlags[:]); err != nil {
		return 0
	}
	switch verFlags[0] {
	case 0:
		// creation(4) modification(4) timescale(4) duration(4)
		var body [16]byte
		if _, err := io.ReadFull(src, body[:]); err != nil {
			return 0
		}
		timescale := binary.BigEndian.Uint32(body[8:12])
		duration := binary.BigEndian.Uint32(body[12:16])
		if timescale == 0 {
			return 0
		}
		return int(duration / timescale)
	case 1:
		// creation(8) modification(8) timescale(4) duration(8)
		var body [28]byte
		if _, err := io.ReadFull(src, body[:]); err != nil {
			return 0
		}
		timescale := binary.BigEndian.Uint32(body[16:20])
		duration := binary.BigEndian.Uint64(body[20:28])
		if timescale == 0 {
			return 0
		}
		return int(duration / uint64(timescale))
	}
	return 0
}

// findBox scans the box sequence in [start, end) for the named box and
// returns the offsets of its payload
func findBox(src io.ReadSeeker, start, end int64, name string) (int64, int64, bool) {
	offset := start
	for offset+8 <= end {
		if _, err := src.Seek(offset, io.SeekStart); err != nil {
			return 0, 0, false
		}
		var header [8]byte
		if _, err := io.ReadFull(src, header[:]); err != nil {
			return 0, 0, false
		}
		size := int64(binary.BigEndian.Uint32(header[:4]))
		payload := offset + 8
		if size == 1 {
			var large [8]byte
			if _, err := io.ReadFull(src, large[:]); err != nil {
				return 0, 0, false
			}
			size = int64(binary.BigEndian.Uint64(large[:]))
			payload = offset + 16
		} else if size == 0 {
			size = end - offset
		}
		if size < 8 || offset+size > end {
			return 0, 0, false
		}
		if string(header[4:8]) == name {
			return payload, offset + size, true
		}
		offset += size
	}
	return 0, 0, false
}
