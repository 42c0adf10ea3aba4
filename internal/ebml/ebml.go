package ebml

import (
	"math/bits"
	"strings"
	"unicode/utf8"
)

// Element IDs, marker bits included.
const (
	IDHeader  = 0x1A45DFA3
	IDSegment = 0x18538067
	IDInfo    = 0x1549A966
	IDTitle   = 0x7BA9
)

// unknownSize marks an element whose size field is all ones.
const unknownSize = -1

// Info is the result of a scan.
type Info struct {
	// Title is the decoded title, empty when absent.
	Title string
	// Found reports whether a title element was encountered.
	Found bool
	// Truncated reports that the buffer ended before the scan could finish.
	Truncated bool
}

// ScanTitle returns the container title found in buf, or "".
func ScanTitle(buf []byte) string {
	return Scan(buf).Title
}

// Scan walks buf looking for Segment/Info/Title. It never panics.
func Scan(buf []byte) Info {
	s := scanner{buf: buf}
	s.walk(0, len(buf), 0, false)
	return s.info
}

type scanner struct {
	buf  []byte
	info Info
}

// walk iterates the elements in buf[pos:end]. depth 0 is the top level,
// depth 1 is inside a Segment, depth 2 inside Info. clipped is set when the
// parent's declared extent reaches past the end of the buffer.
func (s *scanner) walk(pos, end, depth int, clipped bool) {
	for pos < end {
		id, n := readID(s.buf[pos:end])
		if n <= 0 {
			s.info.Truncated = n == 0
			return
		}
		pos += n

		size, n := readSize(s.buf[pos:end])
		if n <= 0 {
			s.info.Truncated = n == 0
			return
		}
		pos += n

		remaining := end - pos
		payloadEnd := end
		fits := size != unknownSize && size <= int64(remaining)
		if fits {
			payloadEnd = pos + int(size)
		}

		switch {
		case depth == 0 && id == IDSegment:
			s.walk(pos, payloadEnd, 1, clipped || !fits)
			return
		case depth == 1 && id == IDInfo:
			s.walk(pos, payloadEnd, 2, clipped || !fits)
			return
		case depth == 2 && id == IDTitle:
			s.info.Truncated = !fits
			s.info.Title = decodeString(s.buf[pos:payloadEnd])
			s.info.Found = true
			return
		}

		if !fits {
			// Unknown-length or clipped element that is not descended into.
			s.info.Truncated = true
			return
		}
		pos = payloadEnd
	}
	s.info.Truncated = clipped
}

// vintLength returns the encoded length of a variable-length integer from
// its first byte, or 0 when the byte is zero.
func vintLength(first byte) int {
	if first == 0 {
		return 0
	}
	return bits.LeadingZeros8(first) + 1
}

// readID reads an element ID, keeping the marker bits. n is 0 when b is
// too short and negative when the leading byte is not a valid ID.
func readID(b []byte) (id uint32, n int) {
	if len(b) == 0 {
		return 0, 0
	}
	n = vintLength(b[0])
	if n == 0 || n > 4 {
		return 0, -1
	}
	if n > len(b) {
		return 0, 0
	}
	for i := 0; i < n; i++ {
		id = id<<8 | uint32(b[i])
	}
	return id, n
}

// readSize reads an element data size with the marker bit masked off.
// An all-ones value yields unknownSize. n follows the readID convention.
func readSize(b []byte) (size int64, n int) {
	if len(b) == 0 {
		return 0, 0
	}
	n = vintLength(b[0])
	if n == 0 {
		return 0, -1
	}
	if n > len(b) {
		return 0, 0
	}

	mask := byte(0xFF >> n)
	v := uint64(b[0] & mask)
	allOnes := b[0]&mask == mask
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(b[i])
		if b[i] != 0xFF {
			allOnes = false
		}
	}
	if allOnes {
		return unknownSize, n
	}
	return int64(v), n
}

func decodeString(b []byte) string {
	// Matroska strings may be zero padded.
	if i := indexZero(b); i >= 0 {
		b = b[:i]
	}
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
