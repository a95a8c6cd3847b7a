// Package webm repairs the duration metadata of a WebM/Matroska container
// when the encoding backend failed to write it.
//
// The code assumes only that the container is a self-describing, nested
// tag-length-value structure: element ids and sizes are EBML variable-width
// big-endian integers whose leading flag bit marks their own width. Nothing
// here depends on a specific encoder's quirks beyond "duration metadata may
// be missing or zero". Every offset is bounds-checked before use; any
// inconsistency aborts the patch and the caller gets the original bytes back.
package webm

import (
	"encoding/binary"
	"math"
)

// Element ids (stored with their marker bits, as they appear on the wire).
const (
	idEBML           = 0x1A45DFA3
	idSegment        = 0x18538067
	idInfo           = 0x1549A966
	idTimestampScale = 0x2AD7B1
	idDuration       = 0x4489
)

// DefaultTimestampScale is nanoseconds per timestamp unit when the Info
// element does not declare one.
const DefaultTimestampScale = 1_000_000

// element is one parsed tag-length-value node.
type element struct {
	id          uint64
	start       int // offset of the id byte
	dataStart   int
	dataEnd     int
	sizeStart   int // offset of the size vint
	sizeWidth   int
	unknownSize bool
}

func (e element) end() int { return e.dataEnd }

// readID decodes an element id at off. Ids keep their marker bits.
func readID(b []byte, off int) (id uint64, n int, ok bool) {
	if off >= len(b) || b[off] == 0 {
		return 0, 0, false
	}
	n = 1
	for mask := byte(0x80); b[off]&mask == 0; mask >>= 1 {
		n++
	}
	if n > 4 || off+n > len(b) {
		return 0, 0, false
	}
	for i := 0; i < n; i++ {
		id = id<<8 | uint64(b[off+i])
	}
	return id, n, true
}

// readSize decodes a size vint at off. The marker bit is stripped; a size
// with all value bits set means "unknown, extends to the end of the parent".
func readSize(b []byte, off int) (size uint64, n int, unknown, ok bool) {
	if off >= len(b) || b[off] == 0 {
		return 0, 0, false, false
	}
	n = 1
	mask := byte(0x80)
	for b[off]&mask == 0 {
		n++
		mask >>= 1
	}
	if n > 8 || off+n > len(b) {
		return 0, 0, false, false
	}
	size = uint64(b[off] &^ mask)
	for i := 1; i < n; i++ {
		size = size<<8 | uint64(b[off+i])
	}
	unknown = size == maxSizeForWidth(n)+1
	return size, n, unknown, true
}

func maxSizeForWidth(w int) uint64 {
	return (uint64(1) << (7 * w)) - 2
}

// encodeSize encodes v as a size vint of exactly width bytes.
func encodeSize(v uint64, width int) ([]byte, bool) {
	if width < 1 || width > 8 || v > maxSizeForWidth(width) {
		return nil, false
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	out[0] |= 0x80 >> (width - 1)
	return out, true
}

func minSizeWidth(v uint64) int {
	for w := 1; w <= 8; w++ {
		if v <= maxSizeForWidth(w) {
			return w
		}
	}
	return 0
}

// readElement parses the element starting at off, clamped to parentEnd.
func readElement(b []byte, off, parentEnd int) (element, bool) {
	id, idLen, ok := readID(b, off)
	if !ok || off+idLen > parentEnd {
		return element{}, false
	}
	size, sizeLen, unknown, ok := readSize(b, off+idLen)
	if !ok {
		return element{}, false
	}
	e := element{
		id:          id,
		start:       off,
		sizeStart:   off + idLen,
		sizeWidth:   sizeLen,
		dataStart:   off + idLen + sizeLen,
		unknownSize: unknown,
	}
	if unknown {
		e.dataEnd = parentEnd
	} else {
		if size > uint64(parentEnd) {
			return element{}, false
		}
		e.dataEnd = e.dataStart + int(size)
	}
	if e.dataStart > parentEnd || e.dataEnd > parentEnd || e.dataEnd < e.dataStart {
		return element{}, false
	}
	return e, true
}

// findChild scans [start,end) for the first element with the wanted id.
func findChild(b []byte, start, end int, wantID uint64) (element, bool) {
	for off := start; off < end; {
		e, ok := readElement(b, off, end)
		if !ok {
			return element{}, false
		}
		if e.id == wantID {
			return e, true
		}
		if e.unknownSize {
			// Cannot skip past an unknown-size sibling.
			return element{}, false
		}
		off = e.end()
	}
	return element{}, false
}

// readUintData reads a big-endian unsigned integer element payload.
func readUintData(b []byte, e element) (uint64, bool) {
	n := e.dataEnd - e.dataStart
	if n < 1 || n > 8 || e.dataEnd > len(b) {
		return 0, false
	}
	var v uint64
	for i := e.dataStart; i < e.dataEnd; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, true
}

// durationElement builds a Duration element at the canonical 8-byte float
// width.
func durationElement(units float64) []byte {
	out := make([]byte, 2+1+8)
	out[0] = 0x44
	out[1] = 0x89
	out[2] = 0x88 // 1-byte size vint, value 8
	binary.BigEndian.PutUint64(out[3:], math.Float64bits(units))
	return out
}
