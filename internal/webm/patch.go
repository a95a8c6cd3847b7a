package webm

import (
	"encoding/binary"
	"math"
	"sort"
	"time"
)

// splice replaces bytes [start,end) of the original buffer.
type splice struct {
	start, end int
	repl       []byte
}

// PatchDuration writes an authoritative duration into the container's
// Segment→Info metadata, in the container's own timestamp units.
//
// Three shapes are handled: an existing 8-byte float Duration is overwritten
// in place; a narrower legacy encoding is removed and a wider one spliced in;
// a missing Duration is inserted right after the Info header. Enclosing
// element lengths are adjusted to match. On any structural inconsistency the
// original slice is returned untouched — this function must never corrupt a
// file it cannot certainly fix.
func PatchDuration(data []byte, d time.Duration) ([]byte, bool) {
	if d <= 0 || len(data) == 0 {
		return data, false
	}

	seg, ok := findChild(data, 0, len(data), idSegment)
	if !ok {
		return data, false
	}
	info, ok := findChild(data, seg.dataStart, seg.dataEnd, idInfo)
	if !ok || info.unknownSize {
		return data, false
	}

	scale := uint64(DefaultTimestampScale)
	if ts, found := findChild(data, info.dataStart, info.dataEnd, idTimestampScale); found {
		v, ok := readUintData(data, ts)
		if !ok || v == 0 {
			return data, false
		}
		scale = v
	}

	units := float64(d.Nanoseconds()) / float64(scale)
	if math.IsNaN(units) || math.IsInf(units, 0) || units <= 0 {
		return data, false
	}

	dur, durFound := findChild(data, info.dataStart, info.dataEnd, idDuration)

	// Fast path: the field exists at the expected fixed width. Overwrite the
	// payload in place, nothing else moves.
	if durFound && dur.dataEnd-dur.dataStart == 8 {
		out := append([]byte(nil), data...)
		binary.BigEndian.PutUint64(out[dur.dataStart:dur.dataEnd], math.Float64bits(units))
		return out, true
	}

	newElem := durationElement(units)
	var splices []splice
	var infoDelta int

	if durFound {
		// Legacy narrow encoding: remove and splice in the 8-byte form.
		splices = append(splices, splice{dur.start, dur.end(), newElem})
		infoDelta = len(newElem) - (dur.end() - dur.start)
	} else {
		// Absent: insert directly after the Info header.
		splices = append(splices, splice{info.dataStart, info.dataStart, newElem})
		infoDelta = len(newElem)
	}

	// Re-declare the Info length. Growing the vint is allowed (EBML permits
	// non-minimal sizes, so the width never shrinks); if it grows, the
	// Segment length must absorb that too.
	oldInfoLen := info.dataEnd - info.dataStart
	newInfoLen := uint64(oldInfoLen + infoDelta)
	infoWidth := info.sizeWidth
	if newInfoLen > maxSizeForWidth(infoWidth) {
		infoWidth = minSizeWidth(newInfoLen)
		if infoWidth == 0 {
			return data, false
		}
	}
	infoSize, ok := encodeSize(newInfoLen, infoWidth)
	if !ok {
		return data, false
	}
	splices = append(splices, splice{info.sizeStart, info.sizeStart + info.sizeWidth, infoSize})

	segDelta := infoDelta + (infoWidth - info.sizeWidth)
	if !seg.unknownSize && segDelta != 0 {
		newSegLen := uint64(seg.dataEnd - seg.dataStart + segDelta)
		segWidth := seg.sizeWidth
		if newSegLen > maxSizeForWidth(segWidth) {
			segWidth = minSizeWidth(newSegLen)
			if segWidth == 0 {
				return data, false
			}
		}
		segSize, ok := encodeSize(newSegLen, segWidth)
		if !ok {
			return data, false
		}
		splices = append(splices, splice{seg.sizeStart, seg.sizeStart + seg.sizeWidth, segSize})
	}

	return applySplices(data, splices), true
}

// ReadDuration extracts the declared duration from a container, if present.
func ReadDuration(data []byte) (time.Duration, bool) {
	seg, ok := findChild(data, 0, len(data), idSegment)
	if !ok {
		return 0, false
	}
	info, ok := findChild(data, seg.dataStart, seg.dataEnd, idInfo)
	if !ok {
		return 0, false
	}

	scale := uint64(DefaultTimestampScale)
	if ts, found := findChild(data, info.dataStart, info.dataEnd, idTimestampScale); found {
		if v, ok := readUintData(data, ts); ok && v > 0 {
			scale = v
		}
	}

	dur, ok := findChild(data, info.dataStart, info.dataEnd, idDuration)
	if !ok {
		return 0, false
	}
	var units float64
	switch dur.dataEnd - dur.dataStart {
	case 8:
		units = math.Float64frombits(binary.BigEndian.Uint64(data[dur.dataStart:dur.dataEnd]))
	case 4:
		units = float64(math.Float32frombits(binary.BigEndian.Uint32(data[dur.dataStart:dur.dataEnd])))
	default:
		return 0, false
	}
	if math.IsNaN(units) || units < 0 {
		return 0, false
	}
	return time.Duration(units * float64(scale)), true
}

// applySplices builds the patched buffer. Splices are applied back-to-front
// so earlier offsets stay valid; they never overlap.
func applySplices(data []byte, splices []splice) []byte {
	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })
	out := append([]byte(nil), data...)
	for _, sp := range splices {
		tail := append([]byte(nil), out[sp.end:]...)
		out = append(out[:sp.start], sp.repl...)
		out = append(out, tail...)
	}
	return out
}
