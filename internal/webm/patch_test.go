package webm

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// elem builds an EBML element from raw id bytes and a payload, using the
// minimal size-vint width.
func elem(id []byte, payload ...[]byte) []byte {
	var body []byte
	for _, p := range payload {
		body = append(body, p...)
	}
	size, ok := encodeSize(uint64(len(body)), minSizeWidth(uint64(len(body))))
	if !ok {
		panic("elem: unencodable size")
	}
	out := append([]byte(nil), id...)
	out = append(out, size...)
	return append(out, body...)
}

var (
	ebmlID    = []byte{0x1A, 0x45, 0xDF, 0xA3}
	segmentID = []byte{0x18, 0x53, 0x80, 0x67}
	infoID    = []byte{0x15, 0x49, 0xA9, 0x66}
	scaleID   = []byte{0x2A, 0xD7, 0xB1}
	durID     = []byte{0x44, 0x89}
)

func scaleElem(v uint64) []byte {
	return elem(scaleID, []byte{byte(v >> 16), byte(v >> 8), byte(v)})
}

func dur8Elem(units float64) []byte {
	p := make([]byte, 8)
	binary.BigEndian.PutUint64(p, math.Float64bits(units))
	return elem(durID, p)
}

func dur4Elem(units float32) []byte {
	p := make([]byte, 4)
	binary.BigEndian.PutUint32(p, math.Float32bits(units))
	return elem(durID, p)
}

// container wraps Info children into Segment→Info preceded by a top-level
// header element, the way real files lay out.
func container(infoChildren ...[]byte) []byte {
	info := elem(infoID, infoChildren...)
	out := elem(ebmlID, []byte{0x42, 0x86, 0x81, 0x01}) // header with one child
	return append(out, elem(segmentID, info)...)
}

func TestPatchOverwritesInPlace(t *testing.T) {
	in := container(scaleElem(DefaultTimestampScale), dur8Elem(0))
	before := append([]byte(nil), in...)

	out, ok := PatchDuration(in, 3*time.Second)
	require.True(t, ok)
	assert.Len(t, out, len(in), "8-byte field must be overwritten in place")
	assert.Equal(t, before, in, "input slice must not be mutated")

	d, found := ReadDuration(out)
	require.True(t, found)
	assert.Equal(t, 3*time.Second, d)
}

func TestPatchReplacesNarrowEncoding(t *testing.T) {
	in := container(scaleElem(DefaultTimestampScale), dur4Elem(0))

	out, ok := PatchDuration(in, 1500*time.Millisecond)
	require.True(t, ok)
	// A 4-byte legacy field is replaced by the canonical 8-byte one.
	assert.Len(t, out, len(in)+4)

	d, found := ReadDuration(out)
	require.True(t, found)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestPatchInsertsMissingDuration(t *testing.T) {
	in := container(scaleElem(DefaultTimestampScale))

	out, ok := PatchDuration(in, 2*time.Second)
	require.True(t, ok)
	assert.Len(t, out, len(in)+11, "a new id+size+float64 element is 11 bytes")

	d, found := ReadDuration(out)
	require.True(t, found)
	assert.Equal(t, 2*time.Second, d)
}

func TestPatchHonorsTimestampScale(t *testing.T) {
	// Half-millisecond units: 2s must land as 4000 units on disk.
	in := container(scaleElem(500_000), dur8Elem(0))

	out, ok := PatchDuration(in, 2*time.Second)
	require.True(t, ok)

	seg, _ := findChild(out, 0, len(out), idSegment)
	info, _ := findChild(out, seg.dataStart, seg.dataEnd, idInfo)
	dur, found := findChild(out, info.dataStart, info.dataEnd, idDuration)
	require.True(t, found)
	units := math.Float64frombits(binary.BigEndian.Uint64(out[dur.dataStart:dur.dataEnd]))
	assert.InDelta(t, 4000, units, 1e-9)

	d, _ := ReadDuration(out)
	assert.Equal(t, 2*time.Second, d)
}

func TestPatchUnknownSizeSegment(t *testing.T) {
	// Streaming muxers leave the Segment length open-ended. The Info element
	// inside is still well-formed, so the patch proceeds without touching the
	// unknown Segment length.
	info := elem(infoID, scaleElem(DefaultTimestampScale))
	in := append([]byte(nil), segmentID...)
	in = append(in, 0xFF) // unknown size, extends to end of buffer
	in = append(in, info...)

	out, ok := PatchDuration(in, time.Second)
	require.True(t, ok)

	d, found := ReadDuration(out)
	require.True(t, found)
	assert.Equal(t, time.Second, d)
}

func TestPatchRefusesUnknownSizeInfo(t *testing.T) {
	infoBody := scaleElem(DefaultTimestampScale)
	seg := append([]byte(nil), infoID...)
	seg = append(seg, 0xFF)
	seg = append(seg, infoBody...)
	in := elem(segmentID, seg)

	out, ok := PatchDuration(in, time.Second)
	assert.False(t, ok)
	assert.Equal(t, in, out)
}

func TestPatchNeverTouchesBrokenInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":        {},
		"garbage":      {0xDE, 0xAD, 0xBE, 0xEF},
		"zero byte id": {0x00, 0x81, 0x00},
	}
	// A truncated but once-valid container.
	whole := container(scaleElem(DefaultTimestampScale), dur8Elem(0))
	cases["truncated"] = whole[:len(whole)/2]

	for name, in := range cases {
		before := append([]byte(nil), in...)
		out, ok := PatchDuration(in, time.Second)
		assert.False(t, ok, "%s: patch must refuse", name)
		assert.True(t, bytes.Equal(before, out), "%s: bytes must come back unchanged", name)
	}
}

func TestPatchRefusesZeroScaleAndDuration(t *testing.T) {
	in := container(scaleElem(0), dur8Elem(0))
	_, ok := PatchDuration(in, time.Second)
	assert.False(t, ok, "a zero timestamp scale is unusable")

	valid := container(scaleElem(DefaultTimestampScale), dur8Elem(0))
	_, ok = PatchDuration(valid, 0)
	assert.False(t, ok)
	_, ok = PatchDuration(valid, -time.Second)
	assert.False(t, ok)
}

func TestPatchIsIdempotent(t *testing.T) {
	in := container(scaleElem(DefaultTimestampScale))

	first, ok := PatchDuration(in, 7*time.Second)
	require.True(t, ok)
	second, ok := PatchDuration(first, 7*time.Second)
	require.True(t, ok)
	assert.Equal(t, first, second)
}

func TestReadDurationLegacyFloat32(t *testing.T) {
	in := container(scaleElem(DefaultTimestampScale), dur4Elem(2500))

	d, found := ReadDuration(in)
	require.True(t, found)
	assert.Equal(t, 2500*time.Millisecond, d)
}
