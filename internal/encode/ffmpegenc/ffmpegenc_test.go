package ffmpegenc

import (
	"bytes"
	"image"
	"testing"
)

func TestBufferMuxer(t *testing.T) {
	m := &BufferMuxer{}
	if err := m.AddChunk([]byte{1, 2}); err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}
	if err := m.AddChunk([]byte{3}); err != nil {
		t.Fatalf("AddChunk failed: %v", err)
	}

	blob, err := m.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !bytes.Equal(blob, []byte{1, 2, 3}) {
		t.Errorf("Expected chunks in order, got %v", blob)
	}

	if err := m.AddChunk([]byte{4}); err == nil {
		t.Error("Expected error adding to a finalized muxer")
	}
	if _, err := m.Finalize(); err == nil {
		t.Error("Expected error finalizing twice")
	}
}

func TestBufferMuxerEmpty(t *testing.T) {
	m := &BufferMuxer{}
	if _, err := m.Finalize(); err == nil {
		t.Error("Expected error finalizing with no chunks")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e := &Encoder{}
	if err := e.Close(); err != nil {
		t.Fatalf("Close on an unconfigured encoder failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestWriteRawRGBAHandlesSubimages(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range base.Pix {
		base.Pix[i] = byte(i)
	}
	sub := base.SubImage(image.Rect(2, 2, 6, 6)).(*image.RGBA)

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, sub); err != nil {
		t.Fatalf("writeRawRGBA failed: %v", err)
	}
	if buf.Len() != 4*4*4 {
		t.Errorf("Expected %d bytes for a 4x4 frame, got %d", 4*4*4, buf.Len())
	}
}
