// Package ffmpegenc implements the export Encoder/Muxer contracts on top of
// a system ffmpeg process: raw RGBA frames go down a pipe, a finished WebM
// comes back out.
package ffmpegenc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ivlev/stepmotion/internal/export"
	"github.com/ivlev/stepmotion/internal/system"
)

// Encoder pipes frames into one long-running ffmpeg invocation. ffmpeg owns
// timing via the declared input framerate; because the exporter emits exactly
// one frame per timestamp slot, the stream stays frame-accurate.
type Encoder struct {
	EncoderName string // probed when empty

	cfg     export.EncoderConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  bytes.Buffer
	outPath string
	tempDir string
	ctx     context.Context
}

// New returns an encoder bound to ctx; canceling the context kills the
// ffmpeg child.
func New(ctx context.Context) *Encoder {
	return &Encoder{ctx: ctx}
}

// Configure probes for a usable encoder and starts the ffmpeg process. An
// unsupported configuration is reported here, before any frame is rendered.
func (e *Encoder) Configure(cfg export.EncoderConfig) error {
	if cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return fmt.Errorf("dimensions %dx%d not even", cfg.Width, cfg.Height)
	}

	name := e.EncoderName
	if name == "" {
		probed, err := system.GetBestWebMEncoder()
		if err != nil {
			return err
		}
		name = probed
	}

	tempDir, err := os.MkdirTemp("", "stepmotion_")
	if err != nil {
		return err
	}
	e.tempDir = tempDir
	e.outPath = filepath.Join(tempDir, "out.webm")

	keyint := cfg.FPS * 2
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", fmt.Sprintf("%d", cfg.FPS),
		"-i", "-",
		"-c:v", name,
		"-b:v", fmt.Sprintf("%dk", cfg.BitrateKbps),
		"-g", fmt.Sprintf("%d", keyint),
		"-pix_fmt", "yuv420p",
		"-f", "webm",
		e.outPath,
	}

	cmd := exec.CommandContext(e.ctx, "ffmpeg", args...)
	cmd.Stdout = &e.stderr
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.RemoveAll(tempDir)
		e.tempDir = ""
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tempDir)
		e.tempDir = ""
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	e.cfg = cfg
	e.cmd = cmd
	e.stdin = stdin
	return nil
}

// Encode writes one raw frame. Timestamps are implied by frame order at the
// declared rate, which matches the exporter's pts sequence exactly; the
// keyframe cadence was fixed at configure time via the GOP length.
func (e *Encoder) Encode(surface *image.RGBA, ptsMicros, durMicros int64, keyframe bool) ([]byte, error) {
	if e.cmd == nil {
		return nil, fmt.Errorf("encoder not configured")
	}
	if err := writeRawRGBA(e.stdin, surface); err != nil {
		return nil, fmt.Errorf("write raw error: %w", err)
	}
	return nil, nil
}

// Flush closes the pipe, waits for ffmpeg and returns the whole container as
// one chunk.
func (e *Encoder) Flush() ([]byte, error) {
	if e.cmd == nil {
		return nil, fmt.Errorf("encoder not configured")
	}
	defer e.Close()

	e.stdin.Close()
	e.stdin = nil
	err := e.cmd.Wait()
	e.cmd = nil
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w\nLog: %s", err, e.stderr.String())
	}
	data, err := os.ReadFile(e.outPath)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close tears down an abandoned encode: the pipe is closed, the ffmpeg child
// killed and the temp directory removed. Safe after Flush and when called more
// than once.
func (e *Encoder) Close() error {
	if e.stdin != nil {
		e.stdin.Close()
		e.stdin = nil
	}
	if e.cmd != nil {
		if e.cmd.Process != nil {
			e.cmd.Process.Kill()
		}
		e.cmd.Wait()
		e.cmd = nil
	}
	if e.tempDir != "" {
		os.RemoveAll(e.tempDir)
		e.tempDir = ""
	}
	return nil
}

func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	rgba := img
	if rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

// BufferMuxer accumulates chunks in memory and hands back one blob. With the
// ffmpeg backend the whole container arrives as a single flush chunk; test
// backends feed it per-frame.
type BufferMuxer struct {
	buf       bytes.Buffer
	finalized bool
}

func (m *BufferMuxer) AddChunk(chunk []byte) error {
	if m.finalized {
		return fmt.Errorf("muxer already finalized")
	}
	_, err := m.buf.Write(chunk)
	return err
}

func (m *BufferMuxer) Finalize() ([]byte, error) {
	if m.finalized {
		return nil, fmt.Errorf("muxer already finalized")
	}
	if m.buf.Len() == 0 {
		return nil, fmt.Errorf("muxer finalized with no chunks")
	}
	m.finalized = true
	return m.buf.Bytes(), nil
}
