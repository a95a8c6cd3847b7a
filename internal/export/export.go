// Package export drives a render→encode loop across a scene's whole
// timeline. Frame selection is driven solely by the loop counter, never by
// elapsed time, so duration and frame count are deterministic regardless of
// rendering or encoding speed.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/stepmotion/internal/scene"
	"github.com/ivlev/stepmotion/internal/state"
	"github.com/ivlev/stepmotion/internal/system"
	"github.com/ivlev/stepmotion/internal/transition"
)

// ErrCanceled is returned when an export is cut short cooperatively. It is a
// terminal outcome distinct from failure; partial output is discarded, never
// finalized.
var ErrCanceled = errors.New("export canceled")

// Renderer rasterizes an effective-object list onto a fixed-resolution
// surface. Implementations may pool surfaces; the exporter returns each one
// to the system frame pool after its encode call completes.
type Renderer interface {
	CreateSurface(width, height int) *image.RGBA
	Render(surface *image.RGBA, objects []*state.Object, background string) error
}

// EncoderConfig is handed to the encoder before any frame work begins, so an
// unsupported configuration surfaces while a fallback is still possible.
type EncoderConfig struct {
	Codec       string
	Width       int
	Height      int
	FPS         int
	BitrateKbps int
}

// Encoder consumes surfaces with explicit timestamps. Encode may return a
// finished chunk, or nil when the backend buffers internally; Flush drains
// whatever remains. Close releases backend resources (child processes, temp
// files) when an export is abandoned; it must be safe after Flush and when
// called more than once.
type Encoder interface {
	Configure(cfg EncoderConfig) error
	Encode(surface *image.RGBA, ptsMicros, durMicros int64, keyframe bool) ([]byte, error)
	Flush() ([]byte, error)
	Close() error
}

// Muxer assembles encoded chunks, in order, into one container blob.
type Muxer interface {
	AddChunk(chunk []byte) error
	Finalize() ([]byte, error)
}

// Options parameterize one export invocation.
type Options struct {
	FPS         int
	Width       int
	Height      int
	HoldFrames  int // extra frames repeating the final state
	Codec       string
	BitrateKbps int
	// KeyframeEverySec forces a self-contained frame at a fixed interval of
	// output time. Zero means the default of 2s.
	KeyframeEverySec float64
	// PipelineDepth bounds how far rendering may run ahead of encoding.
	PipelineDepth int
	OnProgress    func(currentFrame, totalFrames int)
	OnProblem     func(scene.Problem)
}

func (o *Options) normalize() error {
	if o.FPS <= 0 || o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid export options: %dx%d @ %d fps", o.Width, o.Height, o.FPS)
	}
	if o.KeyframeEverySec <= 0 {
		o.KeyframeEverySec = 2
	}
	if o.PipelineDepth <= 0 {
		o.PipelineDepth = 2
	}
	if o.Codec == "" {
		o.Codec = "vp9"
	}
	if o.BitrateKbps <= 0 {
		o.BitrateKbps = 4000
	}
	return nil
}

// Result is a finalized export.
type Result struct {
	Bytes         []byte
	TotalFrames   int
	Duration      time.Duration // authoritative: totalFrames/fps
	SuggestedName string
}

type frameJob struct {
	surface   *image.RGBA
	ptsMicros int64
	durMicros int64
	keyframe  bool
	index     int
}

// Export renders every frame of the scene through r and hands the surfaces to
// enc with explicit monotonically increasing timestamps. Encoding runs one
// stage behind rendering, bounded by the pipeline depth; chunks reach the
// muxer in frame order. Cancellation via ctx is observed within one frame
// iteration.
func Export(ctx context.Context, sc *scene.Scene, r Renderer, enc Encoder, mux Muxer, opts Options) (res *Result, err error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	animFrames := transition.FrameCount(sc, opts.FPS)
	if animFrames == 0 {
		return nil, fmt.Errorf("scene %q has no steps to export", sc.ID)
	}
	total := animFrames + opts.HoldFrames

	// Environment errors surface here, before any frame work.
	if err := enc.Configure(EncoderConfig{
		Codec:       opts.Codec,
		Width:       opts.Width,
		Height:      opts.Height,
		FPS:         opts.FPS,
		BitrateKbps: opts.BitrateKbps,
	}); err != nil {
		return nil, fmt.Errorf("encoder configuration rejected: %w", err)
	}

	// An abandoned export must not leak the backend's child process or temp
	// files.
	defer func() {
		if err != nil {
			enc.Close()
		}
	}()

	// The exporter owns a private controller: deterministic seeking must not
	// share a transition record with a live preview.
	ctrl := transition.New()
	problems, err := ctrl.Load(sc)
	if err != nil {
		return nil, err
	}
	if opts.OnProblem != nil {
		for _, p := range problems {
			opts.OnProblem(p)
		}
	}

	keyEvery := int(opts.KeyframeEverySec * float64(opts.FPS))
	if keyEvery < 1 {
		keyEvery = 1
	}

	jobs := make(chan frameJob, opts.PipelineDepth)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < total; i++ {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrCanceled, err)
			}

			// Hold frames repeat the final animation frame; the seek is
			// idempotent so re-seeking is exact, not approximate.
			seekTo := i
			if seekTo >= animFrames {
				seekTo = animFrames - 1
			}
			if err := ctrl.SeekToFrame(seekTo, opts.FPS); err != nil {
				return err
			}

			surface := r.CreateSurface(opts.Width, opts.Height)
			if err := r.Render(surface, ctrl.Current(), sc.Background); err != nil {
				return fmt.Errorf("render frame %d: %w", i, err)
			}

			pts := int64(i) * 1_000_000 / int64(opts.FPS)
			next := int64(i+1) * 1_000_000 / int64(opts.FPS)
			select {
			case jobs <- frameJob{
				surface:   surface,
				ptsMicros: pts,
				durMicros: next - pts,
				keyframe:  i%keyEvery == 0,
				index:     i,
			}:
			case <-gctx.Done():
				return fmt.Errorf("%w: %v", ErrCanceled, gctx.Err())
			}
		}
		return nil
	})

	g.Go(func() error {
		for job := range jobs {
			chunk, err := enc.Encode(job.surface, job.ptsMicros, job.durMicros, job.keyframe)
			system.PutFrame(job.surface)
			if err != nil {
				return fmt.Errorf("encode frame %d: %w", job.index, err)
			}
			if len(chunk) > 0 {
				if err := mux.AddChunk(chunk); err != nil {
					return fmt.Errorf("mux frame %d: %w", job.index, err)
				}
			}
			if opts.OnProgress != nil {
				opts.OnProgress(job.index+1, total)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrCanceled) {
			err = fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		return nil, err
	}

	tail, err := enc.Flush()
	if err != nil {
		return nil, fmt.Errorf("encoder flush: %w", err)
	}
	if len(tail) > 0 {
		if err := mux.AddChunk(tail); err != nil {
			return nil, err
		}
	}
	blob, err := mux.Finalize()
	if err != nil {
		return nil, fmt.Errorf("mux finalize: %w", err)
	}

	return &Result{
		Bytes:         blob,
		TotalFrames:   total,
		Duration:      FrameDuration(total, opts.FPS),
		SuggestedName: fmt.Sprintf("%s_%s.webm", sceneName(sc), time.Now().Format("2006-01-02_15-04-05")),
	}, nil
}

// FrameDuration converts a frame count at a rate into the authoritative
// output duration. Wall-clock time never enters into it.
func FrameDuration(frames, fps int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(fps)
}

func sceneName(sc *scene.Scene) string {
	if sc.ID != "" {
		return sc.ID
	}
	return "scene"
}
