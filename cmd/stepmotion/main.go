package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/stepmotion/internal/encode/ffmpegenc"
	"github.com/ivlev/stepmotion/internal/export"
	"github.com/ivlev/stepmotion/internal/preview"
	"github.com/ivlev/stepmotion/internal/render/softpaint"
	"github.com/ivlev/stepmotion/internal/scene"
	"github.com/ivlev/stepmotion/internal/system"
	"github.com/ivlev/stepmotion/internal/transition"
	"github.com/ivlev/stepmotion/internal/webm"
)

var (
	outputPath string
	width      int
	height     int
	fps        int
	holdSec    float64
	bitrate    int
	preset     string
	patchFPS   int
	patchFrame int
	patchSecs  float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stepmotion",
		Short: "declarative step-by-step diagrams rendered to frame-accurate video",
	}

	exportCmd := &cobra.Command{
		Use:   "export <scene.yaml>",
		Short: "render a scene to a WebM file",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path (default: derived from the scene id)")
	exportCmd.Flags().IntVar(&width, "width", 1280, "output width")
	exportCmd.Flags().IntVar(&height, "height", 720, "output height")
	exportCmd.Flags().IntVar(&fps, "fps", 30, "frame rate")
	exportCmd.Flags().Float64Var(&holdSec, "hold", 1.0, "seconds to hold the final state")
	exportCmd.Flags().IntVar(&bitrate, "bitrate", 4000, "video bitrate, kbit/s")
	exportCmd.Flags().StringVar(&preset, "preset", "", "format preset: 16:9, 9:16, 4:5")

	previewCmd := &cobra.Command{
		Use:   "preview <scene.yaml>",
		Short: "play a scene live in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, problems, err := scene.Read(args[0])
			if err != nil {
				return err
			}
			warnProblems(problems)
			return preview.Run(sc)
		},
	}

	patchCmd := &cobra.Command{
		Use:   "patch <file.webm>",
		Short: "repair a container's duration metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatch,
	}
	patchCmd.Flags().IntVar(&patchFrame, "frames", 0, "authoritative total frame count")
	patchCmd.Flags().IntVar(&patchFPS, "fps", 30, "frame rate the frame count refers to")
	patchCmd.Flags().Float64Var(&patchSecs, "duration", 0, "authoritative duration in seconds (alternative to --frames)")
	patchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the patched file here instead of in place")

	inspectCmd := &cobra.Command{
		Use:   "inspect <scene.yaml>",
		Short: "dump the effective object state at every step",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	initCmd := &cobra.Command{
		Use:   "init <scene.yaml>",
		Short: "write a starter scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scene.Write(starterScene(), args[0]); err != nil {
				return err
			}
			fmt.Printf("[+++] Starter scene written: %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(exportCmd, previewCmd, patchCmd, inspectCmd, initCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	system.InitResourceLimits()

	switch preset {
	case "16:9":
		width, height = 1280, 720
	case "9:16":
		width, height = 720, 1280
	case "4:5":
		width, height = 1080, 1350
	}

	sc, problems, err := scene.Read(args[0])
	if err != nil {
		return err
	}
	warnProblems(problems)

	animFrames := transition.FrameCount(sc, fps)
	holdFrames := int(holdSec * float64(fps))
	fmt.Printf("[*] Scene: %s | Steps: %d | Frames: %d (+%d hold)\n", sc.ID, len(sc.Steps), animFrames, holdFrames)
	fmt.Printf("[*] Resolution: %dx%d @ %d FPS\n", width, height, fps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := ffmpegenc.New(ctx)
	mux := &ffmpegenc.BufferMuxer{}
	renderer := &softpaint.Renderer{Warn: func(id, msg string) {
		log.Printf("[!] %s: %s", id, msg)
	}}

	total := animFrames + holdFrames
	result, err := export.Export(ctx, sc, renderer, enc, mux, export.Options{
		FPS:           fps,
		Width:         width,
		Height:        height,
		HoldFrames:    holdFrames,
		BitrateKbps:   bitrate,
		PipelineDepth: system.SuggestPipelineDepth(width, height),
		OnProgress: func(current, totalFrames int) {
			if current%fps == 0 || current == totalFrames {
				fmt.Printf("[>] Frame %d/%d\n", current, totalFrames)
			}
		},
	})
	if err != nil {
		return err
	}

	// Some encoder builds leave the duration field missing or zero; repair it
	// from the authoritative frame count.
	patched, ok := webm.PatchDuration(result.Bytes, result.Duration)
	if ok {
		result.Bytes = patched
	} else {
		log.Printf("[!] Container duration could not be patched; leaving as encoded")
	}

	out := outputPath
	if out == "" {
		out = result.SuggestedName
	}
	if err := os.WriteFile(out, result.Bytes, 0644); err != nil {
		return err
	}

	fmt.Printf("[+++] Done: %s (%d frames, %s)\n", out, total, result.Duration)
	return nil
}

func runPatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var d time.Duration
	switch {
	case patchFrame > 0:
		d = export.FrameDuration(patchFrame, patchFPS)
	case patchSecs > 0:
		d = time.Duration(patchSecs * float64(time.Second))
	default:
		return fmt.Errorf("one of --frames or --duration is required")
	}

	if prev, ok := webm.ReadDuration(data); ok {
		fmt.Printf("[*] Declared duration before patch: %s\n", prev)
	} else {
		fmt.Println("[*] No duration declared in container")
	}

	patched, ok := webm.PatchDuration(data, d)
	if !ok {
		return fmt.Errorf("container structure not recognized; file left untouched")
	}

	out := outputPath
	if out == "" {
		out = args[0]
	}
	if err := os.WriteFile(out, patched, 0644); err != nil {
		return err
	}
	fmt.Printf("[+++] Duration set to %s: %s\n", d, out)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	sc, problems, err := scene.Read(args[0])
	if err != nil {
		return err
	}
	warnProblems(problems)

	ctrl := transition.New()
	if _, err := ctrl.Load(sc); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for i := range sc.Steps {
		fmt.Fprintf(w, "step %d (%s)\t%.0fms\n", i, sc.Steps[i].ID, sc.StepDurationMs(i))
		for _, obj := range ctrl.EffectiveState(i) {
			parent := ""
			if obj.Parent != "" {
				parent = " parent=" + obj.Parent
			}
			fmt.Fprintf(w, "\t%s\t%s%s\t%v\n", obj.ID, obj.Type, parent, obj.Props)
		}
	}
	return w.Flush()
}

func warnProblems(problems []scene.Problem) {
	for _, p := range problems {
		log.Printf("[!] %s", p)
	}
}

func starterScene() *scene.Scene {
	return &scene.Scene{
		ID:           "example",
		TransitionMs: 900,
		Background:   "#f4f4f4",
		Steps: []scene.Step{
			{
				ID: "intro",
				Objects: []scene.ObjectDelta{
					{ID: "api", Type: "rect", Props: scene.Bag{
						"x": 30, "y": 40, "width": 18, "height": 12,
						"fill": "#4a90d9", "corner_radius": 1.5,
						"text": "API",
					}},
					{ID: "db", Type: "rect", Props: scene.Bag{
						"x": 70, "y": 40, "width": 18, "height": 12,
						"fill": "#d97a4a", "corner_radius": 1.5,
						"text": "DB",
					}},
				},
			},
			{
				ID:         "connect",
				DurationMs: 1200,
				Objects: []scene.ObjectDelta{
					{ID: "link", Type: "connector", Props: scene.Bag{
						"from": "api", "to": "db",
						"from_anchor": "right", "to_anchor": "left",
						"stroke": "#333333", "stroke_width": 0.4,
					}},
					{ID: "db", Props: scene.Bag{"y": 60}},
				},
			},
		},
	}
}
