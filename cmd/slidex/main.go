package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"github.com/slidex/slidex-extraction-service/internal/domain/port"
	"github.com/slidex/slidex-extraction-service/internal/infra/config"
	"github.com/slidex/slidex-extraction-service/internal/infra/export"
	"github.com/slidex/slidex-extraction-service/internal/infra/ffmpeg"
	"github.com/slidex/slidex-extraction-service/internal/infra/metrics"
	"github.com/slidex/slidex-extraction-service/internal/infra/tracing"
	"github.com/slidex/slidex-extraction-service/internal/pipeline"
	"github.com/slidex/slidex-extraction-service/internal/usecase"
	"github.com/slidex/slidex-extraction-service/pkg/logger"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	thumbWidth  = 220
	thumbHeight = 140
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	app := newCommand(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "slidex",
		Usage: "Extract de-duplicated slide frames from a screen-recorded lecture video",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Source video file",
				Required: true,
			},
			&cli.FloatFlag{
				Name:  "scene-sensitivity",
				Usage: "Scene-change threshold in [0,1]; lower catches more changes (sweet spot 0.25-0.40)",
				Value: cfg.SceneSensitivity,
			},
			&cli.FloatFlag{
				Name:  "dup-strictness",
				Usage: "Similarity threshold in [0,1] above which frames merge; lower removes more duplicates (sweet spot 0.80-0.95)",
				Value: cfg.DupStrictness,
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Export mode: document (PDF) or imageFolder",
				Value: string(port.ExportModeDocument),
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output PDF path or image directory (default derived from the video name)",
			},
			&cli.IntSliceFlag{
				Name:  "deselect",
				Usage: "Frame indices to exclude from the export (repeatable)",
			},
			&cli.StringFlag{
				Name:  "thumb-dir",
				Usage: "Write review thumbnails of all detected frames into this directory",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, cfg)
		},
	}
}

func run(ctx context.Context, cmd *cli.Command, cfg *config.Config) error {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	if cfg.MetricsPort > 0 {
		srv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	sampler := ffmpeg.NewSceneSampler(ffmpeg.SamplerConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Format:      cfg.FrameFormat,
		TempDir:     cfg.TempDir,
	}, log)
	uc := usecase.NewExtractSlidesUseCase(sampler, log)
	ctrl := pipeline.NewController(uc,
		export.NewPDFExporter(cfg.TempDir, log),
		export.NewImageExporter(log),
		log,
	)

	input := cmd.String("input")
	sensitivity := cmd.Float("scene-sensitivity")
	strictness := cmd.Float("dup-strictness")

	fmt.Printf("Scene sensitivity %.2f (%s), duplicate strictness %.2f (%s)\n",
		sensitivity, sensitivityLabel(sensitivity),
		strictness, strictnessLabel(strictness),
	)

	handle, err := ctrl.StartExtraction(ctx, input, sensitivity, strictness)
	if err != nil {
		return err
	}

	if err := watchProgress(ctx, ctrl, handle); err != nil {
		return err
	}

	status, err := ctrl.Status(handle)
	if err != nil {
		return err
	}
	switch status.State {
	case entity.JobStateCancelled:
		fmt.Println("Extraction cancelled.")
		return nil
	case entity.JobStateFailed:
		return fmt.Errorf("extraction failed: %s", status.ErrorMessage)
	}

	store, err := ctrl.Store(handle)
	if err != nil {
		return err
	}
	fmt.Printf("%d unique slide(s) detected:\n", store.Len())
	for _, f := range store.Frames() {
		fmt.Printf("  #%-3d %8.2fs\n", f.Index, f.Timestamp)
	}

	if dir := cmd.String("thumb-dir"); dir != "" {
		if err := writeThumbnails(store, dir); err != nil {
			return err
		}
		fmt.Printf("Thumbnails written to %s\n", dir)
	}

	for _, idx := range cmd.IntSlice("deselect") {
		if err := ctrl.Toggle(handle, int(idx)); err != nil {
			return err
		}
	}
	included, err := ctrl.IncludedCount(handle)
	if err != nil {
		return err
	}
	fmt.Printf("%d / %d slides selected for export\n", included, store.Len())

	mode := port.ExportMode(cmd.String("mode"))
	dest := cmd.String("out")
	if dest == "" {
		dest = defaultDest(input, mode)
	}

	artifact, err := ctrl.Export(ctx, handle, mode, dest)
	if err != nil {
		return err
	}
	fmt.Printf("Export complete: %s\n", artifact)
	return nil
}

func watchProgress(ctx context.Context, ctrl *pipeline.Controller, handle pipeline.JobHandle) error {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
	)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	waitCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doneCh := make(chan error, 1)
	go func() { doneCh <- ctrl.Wait(waitCtx, handle) }()

	for {
		select {
		case <-ctx.Done():
			// Cooperative cancel; the worker still owns the terminal state.
			ctrl.Cancel(handle)
			err := <-doneCh
			bar.Finish()
			fmt.Println()
			return err
		case err := <-doneCh:
			bar.Set(100)
			fmt.Println()
			return err
		case <-ticker.C:
			if status, err := ctrl.Status(handle); err == nil {
				bar.Set(int(status.Progress * 100))
			}
		}
	}
}

func writeThumbnails(store *entity.FrameStore, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i := 0; i < store.Len(); i++ {
		thumb, err := store.Thumbnail(i, thumbWidth, thumbHeight)
		if err != nil {
			return err
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("thumb_%04d.png", i)))
		if err != nil {
			return err
		}
		if err := png.Encode(f, thumb); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func defaultDest(input string, mode port.ExportMode) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	dir := filepath.Dir(input)
	if mode == port.ExportModeImageFolder {
		return filepath.Join(dir, stem+"_extracted-slides")
	}
	return filepath.Join(dir, stem+"_extracted-slides.pdf")
}

func sensitivityLabel(v float64) string {
	switch {
	case v < 0.15:
		return "very sensitive"
	case v < 0.30:
		return "sensitive"
	case v < 0.45:
		return "balanced"
	default:
		return "conservative"
	}
}

func strictnessLabel(v float64) string {
	switch {
	case v < 0.80:
		return "aggressive"
	case v < 0.88:
		return "strict"
	case v < 0.95:
		return "balanced"
	default:
		return "lenient"
	}
}
