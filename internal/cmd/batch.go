package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/grainmatch/internal/pipeline"
	"github.com/MeKo-Tech/grainmatch/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Render grain over a sequence of frames in parallel",
	Long: `Render grain over every PNG in --input-dir, in name order. Each frame gets
the seed base+index so the grain moves between frames but re-renders are exact.
Without --input-dir, --frames grey canvas frames are rendered instead.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addRenderFlags(batchCmd, "batch")
	batchCmd.Flags().String("input-dir", "", "Directory of input frames (PNG)")
	batchCmd.Flags().String("shadow-dir", "", "Directory of shadow masks matching input file names")
	batchCmd.Flags().Int("frames", 0, "Number of canvas frames when --input-dir is not set")
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	batchCmd.Flags().Bool("progress", true, "Show progress bar")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some frames fail")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"batch.input_dir", "input-dir"},
		{"batch.shadow_dir", "shadow-dir"},
		{"batch.frames", "frames"},
		{"batch.workers", "workers"},
		{"batch.progress", "progress"},
		{"batch.allow_failures", "allow-failures"},
	}
	for _, bf := range bindFlags {
		mustBind(batchCmd, bf.key, bf.flag)
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	inputDir := viper.GetString("batch.input_dir")
	shadowDir := viper.GetString("batch.shadow_dir")
	frameCount := viper.GetInt("batch.frames")
	workers := viper.GetInt("batch.workers")
	showProgress := viper.GetBool("batch.progress")
	allowFailures := viper.GetBool("batch.allow_failures")

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := rendererConfig(ctx, "batch")
	if err != nil {
		return err
	}

	frames, err := collectFrames(inputDir, shadowDir, frameCount)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames to render: set --input-dir or --frames")
	}

	r, err := pipeline.NewRenderer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init renderer: %w", err)
	}

	tasks := make([]worker.Task, 0, len(frames))
	for _, f := range frames {
		tasks = append(tasks, worker.Task{Frame: f})
	}

	logger.Info("Starting batch grain rendering",
		"frames", len(tasks),
		"workers", workers,
		"iso", cfg.Settings.ISO,
		"seed", cfg.Seed,
		"output_dir", cfg.OutputDir,
	)

	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Renderer:   r,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	for _, res := range results {
		if res.Err != nil {
			logger.Error("Frame rendering failed", "frame", res.Task.Frame.Index, "input", res.Task.Frame.Input, "error", res.Err)
		}
	}
	logger.Info(progress.Summary())

	tally := worker.Summarize(results)
	if tally.Failed > 0 {
		if allowFailures {
			logger.Warn("Some frames failed to render, but continuing due to --allow-failures flag", "failed_count", tally.Failed)
			return nil
		}
		return fmt.Errorf("%d of %d frames failed to render", tally.Failed, tally.Total)
	}
	return nil
}

// collectFrames lists the PNG frames in inputDir in name order, pairing each
// with a same-named mask in shadowDir when one exists. With no inputDir it
// returns count canvas frames.
func collectFrames(inputDir, shadowDir string, count int) ([]pipeline.Frame, error) {
	if inputDir == "" {
		if count < 0 {
			return nil, fmt.Errorf("--frames must not be negative")
		}
		frames := make([]pipeline.Frame, count)
		for i := range frames {
			frames[i] = pipeline.Frame{Index: i}
		}
		return frames, nil
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	frames := make([]pipeline.Frame, 0, len(names))
	for i, name := range names {
		f := pipeline.Frame{Index: i, Input: filepath.Join(inputDir, name)}
		if shadowDir != "" {
			path := filepath.Join(shadowDir, name)
			if _, err := os.Stat(path); err == nil {
				f.Shadow = path
			}
		}
		frames = append(frames, f)
	}
	return frames, nil
}
