package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate clips from a video in one shot",
	Long: `Run the clip pipeline directly against one video, without the server
or the job broker.

The source is either a URL (fetched with yt-dlp) or a local file. Progress
is logged to stderr; the final job result is printed to stdout as JSON.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("video-url", "", "Source video URL")
	generateCmd.Flags().String("video-file", "", "Source video file path")
	generateCmd.Flags().String("job-id", "", "Job id for output naming (default: random)")
	generateCmd.Flags().String("template", "", "Caption template name")
	generateCmd.Flags().String("layout", "", "Vertical layout: fit, fill, square or auto")
	generateCmd.Flags().Float64("clip-duration", 0, "Preferred clip duration in seconds")
	generateCmd.Flags().Float64("min-length", 0, "Minimum clip length in seconds")
	generateCmd.Flags().Float64("max-length", 0, "Maximum clip length in seconds")
	generateCmd.Flags().Float64("target-length", 0, "Target clip length in seconds")
	generateCmd.Flags().Int("max-clips", 0, "Maximum number of clips to render")
	generateCmd.Flags().Float64("min-score", 0, "Minimum hook score for a window to qualify")
	generateCmd.Flags().Float64("timeframe-start", 0, "Only consider source video from this second")
	generateCmd.Flags().Float64("timeframe-end", 0, "Only consider source video up to this second")
	generateCmd.Flags().String("video-language", "", "Source language hint for transcription")
	generateCmd.Flags().Bool("translate-captions", false, "Translate captions before rendering")
	generateCmd.Flags().String("caption-language", "", "Caption target language")
	generateCmd.Flags().String("output-dir", "", "Directory for rendered clips (default from config)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	req := requestFromFlags(cmd.Flags())
	if req.SourceURL == "" && req.SourcePath == "" {
		return fmt.Errorf("either --video-url or --video-file is required")
	}
	if req.JobID == "" {
		req.JobID = uuid.New().String()
	}

	if err := resolveTools(cfg, logger); err != nil {
		return err
	}
	if err := ensureDirs(cfg); err != nil {
		return err
	}

	// The library is optional for one-shot runs; without it the clips are
	// still rendered, just not catalogued.
	var clips *store.ClipRepository
	var runs *store.RunRepository
	if db, err := openLibrary(cfg, logger); err != nil {
		logger.Warn("clip library unavailable, results will not be recorded",
			slog.Any("error", err))
	} else {
		defer db.Close()
		clips = store.NewClipRepository(db.DB)
		runs = store.NewRunRepository(db.DB)
	}

	pipe, _, err := buildPipeline(cfg, clips, runs, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	report := func(snap models.ProgressSnapshot) {
		logger.Info("progress",
			slog.Int("percent", snap.Percent),
			slog.String("stage", snap.Stage),
			slog.String("message", snap.Message),
		)
	}

	result, err := pipe.Run(ctx, req, report)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func requestFromFlags(flags *pflag.FlagSet) *models.JobRequest {
	str := func(name string) string { v, _ := flags.GetString(name); return v }
	f64 := func(name string) float64 { v, _ := flags.GetFloat64(name); return v }

	maxClips, _ := flags.GetInt("max-clips")
	translate, _ := flags.GetBool("translate-captions")

	return &models.JobRequest{
		JobID:            str("job-id"),
		SourceURL:        str("video-url"),
		SourcePath:       str("video-file"),
		Template:         str("template"),
		Layout:           models.Layout(str("layout")),
		ClipDuration:     f64("clip-duration"),
		TimeframeStart:   f64("timeframe-start"),
		TimeframeEnd:     f64("timeframe-end"),
		MinClipLength:    f64("min-length"),
		MaxClipLength:    f64("max-length"),
		TargetClipLength: f64("target-length"),
		MaxClips:         maxClips,
		MinScore:         f64("min-score"),
		Language:         str("video-language"),
		TranslateCaption: translate,
		CaptionLanguage:  str("caption-language"),
		OutputDir:        str("output-dir"),
	}
}
