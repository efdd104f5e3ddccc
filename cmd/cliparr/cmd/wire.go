package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/cliparr/internal/asr"
	"github.com/jmylchreest/cliparr/internal/catalog"
	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/downloader"
	"github.com/jmylchreest/cliparr/internal/hook"
	"github.com/jmylchreest/cliparr/internal/media"
	"github.com/jmylchreest/cliparr/internal/queue"
	"github.com/jmylchreest/cliparr/internal/render"
	"github.com/jmylchreest/cliparr/internal/selector"
	"github.com/jmylchreest/cliparr/internal/store"
	"github.com/jmylchreest/cliparr/internal/thumbs"
	"github.com/jmylchreest/cliparr/internal/translate"
	"github.com/jmylchreest/cliparr/internal/util"
	"github.com/jmylchreest/cliparr/internal/vision"
	"github.com/jmylchreest/cliparr/internal/worker"
)

// resolveTools locates the external binaries and rewrites the config paths
// to the resolved locations. Missing ffmpeg or ffprobe is fatal; a missing
// yt-dlp only disables URL sources, so it is just warned about.
func resolveTools(cfg *config.Config, logger *slog.Logger) error {
	ffmpeg, err := util.ResolveTool(cfg.Media.FFmpegPath, "ffmpeg", util.EnvFFmpegBinary)
	if err != nil {
		return err
	}
	cfg.Media.FFmpegPath = ffmpeg

	ffprobe, err := util.ResolveTool(cfg.Media.FFprobePath, "ffprobe", util.EnvFFprobeBinary)
	if err != nil {
		return err
	}
	cfg.Media.FFprobePath = ffprobe

	ytdlp, err := util.ResolveTool(cfg.Downloader.BinaryPath, "yt-dlp", util.EnvYtdlpBinary)
	if err != nil {
		logger.Warn("yt-dlp not found, jobs with URL sources will fail",
			slog.Any("error", err))
		return nil
	}
	cfg.Downloader.BinaryPath = ytdlp

	logger.Info("external tools resolved",
		slog.String("ffmpeg", ffmpeg),
		slog.String("ffprobe", ffprobe),
		slog.String("yt-dlp", ytdlp),
	)
	return nil
}

// ensureDirs creates the directories the service writes into.
func ensureDirs(cfg *config.Config) error {
	dirs := []string{cfg.Storage.OutputDir, cfg.Storage.TempDir}
	if cfg.Database.Driver == "sqlite" {
		dirs = append(dirs, filepath.Dir(cfg.Database.DSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// connectBroker connects to the job broker and verifies it is reachable.
func connectBroker(cfg *config.Config, logger *slog.Logger) (*queue.Broker, error) {
	broker, err := queue.New(cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to job broker: %w", err)
	}
	if err := broker.Ping(context.Background()); err != nil {
		_ = broker.Close()
		return nil, fmt.Errorf("pinging job broker: %w", err)
	}
	return broker, nil
}

// openLibrary opens the clip library and migrates its schema.
func openLibrary(cfg *config.Config, logger *slog.Logger) (*store.DB, error) {
	db, err := store.New(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// buildPipeline assembles the clip generation pipeline from configuration
// and returns it together with the loaded template catalog. The clip and
// run repositories are optional; without them finished jobs simply go
// unrecorded in the library.
func buildPipeline(cfg *config.Config, clips *store.ClipRepository, runs *store.RunRepository, logger *slog.Logger) (*worker.Pipeline, *catalog.Catalog, error) {
	tools := media.NewToolchain(cfg.Media, logger)
	fetcher := downloader.New(cfg.Downloader, logger)
	transcriber := asr.NewClient(cfg.ASR, logger)

	templates, err := catalog.Load(cfg.Catalog, logger)
	if err != nil {
		return nil, nil, err
	}

	// The remote adapters return nil when disabled; assigning a nil pointer
	// into the interface would smuggle a typed nil past the nil checks.
	var sentiment hook.SentimentScorer
	if s := hook.NewHTTPSentiment(cfg.Sentiment, logger); s != nil {
		sentiment = s
	}
	var translator translate.Translator
	if t := translate.NewHTTPTranslator(cfg.Translate, logger); t != nil {
		translator = t
	}

	faces := vision.NewAdapter(cfg.Vision, tools, logger)
	renderOpts := []render.Option{
		render.WithFaces(faces),
		render.WithVoice(faces),
		render.WithLogger(logger),
	}
	if cfg.Pipeline.Thumbnails {
		renderOpts = append(renderOpts, render.WithThumbnails(thumbs.New(tools, logger)))
	}

	pipe := worker.NewPipeline(worker.Deps{
		Config:      cfg,
		Tools:       tools,
		Fetcher:     fetcher,
		Transcriber: transcriber,
		Selector:    selector.New(hook.NewScorer(sentiment), logger),
		Catalog:     templates,
		Renderer:    render.New(tools, renderOpts...),
		Translator:  translator,
		Clips:       clips,
		Runs:        runs,
		Logger:      logger,
	})
	return pipe, templates, nil
}
