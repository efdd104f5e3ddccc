package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/downloader"
	internalhttp "github.com/jmylchreest/cliparr/internal/http"
	"github.com/jmylchreest/cliparr/internal/http/handlers"
	"github.com/jmylchreest/cliparr/internal/maintenance"
	"github.com/jmylchreest/cliparr/internal/store"
	"github.com/jmylchreest/cliparr/internal/version"
	"github.com/jmylchreest/cliparr/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cliparr API server",
	Long: `Start the cliparr HTTP server and API.

The server provides:
- REST API for submitting clip jobs and tracking their progress
- Clip library and rendered output downloads
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", config.DefaultServerHost, "Host to bind to")
	serveCmd.Flags().Int("port", config.DefaultServerPort, "Port to listen on")
	serveCmd.Flags().Bool("with-worker", false, "Run an embedded worker alongside the API server")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("with-worker") {
		cfg.Server.WithWorker, _ = cmd.Flags().GetBool("with-worker")
	}

	if err := resolveTools(cfg, logger); err != nil {
		return err
	}
	if err := ensureDirs(cfg); err != nil {
		return err
	}

	// Open the clip library
	db, err := openLibrary(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening clip library: %w", err)
	}
	defer db.Close()

	clips := store.NewClipRepository(db.DB)
	runs := store.NewRunRepository(db.DB)

	broker, err := connectBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	// Assemble the pipeline; the embedded worker and the templates handler
	// share the loaded catalog with it.
	pipe, templates, err := buildPipeline(cfg, clips, runs, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Start scheduled maintenance (retention sweeps, backups, stale claim
	// release)
	maint := maintenance.New(maintenance.Deps{
		Storage: cfg.Storage,
		Backup:  cfg.Backup,
		Sweep:   cfg.Maintenance,
		DB:      db,
		Clips:   clips,
		Runs:    runs,
		Broker:  broker,
		Logger:  logger,
	})
	if err := maint.Start(ctx); err != nil {
		return fmt.Errorf("starting maintenance: %w", err)
	}
	defer maint.Stop()

	// Initialize HTTP server
	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout.Duration()
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout.Duration()
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout.Duration()
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	// Register handlers
	healthHandler := handlers.NewHealthHandler(version.Version).
		WithBroker(broker).
		WithStore(db)
	healthHandler.Register(server.API())

	jobHandler := handlers.NewJobHandler(broker, cfg.Storage.OutputDir, logger)
	jobHandler.Register(server.API())
	jobHandler.RegisterChiRoutes(server.Router())

	clipsHandler := handlers.NewClipsHandler(cfg.Storage.OutputDir, clips, logger)
	clipsHandler.Register(server.API())

	outputsHandler := handlers.NewOutputsHandler(cfg.Storage.OutputDir, logger)
	outputsHandler.RegisterChiRoutes(server.Router())

	templatesHandler := handlers.NewTemplatesHandler(templates, cfg.Pipeline.DefaultTemplate)
	templatesHandler.Register(server.API())

	videoInfoHandler := handlers.NewVideoInfoHandler(downloader.New(cfg.Downloader, logger))
	videoInfoHandler.Register(server.API())

	systemHandler := handlers.NewSystemHandler(version.Version, broker, logger)
	systemHandler.Register(server.API())

	// Optionally run a worker inside the server process. Useful for
	// single-machine deployments that do not want a separate worker fleet.
	var workerDone chan struct{}
	if cfg.Server.WithWorker {
		runner := worker.NewRunner(broker, pipe, cfg.Worker, logger)
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			if err := runner.Run(ctx); err != nil {
				logger.Error("embedded worker stopped", slog.Any("error", err))
			}
		}()
		logger.Info("embedded worker started",
			slog.String("worker", runner.Name()),
			slog.String("queue", broker.QueueName()),
		)
	}

	// Start server
	logger.Info("starting cliparr server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	err = server.ListenAndServe(ctx)
	if workerDone != nil {
		cancel()
		<-workerDone
	}
	return err
}
