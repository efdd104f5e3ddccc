package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cliparr/internal/store"
	"github.com/jmylchreest/cliparr/internal/worker"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Start a clip generation worker",
	Long: `Start a worker that claims queued jobs and runs the clip pipeline.

The worker registers itself on the job broker under a unique name,
heartbeats while alive, and processes one job at a time. Run one worker
per machine; a second live worker under the same name is refused.`,
	RunE: runWork,
}

func init() {
	rootCmd.AddCommand(workCmd)

	workCmd.Flags().String("worker-name", "", "Worker name to register on the broker (default from config)")
	workCmd.Flags().String("queue", "", "Queue to claim jobs from (default from config)")
}

func runWork(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	if cmd.Flags().Changed("worker-name") {
		cfg.Worker.Name, _ = cmd.Flags().GetString("worker-name")
	}
	if cmd.Flags().Changed("queue") {
		cfg.Worker.Queue, _ = cmd.Flags().GetString("queue")
	}
	// Workers claim from their configured queue, which may differ from the
	// queue the server enqueues to.
	if cfg.Worker.Queue != "" {
		cfg.Redis.Queue = cfg.Worker.Queue
	}

	if err := resolveTools(cfg, logger); err != nil {
		return err
	}
	if err := ensureDirs(cfg); err != nil {
		return err
	}

	db, err := openLibrary(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening clip library: %w", err)
	}
	defer db.Close()

	broker, err := connectBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close()

	pipe, _, err := buildPipeline(cfg,
		store.NewClipRepository(db.DB),
		store.NewRunRepository(db.DB),
		logger,
	)
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

	runner := worker.NewRunner(broker, pipe, cfg.Worker, logger)
	return runner.Run(ctx)
}
