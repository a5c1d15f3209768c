package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/tonpay/internal/reconcile"
	"github.com/frahmantamala/tonpay/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that run alongside the HTTP server.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Start the pending payment reconciler",
	Long:  `Periodically re-verify payments that stayed pending after client polling and the webhook went quiet.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	batchSize    int
	interval     time.Duration
	minAge       time.Duration
)

func startReconcileWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	c, err := initCore(config, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	// Use command line flags if provided, otherwise use config values
	reconcileConfig := reconcile.Config{
		Interval:     getDurationFlag(interval, config.Reconcile.Interval),
		MinAge:       getDurationFlag(minAge, config.Reconcile.MinAge),
		BatchSize:    getIntFlag(batchSize, config.Reconcile.BatchSize),
		JobTimeout:   config.Indexer.RequestTimeout * time.Duration(config.Indexer.RetryCount+1),
		MaxWorkers:   getIntFlag(maxWorkers, config.Reconcile.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Reconcile.JobQueueSize),
	}

	log.Info("starting reconcile worker",
		"interval", reconcileConfig.Interval,
		"min_age", reconcileConfig.MinAge,
		"batch_size", reconcileConfig.BatchSize,
		"max_workers", reconcileConfig.MaxWorkers)

	sweeper := reconcile.NewSweeper(reconcileConfig, c.Pending, c.Engine, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sweeper.Run(ctx); err != nil {
		log.Error("reconcile worker stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.Close(shutdownCtx)

	log.Info("reconcile worker shutdown complete")
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	reconcileWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	reconcileWorkerCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Stale payments fetched per sweep (overrides config)")
	reconcileWorkerCmd.Flags().DurationVar(&interval, "interval", 0, "Time between sweeps (overrides config)")
	reconcileWorkerCmd.Flags().DurationVar(&minAge, "min-age", 0, "Minimum age of a pending payment before it is swept (overrides config)")

	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
