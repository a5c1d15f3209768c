package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/poller"
	"github.com/frahmantamala/tonpay/pkg/logger"
)

var pollCmd = &cobra.Command{
	Use:   "poll <transaction-hash>",
	Short: "Poll a payment until it settles",
	Long: `Run the purchase UI's confirmation loop for one transaction. By default it calls
the verification endpoint over HTTP; --in-process verifies directly against the
database and indexer.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runPoll(args[0]))
	},
}

var (
	pollEndpoint  string
	pollInProcess bool
	pollAttemptID string
)

func runPoll(transactionHash string) int {
	config, err := loadConfig(configPath)
	if err != nil {
		if pollInProcess || pollEndpoint == "" {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		// a remote endpoint is enough for HTTP polling
		config = &internal.Config{}
		config.ApplyDefaults()
	}

	log := logger.LoggerWrapper()

	var checker poller.Checker
	if pollInProcess {
		c, err := initCore(config, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			c.Close(ctx)
		}()
		checker = poller.NewVerifierChecker(c.Engine)
	} else {
		endpoint := getStringFlag(pollEndpoint, config.Poller.Endpoint)
		if endpoint == "" {
			endpoint = fmt.Sprintf("http://localhost:%d/api/v1/payments/verify", config.Server.Port)
		}
		checker = poller.NewHTTPChecker(endpoint, config.Indexer.RequestTimeout)
	}

	p, err := poller.New(poller.Config{
		MaxAttempts:  config.Poller.MaxAttempts,
		InitialDelay: config.Poller.InitialDelay,
		Interval:     config.Poller.Interval,
		MaxInterval:  config.Poller.MaxInterval,
		Exponential:  config.Poller.Exponential,
	}, checker, log, poller.WithStateObserver(func(hash string, state poller.State) {
		log.Info("payment state", "transaction_hash", hash, "state", state)
	}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid poller config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	attemptID := pollAttemptID
	if attemptID == "" {
		attemptID = uuid.NewString()
	}

	tracker := poller.NewTracker(p, log)
	defer tracker.Shutdown()

	result := make(chan poller.State, 1)
	if err := tracker.Start(ctx, attemptID, transactionHash, func(state poller.State) {
		result <- state
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start polling: %v\n", err)
		return 1
	}

	select {
	case state := <-result:
		return pollExitCode(state)
	case <-ctx.Done():
		tracker.Cancel(attemptID)
		fmt.Fprintf(os.Stderr, "Polling stopped: %v\n", ctx.Err())
		return 130
	}
}

func pollExitCode(state poller.State) int {
	switch state {
	case poller.StateConfirmed:
		fmt.Println("Payment confirmed.")
		return 0
	case poller.StateFailed:
		fmt.Println("Payment failed on chain.")
		return 2
	case poller.StateTimedOut:
		fmt.Println(poller.TimedOutMessage)
		return 3
	case poller.StateRejected:
		fmt.Fprintln(os.Stderr, "Verification rejected the request; see the log for details.")
		return 4
	default:
		return 130
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	pollCmd.Flags().StringVar(&pollEndpoint, "endpoint", "", "verification endpoint URL (overrides config)")
	pollCmd.Flags().BoolVar(&pollInProcess, "in-process", false, "verify against the database and indexer directly")
	pollCmd.Flags().StringVar(&pollAttemptID, "attempt-id", "", "purchase attempt id owning the loop (random when empty)")

	rootCmd.AddCommand(pollCmd)
}
