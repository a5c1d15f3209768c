package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/tonpay/internal/core/events"
	"github.com/frahmantamala/tonpay/internal/notify"
	paymentpkg "github.com/frahmantamala/tonpay/internal/payment"
	"github.com/frahmantamala/tonpay/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Payment event commands",
	Long:  `Inspect and test the payment events relayed to NATS`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish <transaction-hash>",
	Short: "Publish a test payment event",
	Long:  `Publish a payment.confirmed (or --failed) event through the event bus and NATS relay`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishTestEvent(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to publish event: %v\n", err)
			os.Exit(1)
		}
	},
}

var tailEventCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print payment events as they arrive on NATS",
	Run: func(cmd *cobra.Command, args []string) {
		if err := tailEvents(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to tail events: %v\n", err)
			os.Exit(1)
		}
	},
}

var publishFailed bool

func newNotifier() (*notify.NATSNotifier, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return notify.NewNATSNotifier(notify.Config{
		URL:     config.Events.NATSURL,
		Subject: config.Events.Subject,
	}, logger.LoggerWrapper())
}

func publishTestEvent(transactionHash string) error {
	log := logger.LoggerWrapper()

	notifier, err := newNotifier()
	if err != nil {
		return err
	}
	defer notifier.Close()

	eventBus := events.NewEventBus(log)
	paymentpkg.NewEventHandler(notifier, log).RegisterEventHandlers(eventBus)

	eventType, status := events.EventTypePaymentConfirmed, payment.StatusConfirmed
	if publishFailed {
		eventType, status = events.EventTypePaymentFailed, payment.StatusFailed
	}

	event := events.NewPaymentResolvedEvent(eventType, transactionHash,
		"cli", "cli-test", "0", status, "cli")

	log.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return eventBus.PublishSync(ctx, event)
}

func tailEvents() error {
	notifier, err := newNotifier()
	if err != nil {
		return err
	}
	defer notifier.Close()

	sub, err := notifier.Subscribe(func(subject string, payload []byte) {
		fmt.Printf("%s %s\n", subject, payload)
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.LoggerWrapper().Info("tailing payment events. Press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}

func init() {
	publishEventCmd.Flags().BoolVar(&publishFailed, "failed", false, "publish payment.failed instead of payment.confirmed")

	eventCmd.AddCommand(publishEventCmd)
	eventCmd.AddCommand(tailEventCmd)

	rootCmd.AddCommand(eventCmd)
}
