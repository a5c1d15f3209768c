package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/frahmantamala/tonpay/internal/core/events"
)

type Config struct {
	URL     string
	Subject string
}

// message is what downstream fulfilment services receive.
type message struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	OccurredAt      time.Time `json:"occurred_at"`
	TransactionHash string    `json:"transaction_hash"`
	PayerAddress    string    `json:"payer_address"`
	ItemID          string    `json:"item_id"`
	Amount          string    `json:"amount"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
}

// NATSNotifier publishes resolved payments to <subject>.<status>.
// With no URL configured it only logs.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	enabled bool
	logger  *slog.Logger
}

func NewNATSNotifier(config Config, logger *slog.Logger) (*NATSNotifier, error) {
	if config.URL == "" {
		logger.Info("nats url not set, payment notifications disabled")
		return &NATSNotifier{subject: config.Subject, logger: logger}, nil
	}

	conn, err := nats.Connect(config.URL,
		nats.Name("tonpay"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to nats", "url", conn.ConnectedUrl(), "subject", config.Subject)

	return &NATSNotifier{
		conn:    conn,
		subject: config.Subject,
		enabled: true,
		logger:  logger,
	}, nil
}

func (n *NATSNotifier) Enabled() bool {
	return n.enabled
}

// SubjectFor returns the subject a payment with status is published on.
func (n *NATSNotifier) SubjectFor(status string) string {
	return n.subject + "." + status
}

func (n *NATSNotifier) Notify(ctx context.Context, event *events.PaymentResolvedEvent) error {
	if event == nil {
		return errors.New("nil payment event")
	}

	if !n.enabled {
		n.logger.Debug("payment notification skipped",
			"transaction_hash", event.TransactionHash,
			"status", event.Status)
		return nil
	}

	if n.conn == nil {
		return errors.New("nats connection is not initialized")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(message{
		EventID:         event.EventID(),
		EventType:       event.EventType(),
		OccurredAt:      event.OccurredAt(),
		TransactionHash: event.TransactionHash,
		PayerAddress:    event.PayerAddress,
		ItemID:          event.ItemID,
		Amount:          event.Amount,
		Status:          event.Status,
		Source:          event.Source,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payment notification: %w", err)
	}

	subject := n.SubjectFor(event.Status)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	n.logger.Info("payment notification published",
		"subject", subject,
		"transaction_hash", event.TransactionHash,
		"event_id", event.EventID())
	return nil
}

// Subscribe delivers every payment notification under the configured subject.
func (n *NATSNotifier) Subscribe(handler func(subject string, payload []byte)) (*nats.Subscription, error) {
	if !n.enabled || n.conn == nil {
		return nil, errors.New("nats notifications are disabled")
	}
	return n.conn.Subscribe(n.subject+".>", func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

func (n *NATSNotifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.logger.Warn("nats drain failed", "error", err)
		n.conn.Close()
	}
	n.logger.Info("nats connection closed")
}
