package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/tonpay/internal/core/events"
)

// Notifier forwards resolved payments to downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, event *events.PaymentResolvedEvent) error
}

type EventHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewEventHandler(notifier Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EventHandler) HandlePaymentResolved(ctx context.Context, event events.Event) error {
	resolved, ok := event.(*events.PaymentResolvedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment resolved handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentResolvedEvent, got %T", event)
	}

	h.logger.Info("relaying payment resolution",
		"transaction_hash", resolved.TransactionHash,
		"status", resolved.Status,
		"source", resolved.Source,
		"event_id", resolved.EventID())

	if err := h.notifier.Notify(ctx, resolved); err != nil {
		h.logger.Error("failed to relay payment resolution",
			"error", err,
			"transaction_hash", resolved.TransactionHash,
			"event_id", resolved.EventID())
		return fmt.Errorf("relay payment %s: %w", resolved.TransactionHash, err)
	}

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentConfirmed, h.HandlePaymentResolved)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentResolved)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{events.EventTypePaymentConfirmed, events.EventTypePaymentFailed})
}
