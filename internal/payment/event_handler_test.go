package payment_test

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/tonpay/internal/core/events"
	paymentPkg "github.com/frahmantamala/tonpay/internal/payment"
)

type mockNotifier struct {
	mu       sync.Mutex
	notified []*events.PaymentResolvedEvent
	err      error
}

func (m *mockNotifier) Notify(ctx context.Context, event *events.PaymentResolvedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.notified = append(m.notified, event)
	return nil
}

func (m *mockNotifier) received() []*events.PaymentResolvedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.PaymentResolvedEvent(nil), m.notified...)
}

var _ = Describe("EventHandler", func() {
	var (
		notifier *mockNotifier
		handler  *paymentPkg.EventHandler
		bus      *events.EventBus
		ctx      context.Context
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		notifier = &mockNotifier{}
		handler = paymentPkg.NewEventHandler(notifier, logger)
		bus = events.NewEventBus(logger)
		handler.RegisterEventHandlers(bus)
		ctx = context.Background()
	})

	It("should relay confirmed and failed payments", func() {
		// Given
		confirmed := events.NewPaymentResolvedEvent(events.EventTypePaymentConfirmed, hashTX1, payer, "template-1", "2.5", payment.StatusConfirmed, payment.SourceVerify)
		failed := events.NewPaymentResolvedEvent(events.EventTypePaymentFailed, hashTX2, payer, "template-1", "2.5", payment.StatusFailed, payment.SourceWebhook)

		// When
		Expect(bus.PublishSync(ctx, confirmed)).To(Succeed())
		Expect(bus.PublishSync(ctx, failed)).To(Succeed())

		// Then
		Expect(notifier.received()).To(HaveLen(2))
		Expect(notifier.received()[1].Source).To(Equal(payment.SourceWebhook))
	})

	It("should reject events of the wrong type", func() {
		err := handler.HandlePaymentResolved(ctx, events.BaseEvent{Type: events.EventTypePaymentConfirmed})

		Expect(err).To(HaveOccurred())
		Expect(notifier.received()).To(BeEmpty())
	})

	It("should report relay failures", func() {
		notifier.err = stderrors.New("nats unavailable")
		event := events.NewPaymentResolvedEvent(events.EventTypePaymentConfirmed, hashTX1, payer, "template-1", "2.5", payment.StatusConfirmed, payment.SourceReconcile)

		err := bus.PublishSync(ctx, event)

		Expect(err).To(MatchError(ContainSubstring("nats unavailable")))
	})

	It("should receive what the engine publishes on a transition", func() {
		// Given
		repo := newMockPaymentRepository()
		repo.seed(hashTX3, payment.StatusPending)
		gateway := newMockGateway(confirmedOutcome)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		engine := paymentPkg.NewEngine(repo, gateway, logger, paymentPkg.WithEventPublisher(bus))

		// When
		_, err := engine.Verify(ctx, hashTX3)
		Expect(err).ToNot(HaveOccurred())
		Expect(bus.Drain(ctx)).To(Succeed())

		// Then
		Eventually(notifier.received).Should(HaveLen(1))
		Expect(notifier.received()[0].TransactionHash).To(Equal(hashTX3))
		Expect(notifier.received()[0].Status).To(Equal(payment.StatusConfirmed))
	})
})
