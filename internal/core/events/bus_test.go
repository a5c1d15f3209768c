package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/tonpay/internal/core/events"
)

var _ = Describe("EventBus", func() {
	var (
		bus   *events.EventBus
		event *events.PaymentResolvedEvent
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		bus = events.NewEventBus(logger)
		event = events.NewPaymentResolvedEvent(events.EventTypePaymentConfirmed,
			"abcd", "UQB-payer", "template-1", "1.5", "confirmed", "webhook")
	})

	It("should carry the payment in the event payload", func() {
		Expect(event.EventType()).To(Equal(events.EventTypePaymentConfirmed))
		Expect(event.EventID()).ToNot(BeEmpty())
		Expect(event.OccurredAt()).To(BeTemporally("~", time.Now(), time.Second))
		Expect(event.Payload()).To(HaveKeyWithValue("transaction_hash", "abcd"))
	})

	It("should deliver to every subscriber of the type and drain", func() {
		var delivered int32
		handler := func(ctx context.Context, e events.Event) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&delivered, 1)
			return nil
		}
		bus.Subscribe(events.EventTypePaymentConfirmed, handler)
		bus.Subscribe(events.EventTypePaymentConfirmed, handler)
		bus.Subscribe(events.EventTypePaymentFailed, handler)

		Expect(bus.Publish(context.Background(), event)).To(Succeed())
		Expect(bus.Drain(context.Background())).To(Succeed())

		Expect(atomic.LoadInt32(&delivered)).To(Equal(int32(2)))
	})

	It("should ignore events nobody listens to", func() {
		Expect(bus.Publish(context.Background(), event)).To(Succeed())
		Expect(bus.PublishSync(context.Background(), event)).To(Succeed())
	})

	It("should surface handler errors when publishing synchronously", func() {
		bus.Subscribe(events.EventTypePaymentConfirmed, func(ctx context.Context, e events.Event) error {
			return errors.New("nats down")
		})

		err := bus.PublishSync(context.Background(), event)

		Expect(err).To(MatchError(ContainSubstring("nats down")))
	})

	It("should stop draining when the context expires", func() {
		release := make(chan struct{})
		defer close(release)
		bus.Subscribe(events.EventTypePaymentConfirmed, func(ctx context.Context, e events.Event) error {
			<-release
			return nil
		})
		Expect(bus.Publish(context.Background(), event)).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		Expect(bus.Drain(ctx)).To(MatchError(ContainSubstring("deadline exceeded")))
	})
})
