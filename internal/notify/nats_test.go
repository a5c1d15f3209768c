package notify_test

import (
	"context"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/tonpay/internal/core/events"
	"github.com/frahmantamala/tonpay/internal/notify"
)

var _ = Describe("NATSNotifier", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	})

	Context("without a NATS url", func() {
		var notifier *notify.NATSNotifier

		BeforeEach(func() {
			var err error
			notifier, err = notify.NewNATSNotifier(notify.Config{Subject: "tonpay.payments"}, logger)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should be disabled and accept notifications", func() {
			event := events.NewPaymentResolvedEvent(events.EventTypePaymentConfirmed,
				"abcd", "UQB-payer", "template-1", "1.5", "confirmed", "verify")

			Expect(notifier.Enabled()).To(BeFalse())
			Expect(notifier.Notify(context.Background(), event)).To(Succeed())
		})

		It("should reject a nil event", func() {
			Expect(notifier.Notify(context.Background(), nil)).ToNot(Succeed())
		})

		It("should refuse to subscribe", func() {
			_, err := notifier.Subscribe(func(string, []byte) {})
			Expect(err).To(HaveOccurred())
		})

		It("should route by status", func() {
			Expect(notifier.SubjectFor("failed")).To(Equal("tonpay.payments.failed"))
		})

		It("should close cleanly", func() {
			Expect(notifier.Close).ToNot(Panic())
		})
	})

	Context("with an unreachable server", func() {
		It("should fail to connect", func() {
			_, err := notify.NewNATSNotifier(notify.Config{URL: "nats://127.0.0.1:1", Subject: "tonpay.payments"}, logger)
			Expect(err).To(HaveOccurred())
		})
	})
})
