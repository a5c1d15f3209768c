package internal_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/tonpay/internal"
)

func validConfig() *internal.Config {
	cfg := &internal.Config{
		Server: internal.ServerConfig{
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
		},
		Database: internal.DatabaseConfig{
			Source:          "postgres://localhost/tonpay",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Indexer: internal.IndexerConfig{APIKey: "key"},
		Webhook: internal.WebhookConfig{AuthToken: "0123456789abcdef"},
	}
	cfg.ApplyDefaults()
	return cfg
}

var _ = Describe("Config", func() {
	Context("ApplyDefaults", func() {
		It("should fill the purchase UI polling defaults", func() {
			cfg := &internal.Config{}
			cfg.ApplyDefaults()

			Expect(cfg.Poller.MaxAttempts).To(Equal(20))
			Expect(cfg.Poller.InitialDelay).To(Equal(5 * time.Second))
			Expect(cfg.Poller.Interval).To(Equal(5 * time.Second))
			Expect(cfg.Indexer.BaseURL).To(Equal("https://tonapi.io"))
			Expect(cfg.Reconcile.MinAge).To(Equal(2 * time.Minute))
		})

		It("should keep explicit values", func() {
			cfg := &internal.Config{Poller: internal.PollerConfig{MaxAttempts: 3}}
			cfg.ApplyDefaults()

			Expect(cfg.Poller.MaxAttempts).To(Equal(3))
		})
	})

	Context("Validate", func() {
		It("should accept a complete config", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		DescribeTable("rejected configs",
			func(mutate func(*internal.Config), fragment string) {
				cfg := validConfig()
				mutate(cfg)

				err := cfg.Validate()

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(fragment))
			},
			Entry("short webhook token", func(c *internal.Config) { c.Webhook.AuthToken = "short" }, "AuthToken"),
			Entry("missing api key", func(c *internal.Config) { c.Indexer.APIKey = "" }, "APIKey"),
			Entry("missing database source", func(c *internal.Config) { c.Database.Source = "" }, "Source"),
			Entry("idle above open connections", func(c *internal.Config) { c.Database.MaxIdleConns = 50 }, "max_idle_conns"),
			Entry("cap below interval", func(c *internal.Config) { c.Poller.MaxInterval = time.Second }, "max_interval"),
			Entry("cache without address", func(c *internal.Config) { c.Cache.Enabled = true }, "Addr"),
			Entry("read timeout below header timeout", func(c *internal.Config) { c.Server.ReadTimeout = time.Second }, "read_timeout"),
		)
	})

	Context("LoadConfigFromEnv", func() {
		It("should read deployment variables", func() {
			GinkgoT().Setenv("DATABASE_URL", "postgres://db/tonpay")
			GinkgoT().Setenv("TONAPI_KEY", "env-key")
			GinkgoT().Setenv("WEBHOOK_AUTH_TOKEN", "fedcba9876543210")
			GinkgoT().Setenv("POLLER_MAX_ATTEMPTS", "7")
			GinkgoT().Setenv("REDIS_ADDR", "redis:6379")

			cfg := internal.LoadConfigFromEnv()

			Expect(cfg.Database.Source).To(Equal("postgres://db/tonpay"))
			Expect(cfg.Indexer.APIKey).To(Equal("env-key"))
			Expect(cfg.Poller.MaxAttempts).To(Equal(7))
			Expect(cfg.Cache.Enabled).To(BeTrue())
			Expect(cfg.Validate()).To(Succeed())
		})
	})
})
