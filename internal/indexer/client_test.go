package indexer_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/tonpay/internal"
	indexertypes "github.com/frahmantamala/tonpay/internal/core/datamodel/indexer"
	"github.com/frahmantamala/tonpay/internal/indexer"
)

const testHash = "0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f9"

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		requests int32
		client   *indexer.Client
		logger   *slog.Logger
	)

	BeforeEach(func() {
		atomic.StoreInt32(&requests, 0)
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
			handler(w, r)
		}))
		client = indexer.NewClient(indexer.Config{
			BaseURL:        server.URL,
			StreamingURL:   server.URL,
			APIKey:         "test-key",
			RequestTimeout: time.Second,
			RetryWait:      10 * time.Millisecond,
		}, logger)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("LookupTransaction", func() {
		Context("when the transaction is finalized", func() {
			It("should call the transactions endpoint with bearer auth", func() {
				// Given
				handler = func(w http.ResponseWriter, r *http.Request) {
					Expect(r.Method).To(Equal(http.MethodGet))
					Expect(r.URL.Path).To(Equal("/v2/blockchain/transactions/" + testHash))
					Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))
					w.Header().Set("Content-Type", "application/json")
					_, _ = io.WriteString(w, `{"hash":"`+testHash+`","lt":47597573000001,"success":true}`)
				}

				// When
				outcome := client.LookupTransaction(context.Background(), strings.ToUpper(testHash))

				// Then
				Expect(outcome.Kind).To(Equal(indexertypes.KindFound))
				Expect(outcome.Settled()).To(BeTrue())
				Expect(outcome.Success).To(BeTrue())
			})
		})

		Context("when the indexer has not seen the transaction", func() {
			It("should return not found", func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNotFound)
					_, _ = io.WriteString(w, `{"error":"entity not found"}`)
				}

				Expect(client.LookupTransaction(context.Background(), testHash).Kind).To(Equal(indexertypes.KindNotFound))
			})
		})

		Context("when the credentials are rejected", func() {
			It("should be fatal and not retried", func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusUnauthorized)
				}

				outcome := client.LookupTransaction(context.Background(), testHash)
				Expect(outcome.Kind).To(Equal(indexertypes.KindFatal))
				Expect(atomic.LoadInt32(&requests)).To(Equal(int32(1)))
			})
		})

		Context("when the key is malformed", func() {
			It("should be fatal without calling the indexer", func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					Fail("indexer must not be called")
				}

				outcome := client.LookupTransaction(context.Background(), "definitely-not-a-hash")
				Expect(outcome.Kind).To(Equal(indexertypes.KindFatal))
				Expect(atomic.LoadInt32(&requests)).To(Equal(int32(0)))
			})
		})

		Context("when the indexer is briefly unavailable", func() {
			It("should retry up to the configured retry count", func() {
				// Given
				client = indexer.NewClient(indexer.Config{
					BaseURL:        server.URL,
					APIKey:         "test-key",
					RequestTimeout: time.Second,
					RetryCount:     2,
					RetryWait:      10 * time.Millisecond,
				}, logger)
				handler = func(w http.ResponseWriter, r *http.Request) {
					if atomic.LoadInt32(&requests) == 1 {
						w.WriteHeader(http.StatusServiceUnavailable)
						return
					}
					_, _ = io.WriteString(w, `{"lt":10,"success":false}`)
				}

				// When
				outcome := client.LookupTransaction(context.Background(), testHash)

				// Then
				Expect(outcome.Settled()).To(BeTrue())
				Expect(outcome.Success).To(BeFalse())
				Expect(atomic.LoadInt32(&requests)).To(Equal(int32(2)))
			})
		})

		Context("when the indexer stays unavailable", func() {
			It("should be transient", func() {
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
				}

				Expect(client.LookupTransaction(context.Background(), testHash).Kind).To(Equal(indexertypes.KindTransient))
			})
		})

		Context("when the indexer is slower than the timeout", func() {
			It("should be transient", func() {
				client = indexer.NewClient(indexer.Config{
					BaseURL:        server.URL,
					RequestTimeout: 50 * time.Millisecond,
				}, logger)
				handler = func(w http.ResponseWriter, r *http.Request) {
					time.Sleep(200 * time.Millisecond)
				}

				Expect(client.LookupTransaction(context.Background(), testHash).Kind).To(Equal(indexertypes.KindTransient))
			})
		})
	})

	Describe("CreateWebhook", func() {
		It("should post the endpoint and return the webhook id", func() {
			// Given
			handler = func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/webhooks"))
				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body["endpoint"]).To(Equal("https://shop.example/api/v1/webhooks/ton"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"webhook_id":42}`)
			}

			// When
			id, err := client.CreateWebhook(context.Background(), "https://shop.example/api/v1/webhooks/ton")

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(id).To(Equal("42"))
		})

		It("should surface an error status", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, `{"error":"forbidden"}`)
			}

			_, err := client.CreateWebhook(context.Background(), "https://shop.example/hook")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("forbidden"))

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeIndexerRejected))
			Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("SubscribeAccounts", func() {
		It("should post the account list to the webhook", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/webhooks/42/account-tx/subscribe"))
				var body struct {
					Accounts []struct {
						AccountID string `json:"account_id"`
					} `json:"accounts"`
				}
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body.Accounts).To(HaveLen(1))
				Expect(body.Accounts[0].AccountID).To(Equal("UQCt1L-jsQiZ_lpT-PVYVwUVb-rHDuJd-bCN6GdZbL1_qznC"))
				w.WriteHeader(http.StatusOK)
			}

			err := client.SubscribeAccounts(context.Background(), "42", []string{"UQCt1L-jsQiZ_lpT-PVYVwUVb-rHDuJd-bCN6GdZbL1_qznC"})
			Expect(err).ToNot(HaveOccurred())
		})

		It("should reject an empty account list", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {}
			Expect(client.SubscribeAccounts(context.Background(), "42", nil)).To(HaveOccurred())
		})
	})
})
