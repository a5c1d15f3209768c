package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/transport/middleware"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"confirmed"}`)
})

func errorCode(body []byte) string {
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	Expect(json.Unmarshal(body, &envelope)).To(Succeed())
	return envelope.Error.Code
}

var _ = Describe("WebhookAuth", func() {
	var (
		logger  *slog.Logger
		handler http.Handler
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		handler = middleware.WebhookAuth("0123456789abcdef", logger)(okHandler)
	})

	It("should pass requests with the shared token", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/ton", nil)
		req.Header.Set("Authorization", "Bearer 0123456789abcdef")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	DescribeTable("rejected credentials",
		func(header string) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/ton", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec.Body.Bytes())).To(Equal("INVALID_WEBHOOK_TOKEN"))
		},
		Entry("missing header", ""),
		Entry("wrong token", "Bearer fedcba9876543210"),
		Entry("token prefix only", "Bearer 0123456789"),
		Entry("basic scheme", "Basic 0123456789abcdef"),
	)

	It("should reject everything when no token is configured", func() {
		handler = middleware.WebhookAuth("", logger)(okHandler)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/ton", nil)
		req.Header.Set("Authorization", "Bearer ")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})
})

var _ = Describe("RequestID", func() {
	It("should generate an id and expose it in context and response", func() {
		var seen string
		handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.RequestIDFromContext(r.Context())
		}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		Expect(seen).ToNot(BeEmpty())
		Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal(seen))
	})

	It("should keep a caller supplied id", func() {
		var seen string
		handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.RequestIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-42")

		handler.ServeHTTP(httptest.NewRecorder(), req)

		Expect(seen).To(Equal("req-42"))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("should turn a panic into a 500 error envelope", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		handler := middleware.RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(errorCode(rec.Body.Bytes())).To(Equal("STORE_FAILURE"))
		Expect(rec.Body.String()).ToNot(ContainSubstring("boom"))
	})
})

var _ = Describe("CORS", func() {
	It("should echo an allowed origin", func() {
		handler := middleware.CORS("https://shop.example, https://admin.example")(okHandler)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", nil)
		req.Header.Set("Origin", "https://shop.example")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://shop.example"))
	})

	It("should not allow an unknown origin", func() {
		handler := middleware.CORS("https://shop.example")(okHandler)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("should answer preflight requests", func() {
		handler := middleware.CORS("*")(okHandler)
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments/verify", nil)
		req.Header.Set("Origin", "https://shop.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring(http.MethodPost))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("should log requests without leaking credentials", func() {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := middleware.LoggingMiddleware(logger)(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/ton",
			strings.NewReader(`{"tx_hash":"abcd","api_key":"shh-secret"}`))
		req.Header.Set("Authorization", "Bearer 0123456789abcdef")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(buf.String()).To(ContainSubstring("abcd"))
		Expect(buf.String()).ToNot(ContainSubstring("shh-secret"))
		Expect(buf.String()).ToNot(ContainSubstring("0123456789abcdef"))
	})

	It("should leave the request body readable for the handler", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		var body string
		handler := middleware.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			body = string(b)
		}))

		handler.ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"transaction_hash":"abcd"}`)))

		Expect(body).To(Equal(`{"transaction_hash":"abcd"}`))
	})
})
