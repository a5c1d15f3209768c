package indexer

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	indexertypes "github.com/frahmantamala/tonpay/internal/core/datamodel/indexer"
)

const transactionPath = "/v2/blockchain/transactions/{hash}"

type Config struct {
	BaseURL        string
	StreamingURL   string
	APIKey         string
	RequestTimeout time.Duration
	RetryCount     int
	RetryWait      time.Duration
	// RateLimit is requests per second across the process. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Client talks to TonAPI. LookupTransaction never returns an error: every
// failure is folded into an Outcome.
type Client struct {
	http      *resty.Client
	streaming *resty.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryWait := config.RetryWait
	if retryWait <= 0 {
		retryWait = 100 * time.Millisecond
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(timeout).
		AddRetryCondition(retryable)
	if config.APIKey != "" {
		httpClient.SetAuthToken(config.APIKey)
	}

	streamingClient := resty.New().
		SetBaseURL(strings.TrimRight(config.StreamingURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		streamingClient.SetAuthToken(config.APIKey)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &Client{
		http:      httpClient,
		streaming: streamingClient,
		limiter:   limiter,
		logger:    logger,
	}
}

// retryable keeps resty's in-request retries to failures that may clear up.
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

func (c *Client) LookupTransaction(ctx context.Context, key string) indexertypes.Outcome {
	hash, err := NormalizeKey(key)
	if err != nil {
		c.logger.Warn("refusing indexer lookup for malformed key", "transaction_hash", key, "error", err)
		return indexertypes.Fatal("malformed transaction key: %v", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return indexertypes.Transient("rate limiter: %v", err)
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("hash", hash).
		Get(transactionPath)

	var (
		status int
		body   []byte
	)
	if resp != nil {
		status = resp.StatusCode()
		body = resp.Body()
	}

	outcome := Classify(status, body, err)

	c.logger.Debug("indexer lookup",
		"transaction_hash", hash,
		"http_status", status,
		"outcome", outcome.String(),
		"duration_ms", time.Since(start).Milliseconds())

	if outcome.Kind == indexertypes.KindFatal {
		c.logger.Error("indexer lookup failed permanently", "transaction_hash", hash, "detail", outcome.Detail)
	}

	return outcome
}
