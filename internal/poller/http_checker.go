package poller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

type verifyRequest struct {
	TransactionHash string `json:"transaction_hash"`
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HTTPChecker calls the verification endpoint the way the purchase UI does.
type HTTPChecker struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPChecker(endpoint string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		client:   resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		endpoint: endpoint,
	}
}

func (c *HTTPChecker) Check(ctx context.Context, transactionHash string) (string, error) {
	var result verifyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(verifyRequest{TransactionHash: transactionHash}).
		SetResult(&result).
		SetError(&result).
		Post(c.endpoint)
	if err != nil {
		return StatusError, fmt.Errorf("verify request: %w", err)
	}
	if resp.StatusCode() == http.StatusBadRequest {
		return StatusError, fmt.Errorf("%w: %s", ErrRejected, result.Message)
	}
	if resp.StatusCode() != http.StatusOK {
		return StatusError, fmt.Errorf("verify request: status %d: %s", resp.StatusCode(), result.Message)
	}
	if result.Status == StatusError {
		return StatusError, fmt.Errorf("verification error: %s", result.Message)
	}
	return result.Status, nil
}
