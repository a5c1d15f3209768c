package indexer

import (
	"context"
	"fmt"
	"net/http"

	errors "github.com/frahmantamala/tonpay/internal"
)

type createWebhookRequest struct {
	Endpoint string `json:"endpoint"`
}

type createWebhookResponse struct {
	WebhookID int64 `json:"webhook_id"`
}

type subscribeAccount struct {
	AccountID string `json:"account_id"`
}

type subscribeAccountsRequest struct {
	Accounts []subscribeAccount `json:"accounts"`
}

// CreateWebhook registers endpoint with the TonAPI streaming service and
// returns the webhook id.
func (c *Client) CreateWebhook(ctx context.Context, endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("webhook endpoint is required")
	}

	var result createWebhookResponse
	resp, err := c.streaming.R().
		SetContext(ctx).
		SetBody(createWebhookRequest{Endpoint: endpoint}).
		SetResult(&result).
		Post("/webhooks")
	if err != nil {
		return "", errors.NewExternalError("create webhook", errors.ErrCodeIndexerUnavailable).WithCause(err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return "", errors.NewExternalError(fmt.Sprintf("create webhook: status %d: %s", resp.StatusCode(), errorMessage(resp.Body())), errors.ErrCodeIndexerRejected)
	}
	if result.WebhookID == 0 {
		return "", fmt.Errorf("create webhook: response carries no webhook_id")
	}

	c.logger.Info("webhook registered", "webhook_id", result.WebhookID, "endpoint", endpoint)
	return fmt.Sprintf("%d", result.WebhookID), nil
}

// SubscribeAccounts asks TonAPI to push every transaction of the given
// accounts to the webhook.
func (c *Client) SubscribeAccounts(ctx context.Context, webhookID string, accounts []string) error {
	if webhookID == "" {
		return fmt.Errorf("webhook id is required")
	}
	if len(accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	req := subscribeAccountsRequest{Accounts: make([]subscribeAccount, 0, len(accounts))}
	for _, a := range accounts {
		req.Accounts = append(req.Accounts, subscribeAccount{AccountID: a})
	}

	resp, err := c.streaming.R().
		SetContext(ctx).
		SetPathParam("id", webhookID).
		SetBody(req).
		Post("/webhooks/{id}/account-tx/subscribe")
	if err != nil {
		return errors.NewExternalError("subscribe accounts", errors.ErrCodeIndexerUnavailable).WithCause(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.NewExternalError(fmt.Sprintf("subscribe accounts: status %d: %s", resp.StatusCode(), errorMessage(resp.Body())), errors.ErrCodeIndexerRejected)
	}

	c.logger.Info("accounts subscribed", "webhook_id", webhookID, "accounts", accounts)
	return nil
}
