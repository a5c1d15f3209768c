package payment

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	errors "github.com/frahmantamala/tonpay/internal"
	indexertypes "github.com/frahmantamala/tonpay/internal/core/datamodel/indexer"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/tonpay/internal/indexer"
	"github.com/frahmantamala/tonpay/internal/transport"
)

const WebhookStatusIgnored = "ignored"

// WebhookHandler ingests TonAPI push notifications. Authentication is done
// by middleware in front of it.
type WebhookHandler struct {
	*transport.BaseHandler
	verifier       VerifierAPI
	businessWallet string
	logger         *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, verifier VerifierAPI, businessWallet string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    baseHandler,
		verifier:       verifier,
		businessWallet: businessWallet,
		logger:         logger,
	}
}

type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleTonAPIWebhook handles POST /api/v1/webhooks/ton
func (h *WebhookHandler) HandleTonAPIWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		h.WriteJSON(w, http.StatusBadRequest, WebhookResponse{Status: StatusError, Message: "invalid request body"})
		return
	}

	var req TonAPIWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Error("invalid webhook payload", "error", err)
		h.WriteJSON(w, http.StatusBadRequest, WebhookResponse{Status: StatusError, Message: "invalid request body"})
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Error("webhook payload missing transaction hash", "event_id", req.EventID, "account_id", req.AccountID)
		h.WriteJSON(w, http.StatusBadRequest, WebhookResponse{Status: StatusError, Message: errorMessage(err)})
		return
	}

	key := req.Key()
	h.logger.Info("received ton webhook",
		"event_id", req.EventID,
		"account_id", req.AccountID,
		"transaction_hash", key)

	h.checkAccount(&req)

	var verdict *Verdict
	if outcome, ok := inlineOutcome(&req, body); ok {
		verdict, err = h.verifier.Apply(r.Context(), key, outcome, payment.SourceWebhook)
	} else {
		verdict, err = h.verifier.VerifyFrom(r.Context(), key, payment.SourceWebhook)
	}

	if err != nil {
		h.handleVerifyError(w, key, err)
		return
	}

	resp := WebhookResponse{Status: verdict.Status, Message: verdict.Detail}
	if verdict.Fatal {
		resp.Status = StatusError
	}

	h.logger.Info("ton webhook processed",
		"transaction_hash", key,
		"status", verdict.Status,
		"transitioned", verdict.Transitioned)

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *WebhookHandler) handleVerifyError(w http.ResponseWriter, key string, err error) {
	if stderrors.Is(err, errors.ErrTransactionNotFound) {
		// subscriptions are account wide, most transactions are not purchases
		h.logger.Debug("webhook for unknown transaction ignored", "transaction_hash", key)
		h.WriteJSON(w, http.StatusOK, WebhookResponse{Status: WebhookStatusIgnored})
		return
	}

	if appErr, ok := errors.IsAppError(err); ok && appErr.Type == errors.ErrorTypeValidation {
		h.logger.Warn("webhook carries malformed transaction hash", "transaction_hash", key, "code", appErr.Code)
		h.WriteJSON(w, http.StatusBadRequest, WebhookResponse{Status: StatusError, Message: appErr.Message})
		return
	}

	// a 5xx makes the sender redeliver
	h.logger.Error("failed to process ton webhook", "error", err, "transaction_hash", key)
	h.WriteJSON(w, http.StatusInternalServerError, WebhookResponse{Status: StatusError, Message: "failed to process webhook"})
}

func (h *WebhookHandler) checkAccount(req *TonAPIWebhookRequest) {
	if h.businessWallet == "" {
		return
	}

	account := req.AccountID
	if req.Transaction != nil && req.Transaction.AccountAddr != "" {
		account = req.Transaction.AccountAddr
	}
	if account == "" || strings.EqualFold(account, h.businessWallet) {
		return
	}

	h.logger.Warn("webhook account differs from business wallet",
		"account", account,
		"business_wallet", h.businessWallet,
		"event_id", req.EventID)
}

// inlineOutcome classifies the transaction fields carried by the payload.
// Only a finalized transaction with an explicit result is trusted; anything
// else is re-queried from the indexer.
func inlineOutcome(req *TonAPIWebhookRequest, body []byte) (indexertypes.Outcome, bool) {
	lt, success, status := req.Lt, (*bool)(nil), req.Status
	if tx := req.Transaction; tx != nil {
		lt, success, status = tx.Lt, tx.Success, tx.Status
	}

	if success == nil && status == "" {
		return indexertypes.Outcome{}, false
	}

	outcome := indexer.ClassifyInline(lt, success, status, body)
	if !outcome.Settled() {
		return indexertypes.Outcome{}, false
	}
	return outcome, true
}
