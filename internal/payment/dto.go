package payment

import (
	"encoding/json"
	"time"

	errors "github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/core/common/validation"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/shopspring/decimal"
)

// Response statuses of the verification endpoint. StatusError is never stored.
const (
	StatusPending   = payment.StatusPending
	StatusConfirmed = payment.StatusConfirmed
	StatusFailed    = payment.StatusFailed
	StatusError     = "error"
)

type VerifyRequest struct {
	TransactionHash string `json:"transaction_hash"`
	Boc             string `json:"boc,omitempty"`
}

func (r *VerifyRequest) Validate() error {
	if r.TransactionHash == "" && r.Boc != "" {
		return errors.ErrUnsupportedKeyFormat
	}

	validator := validation.NewValidator()
	validator.Field("transaction_hash", r.TransactionHash).Required().MaxLength(256)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type VerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type CreatePaymentRequest struct {
	TransactionHash string          `json:"transaction_hash"`
	PayerAddress    string          `json:"payer_address"`
	ItemID          string          `json:"item_id"`
	Amount          decimal.Decimal `json:"amount"`
}

func (r *CreatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("transaction_hash", r.TransactionHash).Required().MaxLength(256)
	validator.Field("payer_address", r.PayerAddress).Required().MinLength(48).MaxLength(128)
	validator.Field("item_id", r.ItemID).Required().MaxLength(128)
	validator.Field("amount", r.Amount).Required().PositiveDecimal(errors.ErrCodeInvalidAmount)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type PaymentResponse struct {
	TransactionHash string          `json:"transaction_hash"`
	PayerAddress    string          `json:"payer_address"`
	ItemID          string          `json:"item_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	ResolvedVia     *string         `json:"resolved_via,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func NewPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		TransactionHash: p.TransactionHash,
		PayerAddress:    p.PayerAddress,
		ItemID:          p.ItemID,
		Amount:          p.Amount,
		Status:          p.Status,
		ResolvedVia:     p.ResolvedVia,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// TonAPIWebhookRequest accepts both push shapes: the flat account-tx
// notification and the event envelope carrying a transaction object.
type TonAPIWebhookRequest struct {
	EventID     string              `json:"event_id,omitempty"`
	AccountID   string              `json:"account_id"`
	TxHash      string              `json:"tx_hash,omitempty"`
	Lt          json.RawMessage     `json:"lt,omitempty"`
	Status      string              `json:"status,omitempty"`
	Transaction *WebhookTransaction `json:"transaction,omitempty"`
}

type WebhookTransaction struct {
	Hash        string          `json:"hash"`
	Lt          json.RawMessage `json:"lt,omitempty"`
	Success     *bool           `json:"success,omitempty"`
	Status      string          `json:"status,omitempty"`
	AccountAddr string          `json:"account_addr,omitempty"`
}

// Key returns the transaction hash from whichever shape was sent.
func (r *TonAPIWebhookRequest) Key() string {
	if r.Transaction != nil && r.Transaction.Hash != "" {
		return r.Transaction.Hash
	}
	return r.TxHash
}

func (r *TonAPIWebhookRequest) Validate() error {
	validator := validation.NewValidator()
	validator.Field("tx_hash", r.Key()).Required().MaxLength(256)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
