package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentConfirmed = "payment.confirmed"
	EventTypePaymentFailed    = "payment.failed"
)

// PaymentResolvedEvent is published once, when a record leaves pending.
type PaymentResolvedEvent struct {
	BaseEvent
	TransactionHash string `json:"transaction_hash"`
	PayerAddress    string `json:"payer_address"`
	ItemID          string `json:"item_id"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	Source          string `json:"source"`
}

func NewPaymentResolvedEvent(eventType, transactionHash, payerAddress, itemID, amount, status, source string) *PaymentResolvedEvent {
	return &PaymentResolvedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"transaction_hash": transactionHash,
				"payer_address":    payerAddress,
				"item_id":          itemID,
				"amount":           amount,
				"status":           status,
				"source":           source,
			},
		},
		TransactionHash: transactionHash,
		PayerAddress:    payerAddress,
		ItemID:          itemID,
		Amount:          amount,
		Status:          status,
		Source:          source,
	}
}
