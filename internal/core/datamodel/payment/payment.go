package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Resolution sources recorded with a terminal write.
const (
	SourceVerify    = "verify"
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
)

// Payment is one purchase attempt, keyed by the canonical transaction hash.
type Payment struct {
	ID              int64           `gorm:"primaryKey"`
	TransactionHash string          `gorm:"column:transaction_hash;not null;uniqueIndex"`
	PayerAddress    string          `gorm:"column:payer_address;not null"`
	ItemID          string          `gorm:"column:item_id;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(20,9);not null"`
	Status          string          `gorm:"column:status;not null;default:pending"`
	IndexerResponse datatypes.JSON  `gorm:"column:indexer_response"`
	ResolvedVia     *string         `gorm:"column:resolved_via"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (Payment) TableName() string {
	return "transactions"
}

func (p *Payment) IsTerminal() bool {
	return IsTerminalStatus(p.Status)
}

func IsTerminalStatus(status string) bool {
	return status == StatusConfirmed || status == StatusFailed
}
