package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	errors "github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/tonpay/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if p.Status == "" {
		p.Status = payment.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if isDuplicateKey(err) {
			return errors.ErrDuplicateTransaction.WithCause(err)
		}
		return err
	}
	return nil
}

func (r *PaymentRepository) GetByTransactionHash(ctx context.Context, hash string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("transaction_hash = ?", hash).First(&p).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkTerminal is a single conditional update; the status predicate makes
// concurrent writers race on the row instead of overwriting each other.
func (r *PaymentRepository) MarkTerminal(ctx context.Context, hash, status string, indexerResponse json.RawMessage, source string) (bool, error) {
	if !payment.IsTerminalStatus(status) {
		return false, fmt.Errorf("status %q is not terminal", status)
	}

	updates := map[string]interface{}{
		"status":       status,
		"resolved_via": source,
		"updated_at":   time.Now().UTC(),
	}
	if len(indexerResponse) > 0 {
		updates["indexer_response"] = datatypes.JSON(indexerResponse)
	}

	result := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("transaction_hash = ? AND status = ?", hash, payment.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func isDuplicateKey(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
