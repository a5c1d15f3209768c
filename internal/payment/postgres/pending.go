package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
)

// PendingLister finds records that stayed pending past the polling window.
type PendingLister struct {
	db *sqlx.DB
}

func NewPendingLister(db *sqlx.DB) *PendingLister {
	return &PendingLister{db: db}
}

func (l *PendingLister) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	query := l.db.Rebind(`
		SELECT transaction_hash
		FROM transactions
		WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC
		LIMIT ?`)

	var hashes []string
	if err := l.db.SelectContext(ctx, &hashes, query, payment.StatusPending, olderThan.UTC(), limit); err != nil {
		return nil, fmt.Errorf("list stale pending payments: %w", err)
	}
	return hashes, nil
}

// CountByStatus backs the health report.
func (l *PendingLister) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows := []struct {
		Status string `db:"status"`
		Total  int64  `db:"total"`
	}{}
	if err := l.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS total FROM transactions GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count payments by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
