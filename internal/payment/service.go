package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	errors "github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/tonpay/internal/indexer"
)

// Service records purchase attempts and serves their current state.
type Service struct {
	repository RepositoryAPI
	logger     *slog.Logger
}

func NewService(repository RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repository: repository,
		logger:     logger,
	}
}

// CreatePayment stores a pending record for a transaction the wallet just sent.
func (s *Service) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*payment.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key, err := indexer.NormalizeKey(req.TransactionHash)
	if err != nil {
		return nil, err
	}

	p := &payment.Payment{
		TransactionHash: key,
		PayerAddress:    req.PayerAddress,
		ItemID:          req.ItemID,
		Amount:          req.Amount,
		Status:          payment.StatusPending,
	}

	if err := s.repository.Create(ctx, p); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateTransaction) {
			s.logger.Warn("payment already recorded", "transaction_hash", key)
			return nil, errors.ErrDuplicateTransaction
		}
		s.logger.Error("failed to create payment record", "error", err, "transaction_hash", key)
		return nil, errors.NewInternalError("failed to create payment record", fmt.Errorf("create payment: %w", err))
	}

	s.logger.Info("payment record created",
		"transaction_hash", key,
		"item_id", p.ItemID,
		"payer_address", p.PayerAddress,
		"amount", p.Amount.String())

	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, transactionHash string) (*payment.Payment, error) {
	key, err := indexer.NormalizeKey(transactionHash)
	if err != nil {
		return nil, err
	}

	p, err := s.repository.GetByTransactionHash(ctx, key)
	if err != nil {
		if stderrors.Is(err, errors.ErrTransactionNotFound) {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, errors.NewInternalError("failed to read payment record", err)
	}
	return p, nil
}
