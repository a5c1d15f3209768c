package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/tonpay/internal/payment"
)

// StaleLister finds records that have been pending for too long.
type StaleLister interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

type Config struct {
	Interval     time.Duration
	MinAge       time.Duration
	BatchSize    int
	JobTimeout   time.Duration
	MaxWorkers   int
	JobQueueSize int
}

// Sweeper re-verifies pending payments whose webhook and client polling
// both went quiet. It goes through the same engine as every other path, so
// a record it settles is indistinguishable from one settled by the client.
type Sweeper struct {
	config   Config
	lister   StaleLister
	verifier paymentpkg.VerifierAPI
	pool     *Pool
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(config Config, lister StaleLister, verifier paymentpkg.VerifierAPI, logger *slog.Logger) *Sweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	s := &Sweeper{
		config:   config,
		lister:   lister,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
	s.pool = NewPool(PoolConfig{
		MaxWorkers:   config.MaxWorkers,
		JobQueueSize: config.JobQueueSize,
	}, s.process, logger)
	return s
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return errors.New("reconcile interval must be positive")
	}

	s.pool.Start()
	defer s.pool.Shutdown()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reconcile sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep queues one batch of stale pending records and reports how many were queued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.pool.Start()

	cutoff := s.now().Add(-s.config.MinAge)
	hashes, err := s.lister.ListStalePending(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, hash := range hashes {
		if err := s.pool.Submit(Job{TransactionHash: hash}); err != nil {
			break
		}
		queued++
	}

	if len(hashes) > 0 {
		s.logger.Info("reconcile sweep queued stale payments", "found", len(hashes), "queued", queued)
	}
	return queued, nil
}

// Shutdown stops the workers. Run does this itself on exit.
func (s *Sweeper) Shutdown() {
	s.pool.Shutdown()
}

func (s *Sweeper) process(ctx context.Context, job Job) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	verdict, err := s.verifier.VerifyFrom(ctx, job.TransactionHash, payment.SourceReconcile)
	if err != nil {
		s.logger.Error("reconcile verification failed", "transaction_hash", job.TransactionHash, "error", err)
		return
	}

	switch {
	case verdict.Transitioned:
		s.logger.Info("reconcile settled payment", "transaction_hash", job.TransactionHash, "status", verdict.Status)
	case verdict.Fatal:
		s.logger.Warn("reconcile verification rejected", "transaction_hash", job.TransactionHash, "detail", verdict.Detail)
	default:
		s.logger.Debug("reconcile left payment unchanged", "transaction_hash", job.TransactionHash, "status", verdict.Status)
	}
}
