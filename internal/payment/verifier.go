package payment

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	errors "github.com/frahmantamala/tonpay/internal"
	indexertypes "github.com/frahmantamala/tonpay/internal/core/datamodel/indexer"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/tonpay/internal/core/events"
	"github.com/frahmantamala/tonpay/internal/indexer"
)

// Engine decides the status of a payment from what the indexer reports and
// moves the record out of pending at most once.
type Engine struct {
	repository    RepositoryAPI
	gateway       Gateway
	cache         StatusCache
	events        EventPublisher
	logger        *slog.Logger
	lookupTimeout time.Duration

	group singleflight.Group
}

const defaultLookupTimeout = 30 * time.Second

type EngineOption func(*Engine)

func WithStatusCache(cache StatusCache) EngineOption {
	return func(e *Engine) {
		e.cache = cache
	}
}

func WithEventPublisher(publisher EventPublisher) EngineOption {
	return func(e *Engine) {
		e.events = publisher
	}
}

// WithLookupTimeout bounds a shared verification, which outlives the
// caller that started it.
func WithLookupTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.lookupTimeout = d
		}
	}
}

func NewEngine(repository RepositoryAPI, gateway Gateway, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		repository:    repository,
		gateway:       gateway,
		logger:        logger,
		lookupTimeout: defaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify reports the status of the payment keyed by transactionHash,
// querying the indexer only while the record is pending. Concurrent calls for
// the same key share one indexer round trip and receive the same verdict.
func (e *Engine) Verify(ctx context.Context, transactionHash string) (*Verdict, error) {
	key, err := indexer.NormalizeKey(transactionHash)
	if err != nil {
		return nil, err
	}

	return e.resolve(ctx, key, payment.SourceVerify)
}

// VerifyFrom is Verify with the resolution source recorded on a transition.
func (e *Engine) VerifyFrom(ctx context.Context, transactionHash, source string) (*Verdict, error) {
	key, err := indexer.NormalizeKey(transactionHash)
	if err != nil {
		return nil, err
	}
	return e.resolve(ctx, key, source)
}

// resolve shares one verification per key. The shared work is detached from
// the caller that started it, so a caller leaving early only abandons its own
// wait.
func (e *Engine) resolve(ctx context.Context, key, source string) (*Verdict, error) {
	ch := e.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.lookupTimeout)
		defer cancel()
		return e.verify(shared, key, source)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			e.logger.Debug("verification coalesced", "transaction_hash", key)
		}
		verdict := *res.Val.(*Verdict)
		return &verdict, nil
	}
}

func (e *Engine) verify(ctx context.Context, key, source string) (*Verdict, error) {
	if status, ok := e.cachedStatus(ctx, key); ok {
		return &Verdict{Status: status, Cached: true}, nil
	}

	record, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if record.IsTerminal() {
		e.remember(ctx, key, record.Status)
		return &Verdict{Status: record.Status, Cached: true}, nil
	}

	outcome := e.gateway.LookupTransaction(ctx, key)
	return e.decide(ctx, record, outcome, source)
}

// Apply runs the decision step for an outcome obtained elsewhere, such as a
// pushed notification. The same conditional write guards the transition.
func (e *Engine) Apply(ctx context.Context, transactionHash string, outcome indexertypes.Outcome, source string) (*Verdict, error) {
	key, err := indexer.NormalizeKey(transactionHash)
	if err != nil {
		return nil, err
	}

	record, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if record.IsTerminal() {
		e.remember(ctx, key, record.Status)
		return &Verdict{Status: record.Status, Cached: true}, nil
	}

	return e.decide(ctx, record, outcome, source)
}

func (e *Engine) decide(ctx context.Context, record *payment.Payment, outcome indexertypes.Outcome, source string) (*Verdict, error) {
	key := record.TransactionHash

	switch outcome.Kind {
	case indexertypes.KindNotFound:
		return &Verdict{Status: payment.StatusPending, Detail: "transaction not yet indexed"}, nil

	case indexertypes.KindTransient:
		e.logger.Warn("indexer lookup inconclusive", "transaction_hash", key, "detail", outcome.Detail)
		return &Verdict{Status: payment.StatusPending, Detail: outcome.Detail, Transient: true}, nil

	case indexertypes.KindFatal:
		e.logger.Error("indexer refused transaction lookup", "transaction_hash", key, "detail", outcome.Detail)
		return &Verdict{Status: payment.StatusPending, Detail: outcome.Detail, Fatal: true}, nil

	case indexertypes.KindFound:
		if !outcome.Finalized {
			return &Verdict{Status: payment.StatusPending, Detail: "transaction not yet finalized"}, nil
		}

	default:
		e.logger.Error("unknown indexer outcome", "transaction_hash", key, "kind", outcome.Kind)
		return &Verdict{Status: payment.StatusPending, Detail: "unknown indexer outcome", Transient: true}, nil
	}

	status := payment.StatusFailed
	if outcome.Success {
		status = payment.StatusConfirmed
	}

	changed, err := e.repository.MarkTerminal(ctx, key, status, outcome.Raw, source)
	if err != nil {
		e.logger.Error("failed to record terminal status", "error", err, "transaction_hash", key, "status", status)
		return nil, errors.NewInternalError("failed to record payment status", err)
	}

	if !changed {
		// another writer got there first; report what it stored
		current, err := e.load(ctx, key)
		if err != nil {
			return nil, err
		}
		e.logger.Info("payment already resolved by another writer",
			"transaction_hash", key,
			"stored_status", current.Status,
			"observed_status", status)
		if current.IsTerminal() {
			e.remember(ctx, key, current.Status)
			return &Verdict{Status: current.Status, Cached: true}, nil
		}
		return &Verdict{Status: current.Status, Detail: "record not updated"}, nil
	}

	e.logger.Info("payment resolved",
		"transaction_hash", key,
		"status", status,
		"source", source)

	e.remember(ctx, key, status)
	e.publish(ctx, record, status, source)

	return &Verdict{Status: status, Transitioned: true}, nil
}

func (e *Engine) load(ctx context.Context, key string) (*payment.Payment, error) {
	record, err := e.repository.GetByTransactionHash(ctx, key)
	if err != nil {
		if stderrors.Is(err, errors.ErrTransactionNotFound) {
			return nil, errors.ErrTransactionNotFound
		}
		e.logger.Error("failed to read payment record", "error", err, "transaction_hash", key)
		return nil, errors.NewInternalError("failed to read payment record", err)
	}
	return record, nil
}

func (e *Engine) cachedStatus(ctx context.Context, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	status, ok, err := e.cache.GetStatus(ctx, key)
	if err != nil {
		e.logger.Warn("status cache read failed", "error", err, "transaction_hash", key)
		return "", false
	}
	if !ok || !payment.IsTerminalStatus(status) {
		return "", false
	}
	return status, true
}

func (e *Engine) remember(ctx context.Context, key, status string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetStatus(ctx, key, status); err != nil {
		e.logger.Warn("status cache write failed", "error", err, "transaction_hash", key)
	}
}

func (e *Engine) publish(ctx context.Context, record *payment.Payment, status, source string) {
	if e.events == nil {
		return
	}

	eventType := events.EventTypePaymentFailed
	if status == payment.StatusConfirmed {
		eventType = events.EventTypePaymentConfirmed
	}

	event := events.NewPaymentResolvedEvent(
		eventType,
		record.TransactionHash,
		record.PayerAddress,
		record.ItemID,
		record.Amount.String(),
		status,
		source,
	)

	// handlers outlive the request that triggered the transition
	if err := e.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Error("failed to publish payment event", "error", err, "event_id", event.EventID())
	}
}
