package poller

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
	// StateRejected ends the loop when the verifier will never accept the
	// request. The payment itself is left as it was.
	StateRejected State = "rejected"
)

func (s State) IsTerminal() bool {
	return s != StateIdle && s != StatePolling
}

// Statuses reported by a Checker.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// TimedOutMessage is shown when polling gives up; the payment may still land.
const TimedOutMessage = "Payment is still being confirmed. Please check your wallet for the transaction status."

// ErrRejected is wrapped by a Checker when retrying cannot change the answer,
// such as an indexer refusing the credentials or a malformed transaction hash.
var ErrRejected = stderrors.New("verification rejected")

// Checker asks the verification service for the current status of a payment.
type Checker interface {
	Check(ctx context.Context, transactionHash string) (string, error)
}

type CheckerFunc func(ctx context.Context, transactionHash string) (string, error)

func (f CheckerFunc) Check(ctx context.Context, transactionHash string) (string, error) {
	return f(ctx, transactionHash)
}

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Interval     time.Duration
	// MaxInterval caps exponential growth. Zero means uncapped.
	MaxInterval   time.Duration
	Exponential   bool
	JitterPercent uint64
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial delay must not be negative")
	}
	return nil
}

// backoff is built per run so attempt counters never leak between runs.
func (c Config) backoff() retry.Backoff {
	var b retry.Backoff
	if c.Exponential {
		b = retry.NewExponential(c.Interval)
	} else {
		b = retry.NewConstant(c.Interval)
	}
	if c.MaxInterval > 0 {
		b = retry.WithCappedDuration(c.MaxInterval, b)
	}
	if c.JitterPercent > 0 {
		b = retry.WithJitterPercent(c.JitterPercent, b)
	}
	return retry.WithMaxRetries(uint64(c.MaxAttempts-1), b)
}

type Option func(*Poller)

// WithStateObserver registers a callback for every state change. It is never
// called after the run's context is cancelled.
func WithStateObserver(fn func(transactionHash string, state State)) Option {
	return func(p *Poller) {
		p.observe = fn
	}
}

// Poller drives one "is my payment confirmed yet" loop per Run.
type Poller struct {
	config  Config
	checker Checker
	observe func(string, State)
	logger  *slog.Logger
}

func New(config Config, checker Checker, logger *slog.Logger, opts ...Option) (*Poller, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}
	p := &Poller{
		config:  config,
		checker: checker,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

var errStillPending = stderrors.New("payment still pending")

// Run polls until the payment is confirmed or failed, the attempt limit is
// spent, or ctx is cancelled. The returned error is ctx.Err() on cancellation
// and nil otherwise.
func (p *Poller) Run(ctx context.Context, transactionHash string) (State, error) {
	p.notify(ctx, transactionHash, StatePolling)

	if p.config.InitialDelay > 0 {
		timer := time.NewTimer(p.config.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return StateCancelled, ctx.Err()
		case <-timer.C:
		}
	}

	attempts := 0
	final := StateTimedOut

	err := retry.Do(ctx, p.config.backoff(), func(ctx context.Context) error {
		attempts++
		status, err := p.checker.Check(ctx, transactionHash)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case stderrors.Is(err, ErrRejected):
			p.logger.Warn("payment check rejected", "transaction_hash", transactionHash, "attempt", attempts, "error", err)
			final = StateRejected
			return nil
		case err != nil:
			p.logger.Debug("payment check failed", "transaction_hash", transactionHash, "attempt", attempts, "error", err)
		case status == StatusConfirmed:
			final = StateConfirmed
			return nil
		case status == StatusFailed:
			final = StateFailed
			return nil
		default:
			p.logger.Debug("payment not settled", "transaction_hash", transactionHash, "attempt", attempts, "status", status)
		}
		return retry.RetryableError(errStillPending)
	})

	switch {
	case ctx.Err() != nil:
		p.logger.Info("payment polling cancelled", "transaction_hash", transactionHash, "attempts", attempts)
		return StateCancelled, ctx.Err()
	case err != nil && !stderrors.Is(err, errStillPending):
		p.logger.Error("payment polling aborted", "transaction_hash", transactionHash, "error", err)
		final = StateTimedOut
	}

	switch final {
	case StateTimedOut:
		p.logger.Warn("payment polling timed out", "transaction_hash", transactionHash, "attempts", attempts)
	case StateRejected:
		p.logger.Warn("payment polling stopped on a rejected check", "transaction_hash", transactionHash, "attempts", attempts)
	default:
		p.logger.Info("payment polling finished", "transaction_hash", transactionHash, "state", final, "attempts", attempts)
	}

	p.notify(ctx, transactionHash, final)
	return final, nil
}

func (p *Poller) notify(ctx context.Context, transactionHash string, state State) {
	if p.observe == nil || ctx.Err() != nil {
		return
	}
	p.observe(transactionHash, state)
}
