package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrAlreadyPolling = errors.New("a polling loop is already active for this purchase attempt")

// Tracker owns the polling loops of in-flight purchase attempts. Each attempt
// has at most one loop; a new attempt always starts with a fresh counter.
type Tracker struct {
	poller *Poller
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewTracker(poller *Poller, logger *slog.Logger) *Tracker {
	return &Tracker{
		poller: poller,
		logger: logger,
		active: make(map[string]context.CancelFunc),
	}
}

// Start launches the loop for attemptID. done, if set, receives the final
// state unless the loop was cancelled.
func (t *Tracker) Start(ctx context.Context, attemptID, transactionHash string, done func(State)) error {
	t.mu.Lock()
	if _, ok := t.active[attemptID]; ok {
		t.mu.Unlock()
		return ErrAlreadyPolling
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.active[attemptID] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer t.finish(attemptID)

		state, err := t.poller.Run(runCtx, transactionHash)
		if err != nil {
			return
		}
		if done != nil {
			done(state)
		}
	}()

	t.logger.Debug("polling started", "attempt_id", attemptID, "transaction_hash", transactionHash)
	return nil
}

// Cancel stops the loop for attemptID. It reports whether a loop was running.
func (t *Tracker) Cancel(attemptID string) bool {
	t.mu.Lock()
	cancel, ok := t.active[attemptID]
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (t *Tracker) Active(attemptID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[attemptID]
	return ok
}

// Shutdown cancels every loop and waits for them to exit.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	for _, cancel := range t.active {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) finish(attemptID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.active[attemptID]; ok {
		cancel()
		delete(t.active, attemptID)
	}
}
