package payment_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/tonpay/internal"
	indexertypes "github.com/frahmantamala/tonpay/internal/core/datamodel/indexer"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/tonpay/internal/core/events"
)

const (
	hashTX1 = "1111111111111111111111111111111111111111111111111111111111111111"
	hashTX2 = "2222222222222222222222222222222222222222222222222222222222222222"
	hashTX3 = "3333333333333333333333333333333333333333333333333333333333333333"
	hashTX4 = "4444444444444444444444444444444444444444444444444444444444444444"
	payer   = "UQBvW8Z5huBkMJYdnfAEM5JqTNkuWX3diqYENkWsIL0XggGG"
)

// Mock repository for testing. MarkTerminal mirrors the conditional update
// of the real store.
type mockPaymentRepository struct {
	mu        sync.Mutex
	records   map[string]*payment.Payment
	createErr error
	getErr    error
	markErr   error
	writes    int
}

func newMockPaymentRepository() *mockPaymentRepository {
	return &mockPaymentRepository{records: make(map[string]*payment.Payment)}
}

func (m *mockPaymentRepository) seed(hash, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.records[hash] = &payment.Payment{
		ID:              int64(len(m.records) + 1),
		TransactionHash: hash,
		PayerAddress:    payer,
		ItemID:          "template-1",
		Amount:          decimal.RequireFromString("2.5"),
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (m *mockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.records[p.TransactionHash]; ok {
		return errors.ErrDuplicateTransaction
	}
	p.ID = int64(len(m.records) + 1)
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.records[p.TransactionHash] = &cp
	return nil
}

func (m *mockPaymentRepository) GetByTransactionHash(ctx context.Context, hash string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.records[hash]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepository) MarkTerminal(ctx context.Context, hash, status string, raw json.RawMessage, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	p, ok := m.records[hash]
	if !ok || p.Status != payment.StatusPending {
		return false, nil
	}
	p.Status = status
	p.IndexerResponse = []byte(raw)
	p.ResolvedVia = &source
	p.UpdatedAt = time.Now().UTC()
	m.writes++
	return true, nil
}

func (m *mockPaymentRepository) status(hash string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[hash].Status
}

func (m *mockPaymentRepository) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// mockGateway replays outcomes in order and repeats the last one.
type mockGateway struct {
	mu       sync.Mutex
	outcomes []indexertypes.Outcome
	calls    int
	release  chan struct{}
	entered  chan struct{}
}

func newMockGateway(outcomes ...indexertypes.Outcome) *mockGateway {
	return &mockGateway{outcomes: outcomes}
}

func (g *mockGateway) LookupTransaction(ctx context.Context, key string) indexertypes.Outcome {
	g.mu.Lock()
	g.calls++
	idx := g.calls - 1
	if idx >= len(g.outcomes) {
		idx = len(g.outcomes) - 1
	}
	outcome := g.outcomes[idx]
	release, entered := g.release, g.entered
	g.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return indexertypes.Transient("lookup aborted: %v", ctx.Err())
		}
	}
	return outcome
}

func (g *mockGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type mockStatusCache struct {
	mu       sync.Mutex
	statuses map[string]string
	getErr   error
}

func newMockStatusCache() *mockStatusCache {
	return &mockStatusCache{statuses: make(map[string]string)}
}

func (c *mockStatusCache) GetStatus(ctx context.Context, hash string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	s, ok := c.statuses[hash]
	return s, ok, nil
}

func (c *mockStatusCache) SetStatus(ctx context.Context, hash, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[hash] = status
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

var (
	confirmedOutcome = indexertypes.Found(true, true, []byte(`{"lt":100,"success":true}`))
	rejectedOutcome  = indexertypes.Found(true, false, []byte(`{"lt":100,"success":false}`))
	unfinalized      = indexertypes.Found(false, true, []byte(`{"success":true}`))
)
