package payment

import (
	"context"
	"encoding/json"

	indexertypes "github.com/frahmantamala/tonpay/internal/core/datamodel/indexer"
	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	"github.com/frahmantamala/tonpay/internal/core/events"
)

// RepositoryAPI is the payment record store.
type RepositoryAPI interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByTransactionHash(ctx context.Context, hash string) (*payment.Payment, error)
	// MarkTerminal moves a pending record to status. It reports false when the
	// record was no longer pending, in which case nothing is written.
	MarkTerminal(ctx context.Context, hash, status string, indexerResponse json.RawMessage, source string) (bool, error)
}

type ServiceAPI interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*payment.Payment, error)
	GetPayment(ctx context.Context, transactionHash string) (*payment.Payment, error)
}

// VerifierAPI is the verification engine as seen by transports and workers.
type VerifierAPI interface {
	Verify(ctx context.Context, transactionHash string) (*Verdict, error)
	VerifyFrom(ctx context.Context, transactionHash, source string) (*Verdict, error)
	Apply(ctx context.Context, transactionHash string, outcome indexertypes.Outcome, source string) (*Verdict, error)
}

// Gateway answers "what does the chain say about this transaction".
type Gateway interface {
	LookupTransaction(ctx context.Context, key string) indexertypes.Outcome
}

// StatusCache remembers terminal statuses. Only terminal values are ever stored.
type StatusCache interface {
	GetStatus(ctx context.Context, hash string) (string, bool, error)
	SetStatus(ctx context.Context, hash, status string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Verdict is the engine's answer for one verification.
type Verdict struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	// Fatal marks a request the indexer will never accept; the record stays pending.
	Fatal     bool `json:"fatal,omitempty"`
	Transient bool `json:"transient,omitempty"`
	// Cached is set when a stored terminal status answered without an indexer call.
	Cached bool `json:"cached,omitempty"`
	// Transitioned is set when this verification wrote the terminal status.
	Transitioned bool `json:"transitioned,omitempty"`
}

func (v *Verdict) IsTerminal() bool {
	return payment.IsTerminalStatus(v.Status)
}
