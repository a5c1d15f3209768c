package poller

import (
	"context"
	"fmt"

	errors "github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/payment"
)

// VerifierChecker polls the verification engine in-process instead of over HTTP.
type VerifierChecker struct {
	verifier payment.VerifierAPI
}

func NewVerifierChecker(verifier payment.VerifierAPI) *VerifierChecker {
	return &VerifierChecker{verifier: verifier}
}

func (c *VerifierChecker) Check(ctx context.Context, transactionHash string) (string, error) {
	verdict, err := c.verifier.Verify(ctx, transactionHash)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type == errors.ErrorTypeValidation {
			return StatusError, fmt.Errorf("%w: %s", ErrRejected, appErr.Message)
		}
		return StatusError, err
	}
	if verdict.Fatal {
		return StatusError, fmt.Errorf("%w: %s", ErrRejected, verdict.Detail)
	}
	return verdict.Status, nil
}
