package payment

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/tonpay/internal"
	"github.com/frahmantamala/tonpay/internal/transport"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	*transport.BaseHandler
	PaymentService ServiceAPI
	Verifier       VerifierAPI
	Logger         *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, paymentService ServiceAPI, verifier VerifierAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:    baseHandler,
		PaymentService: paymentService,
		Verifier:       verifier,
		Logger:         logger,
	}
}

// VerifyPayment handles POST /api/v1/payments/verify.
// Every outcome of the engine is reported in the body with HTTP 200 so that
// polling clients only branch on "status". Malformed input is a 400.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.Logger.Warn("VerifyPayment: failed to parse request body", "error", err)
		h.WriteJSON(w, http.StatusBadRequest, VerifyResponse{Status: StatusError, Message: "invalid request body"})
		return
	}

	if err := req.Validate(); err != nil {
		h.Logger.Warn("VerifyPayment: validation error", "error", err)
		h.WriteJSON(w, http.StatusBadRequest, VerifyResponse{Status: StatusError, Message: errorMessage(err)})
		return
	}

	verdict, err := h.Verifier.Verify(r.Context(), req.TransactionHash)
	if err != nil {
		appErr, ok := errors.IsAppError(err)
		if ok && appErr.Type == errors.ErrorTypeValidation {
			h.Logger.Warn("VerifyPayment: rejected transaction key", "transaction_hash", req.TransactionHash, "code", appErr.Code)
			h.WriteJSON(w, http.StatusBadRequest, VerifyResponse{Status: StatusError, Message: appErr.Message})
			return
		}

		h.Logger.Error("VerifyPayment: verification failed", "error", err, "transaction_hash", req.TransactionHash)
		h.WriteJSON(w, http.StatusOK, VerifyResponse{Status: StatusError, Message: errorMessage(err)})
		return
	}

	h.WriteJSON(w, http.StatusOK, verifyResponse(verdict))
}

func verifyResponse(v *Verdict) VerifyResponse {
	switch {
	case v.Fatal:
		return VerifyResponse{Status: StatusError, Message: v.Detail}
	case v.IsTerminal():
		return VerifyResponse{Status: v.Status}
	default:
		return VerifyResponse{Status: StatusPending, Message: v.Detail}
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.Logger.Warn("CreatePayment: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeInvalidPayload))
		return
	}

	p, err := h.PaymentService.CreatePayment(r.Context(), &req)
	if err != nil {
		h.Logger.Warn("CreatePayment: service error", "error", err, "transaction_hash", req.TransactionHash)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, NewPaymentResponse(p))
}

// GetPayment handles GET /api/v1/payments/{hash}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	p, err := h.PaymentService.GetPayment(r.Context(), hash)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewPaymentResponse(p))
}

func errorMessage(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.GetDetailedMessage()
	}
	return err.Error()
}
