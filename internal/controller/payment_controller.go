package controller

import (
	"net/http"

	app "github.com/alpian-ledger/payment-service/internal/application/payment"
	"github.com/alpian-ledger/payment-service/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	createUC *app.CreatePaymentUseCase
	getUC    *app.GetPaymentUseCase
	cancelUC *app.CancelPaymentUseCase
	metrics  *observability.Metrics
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	createUC *app.CreatePaymentUseCase,
	getUC *app.GetPaymentUseCase,
	cancelUC *app.CancelPaymentUseCase,
	metrics *observability.Metrics,
) *PaymentController {
	return &PaymentController{
		createUC: createUC,
		getUC:    getUC,
		cancelUC: cancelUC,
		metrics:  metrics,
	}
}

// CreatePayment handles POST /api/v1/payments. A replayed Idempotency-Key
// returns the stored payment with 200 instead of creating a duplicate.
func (h *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	resp, err := h.createUC.Execute(r.Context(), app.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
		h.metrics.PaymentsTotal.WithLabelValues(string(resp.Payment.Status)).Inc()
	}
	writeJSON(w, status, FromPayment(resp.Payment))
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	p, err := h.getUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayment(p))
}

// GetPaymentEvents handles GET /api/v1/payments/{id}/events
func (h *PaymentController) GetPaymentEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	events, err := h.getUC.Events(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, FromEvent(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelPayment handles POST /api/v1/payments/{id}/cancel
func (h *PaymentController) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	p, err := h.cancelUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayment(p))
}
