package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/alpian-ledger/payment-service/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{
			name:         "simple map",
			status:       http.StatusOK,
			payload:      map[string]string{"message": "hello"},
			expectedBody: `{"message":"hello"}`,
		},
		{
			name:         "error response",
			status:       http.StatusBadRequest,
			payload:      ErrorResponse{Error: "bad request", Code: "invalid_input"},
			expectedBody: `{"error":"bad request","code":"invalid_input"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.status, tt.payload)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	err := domainErrors.NewValidationError("currency", "must be a 3-letter code")

	writeError(w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "validation_error", response.Code)
	assert.Contains(t, response.Error, "currency")
}

func TestWriteError_DomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "payment not found",
			err:            domainErrors.ErrPaymentNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "outbox entry not found",
			err:            domainErrors.ErrEntryNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "invalid transition",
			err:            domainErrors.ErrInvalidTransition,
			expectedStatus: http.StatusConflict,
			expectedCode:   "invalid_transition",
		},
		{
			name:           "version conflict",
			err:            domainErrors.ErrVersionConflict,
			expectedStatus: http.StatusConflict,
			expectedCode:   "conflict",
		},
		{
			name:           "retries exhausted",
			err:            domainErrors.ErrRetriesExhausted,
			expectedStatus: http.StatusConflict,
			expectedCode:   "retries_exhausted",
		},
		{
			name:           "duplicate idempotency key",
			err:            domainErrors.ErrDuplicateIdempotencyKey,
			expectedStatus: http.StatusConflict,
			expectedCode:   "duplicate_request",
		},
		{
			name:           "invalid amount",
			err:            domainErrors.ErrInvalidAmount,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_amount",
		},
		{
			name:           "gateway unavailable",
			err:            domainErrors.ErrGatewayUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "gateway_unavailable",
		},
		{
			name:           "lock unavailable",
			err:            domainErrors.ErrLockUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "busy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestWriteError_VersionConflict_CustomMessage(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.ErrVersionConflict)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "concurrent modification, please retry", response.Error)
	assert.Equal(t, "conflict", response.Code)
}

func TestWriteError_WrappedDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewDomainError("invalid_transition", "applying submit", domainErrors.ErrInvalidTransition))

	assert.Equal(t, http.StatusConflict, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "invalid_transition", response.Code)
}

func TestWriteError_UnknownError_FallbackToInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	err := errors.New("unexpected error")

	writeError(w, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"amount_cents":2500,"currency":"CHF"}`
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))

	var result CreatePaymentRequest
	err := decodeAndValidate(req, &result)

	require.NoError(t, err)
	assert.Equal(t, int64(2500), result.AmountCents)
	assert.Equal(t, "CHF", result.Currency)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	body := `{invalid json}`
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))

	var result CreatePaymentRequest
	err := decodeAndValidate(req, &result)

	assert.Error(t, err)
	var validationErr *domainErrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "body", validationErr.Field)
	assert.Contains(t, validationErr.Message, "invalid JSON")
}

func TestDecodeAndValidate_ValidationFailure(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing amount", `{"currency":"CHF"}`, "AmountCents"},
		{"currency too long", `{"amount_cents":100,"currency":"FRANCS"}`, "Currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", strings.NewReader(tt.body))

			var result CreatePaymentRequest
			err := decodeAndValidate(req, &result)

			assert.Error(t, err)
			var validationErr *domainErrors.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestDecodeAndValidate_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", bytes.NewReader([]byte{}))

	var result CreatePaymentRequest
	err := decodeAndValidate(req, &result)

	assert.Error(t, err)
}
