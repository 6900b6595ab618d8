package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/order"
	"github.com/plutoshop/shop-api/internal/domain/product"
	"github.com/plutoshop/shop-api/internal/payment"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

// writeError maps domain errors onto HTTP statuses. Unknown errors become an
// opaque 500; the detail goes to the log, not the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missingField *order.MissingFieldError
		badQuantity  *order.InvalidQuantityError
		noProduct    *order.ProductNotFoundError
		inactive     *order.ProductInactiveError
		badMove      *order.InvalidTransitionError
		provider     *payment.ProviderError
	)
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, product.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.As(err, &missingField),
		errors.As(err, &badQuantity),
		errors.As(err, &noProduct),
		errors.As(err, &inactive),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidMethod):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &badMove):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrAlreadyPaid):
		writeErrorMessage(w, http.StatusConflict, "order is already paid")
	case errors.As(err, &provider):
		zctx.From(r.Context()).Error("payment provider call failed", zap.Error(err))
		writeErrorMessage(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
