package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/profile"
)

type errorResp struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, errorResp{Error: msg, Code: errCode})
}

// writeErr maps domain errors onto status codes. Wording for the user is the
// client's job; the code field is what it should switch on.
func writeErr(w http.ResponseWriter, err error) {
	var (
		stockErr *orders.InsufficientStockError
		limitErr *cart.StockLimitError
		persist  *orders.PersistenceError
		trans    *orders.TransitionError
	)
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, errorResp{
			Error: err.Error(), Code: "INSUFFICIENT_STOCK", ProductID: stockErr.ProductID,
			Available: &stockErr.Available, Requested: &stockErr.Requested,
		})
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusConflict, errorResp{
			Error: err.Error(), Code: "STOCK_LIMIT", ProductID: limitErr.ProductID,
			Available: &limitErr.Stock, Requested: &limitErr.Requested,
		})
	case errors.As(err, &persist):
		writeJSON(w, http.StatusServiceUnavailable, errorResp{Error: "order could not be saved", Code: "PERSISTENCE_FAILURE", Retryable: true})
	case errors.As(err, &trans):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, orders.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "EMPTY_CART", err.Error())
	case errors.Is(err, orders.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", err.Error())
	case errors.Is(err, orders.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", err.Error())
	case errors.Is(err, profile.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "INVALID_NAME", err.Error())
	case errors.Is(err, catalog.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "INVALID_QUANTITY", err.Error())
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, cart.ErrLineNotFound), errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, catalog.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResp{Error: "store unavailable", Code: "STORE_UNAVAILABLE", Retryable: true})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusGatewayTimeout, errorResp{Error: "request cancelled", Code: "TIMEOUT", Retryable: true})
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// outcome labels a checkout result for metrics.
func outcome(err error) string {
	var (
		stockErr *orders.InsufficientStockError
		persist  *orders.PersistenceError
	)
	switch {
	case err == nil:
		return "placed"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &persist):
		return "persistence_failure"
	case errors.Is(err, orders.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, catalog.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
