package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/identity"
	"github.com/ariefcatur/go-storefront.git/internal/metrics"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/profile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache is the subset of redisx.Cache the API uses. It is optional: a nil
// Cache disables the checkout shortcut and status cache writes. SetStatus
// never moves a cached status backwards.
type Cache interface {
	RememberCheckout(ctx context.Context, userID, key, orderID string) error
	CheckoutOrder(ctx context.Context, userID, key string) (string, error)
	SetStatus(ctx context.Context, orderID, status string) error
}

type Handler struct {
	Catalog  catalog.Store
	Cart     *cart.Service
	Engine   *orders.Engine
	Orders   *orders.Service
	Profiles *profile.Service
	Cache    Cache
	Verifier *identity.Verifier
	Metrics  *metrics.ServerMetrics
	Log      *zap.Logger

	CheckoutTimeout time.Duration
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type setQtyReq struct {
	Qty int `json:"qty"`
}

type checkoutReq struct {
	Country     string          `json:"country"`
	LockerType  string          `json:"locker_type"`
	LockerPrice decimal.Decimal `json:"locker_price"`
}

type cartResp struct {
	Lines []cart.Line     `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type profileReq struct {
	FullName string `json:"full_name"`
}

type statusReq struct {
	Status orders.Status `json:"status"`
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(h.Verifier))

		r.Get("/me", h.getProfile)
		r.Put("/me", h.updateProfile)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addItem)
		r.Patch("/cart/items/{id}", h.setQuantity)
		r.Post("/cart/items/{id}/increment", h.increment)
		r.Post("/cart/items/{id}/decrement", h.decrement)
		r.Delete("/cart/items/{id}", h.removeItem)

		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getOrderStatus)
		r.Get("/purchases", h.listPurchases)

		r.With(requireAdmin).Post("/admin/orders/{id}/status", h.transition)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := catalog.Collect(h.Catalog.List(ctx, catalog.Filter{Type: r.URL.Query().Get("type")}))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	p, err := h.Profiles.Get(r.Context(), u)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	u, _ := identity.FromContext(r.Context())
	p, err := h.Profiles.UpdateName(r.Context(), u, req.FullName)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Cart.Snapshot(r.Context(), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResp{Lines: snap.Lines, Total: snap.Total()})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "product_id is required")
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	l, err := h.Cart.AddOrIncrement(r.Context(), userID(r), req.ProductID, req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQtyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	l, err := h.Cart.SetQuantity(r.Context(), userID(r), chi.URLParam(r, "id"), req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	l, err := h.Cart.Increment(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	l, err := h.Cart.Decrement(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Cart.Remove(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}

	timeout := h.CheckoutTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	uid := userID(r)
	key := r.Header.Get("Idempotency-Key")

	// Fast-path idempotency via Redis; DB tetap jadi kebenaran.
	if key != "" && h.Cache != nil {
		if id, err := h.Cache.CheckoutOrder(ctx, uid, key); err == nil && id != "" {
			if o, err := h.Orders.Get(ctx, uid, id); err == nil {
				o.Replayed = true
				h.recordCheckout("replayed")
				writeJSON(w, http.StatusOK, o)
				return
			}
		}
	}

	snap, err := h.Cart.Snapshot(ctx, uid)
	if err != nil {
		h.recordCheckout(outcome(err))
		writeErr(w, err)
		return
	}

	o, err := h.Engine.PlaceOrder(ctx, uid, snap, orders.Checkout{
		IdempotencyKey: key,
		Shipping: orders.Shipping{
			Country:     req.Country,
			LockerType:  req.LockerType,
			LockerPrice: req.LockerPrice,
		},
		TraceID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		h.recordCheckout(outcome(err))
		h.logger().Info("checkout failed", zap.String("user_id", uid), zap.Error(err))
		writeErr(w, err)
		return
	}

	if h.Cache != nil {
		// cache is best effort; the order is already committed
		cctx := context.WithoutCancel(ctx)
		if key != "" {
			_ = h.Cache.RememberCheckout(cctx, uid, key, o.ID)
		}
		_ = h.Cache.SetStatus(cctx, o.ID, string(o.Status))
	}

	if o.Replayed {
		h.recordCheckout("replayed")
		writeJSON(w, http.StatusOK, o)
		return
	}
	h.recordCheckout(outcome(nil))
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Orders.ListByUser(r.Context(), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus answers from the DB and refreshes the status cache that
// other readers use.
func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, o.ID, string(o.Status))
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": o.ID, "status": string(o.Status)})
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Orders.Purchases(r.Context(), userID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	o, err := h.Orders.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, middleware.GetReqID(r.Context()))
	if err != nil {
		var persist *orders.PersistenceError
		if errors.As(err, &persist) {
			h.logger().Error("transition failed", zap.String("order_id", chi.URLParam(r, "id")), zap.Error(err))
		}
		writeErr(w, err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.SetStatus(context.WithoutCancel(r.Context()), o.ID, string(o.Status))
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) recordCheckout(outcome string) {
	if h.Metrics != nil {
		h.Metrics.Checkout(outcome)
	}
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
