package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopez/cartsync/internal/cache"
	"github.com/shopez/cartsync/internal/domain"
	"github.com/shopez/cartsync/internal/remote"
	"github.com/shopez/cartsync/internal/service"
)

// CartService is what the handlers need from the sync engine
// Consumers define this interface, not the engine
type CartService interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, snap domain.Snapshot) error
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ObserveCart(ctx context.Context, userID string) (<-chan domain.Cart, remote.CancelFunc, error)
	Reconcile(ctx context.Context, userID string) error
}

type CartHandler struct {
	service CartService
	timeout time.Duration
}

func NewCartHandler(service CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		service: service,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Category  string  `json:"category"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	UserID  string                  `json:"user_id"`
	Entries map[string]domain.Entry `json:"entries"`
	Total   float64                 `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func toCartResponse(cart domain.Cart) CartResponseDTO {
	entries := cart.Entries
	if entries == nil {
		entries = map[string]domain.Entry{}
	}
	return CartResponseDTO{
		UserID:  cart.UserID,
		Entries: entries,
		Total:   cart.TotalPrice(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())

	cart, err := h.service.GetCart(ctx, userID)
	if err != nil {
		handleEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "missing user authentication")
		return
	}

	// Parse request body
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must not be empty")
		return
	}

	snap := domain.Snapshot{
		Title:    req.Title,
		Price:    req.Price,
		Image:    req.Image,
		Category: req.Category,
	}
	if err := h.service.AddItem(ctx, userID, req.ProductID, snap); err != nil {
		handleEngineError(w, err)
		return
	}

	cart, err := h.service.GetCart(ctx, userID)
	if err != nil {
		handleEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must not be empty")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// A non-positive quantity removes the entry, the engine handles that.
	if err := h.service.SetQuantity(ctx, userID, productID, req.Quantity); err != nil {
		handleEngineError(w, err)
		return
	}

	cart, err := h.service.GetCart(ctx, userID)
	if err != nil {
		handleEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "missing user authentication")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must not be empty")
		return
	}

	if err := h.service.RemoveItem(ctx, userID, productID); err != nil {
		handleEngineError(w, err)
		return
	}

	cart, err := h.service.GetCart(ctx, userID)
	if err != nil {
		handleEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "missing user authentication")
		return
	}

	if err := h.service.Reconcile(ctx, userID); err != nil {
		handleEngineError(w, err)
		return
	}

	cart, err := h.service.GetCart(ctx, userID)
	if err != nil {
		handleEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartResponse(cart))
}

// WatchCart streams full-cart snapshots as server-sent events until the
// client disconnects.
func (h *CartHandler) WatchCart(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	userID := getUserIDFromContext(r.Context())

	snapshots, cancel, err := h.service.ObserveCart(r.Context(), userID)
	if err != nil {
		handleEngineError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case cart, open := <-snapshots:
			if !open {
				return
			}
			data, errMarshal := json.Marshal(toCartResponse(cart))
			if errMarshal != nil {
				log.Printf("failed to marshal cart snapshot: %v", errMarshal)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleEngineError maps the engine's error taxonomy to HTTP status codes so
// the client sees an actionable cause category, not a transport error.
func handleEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "not_authenticated", "missing user authentication")
	case errors.Is(err, remote.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "remote_unavailable", "cart store unavailable, try again")
	case errors.Is(err, remote.ErrWrite):
		respondError(w, http.StatusBadGateway, "remote_write_failed", "cart update was not saved")
	case errors.Is(err, remote.ErrRead):
		respondError(w, http.StatusBadGateway, "remote_read_failed", "cart could not be loaded")
	case errors.Is(err, service.ErrReconcile):
		respondError(w, http.StatusBadGateway, "reconciliation_failed", "offline cart merge failed, it will be retried")
	case errors.Is(err, cache.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "local_store_unavailable", "local cart storage unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
