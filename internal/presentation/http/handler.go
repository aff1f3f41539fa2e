package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appinventory "github.com/Zhima-Mochi/inventory-ledger/internal/application/inventory"
	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability"
	"github.com/Zhima-Mochi/inventory-ledger/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

// Handler exposes the ledger read/write API:
// GET /items?userId= lists a user's inventory joined with catalog names,
// POST /items grants items through the same idempotent path as the transport.
type Handler struct {
	inventoryService *appinventory.Service
	log              observability.Logger
	tel              observability.Observability
}

func NewHandler(inventorySvc *appinventory.Service, logger observability.Logger, tel observability.Observability) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	return &Handler{
		inventoryService: inventorySvc,
		log:              baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:              tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger + metrics) → Access log → Handler
	h.muxHandle(mux, http.MethodGet, "/items", h.handleListItems)
	h.muxHandle(mux, http.MethodPost, "/items", h.handleGrantItems)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	pattern := method + " " + route
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(route,
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(http.HandlerFunc(handler)),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

func (h *Handler) withTrace(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(componentHTTPHandler)
		ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger := logctx.FromOr(r.Context(), h.log)
		logger.Info("http_access",
			observability.F("method", r.Method),
			observability.F("path", r.URL.Path),
			observability.F("latency_seconds", time.Since(start).Seconds()),
		)
	})
}

type grantItemsRequest struct {
	UserID        string `json:"userId"`
	CatalogItemID string `json:"catalogItemId"`
	Quantity      int64  `json:"quantity"`
}

type grantItemsResponse struct {
	Quantity  int64 `json:"quantity"`
	Duplicate bool  `json:"duplicate"`
}

type ownedItemResponse struct {
	CatalogItemID string    `json:"catalogItemId"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Quantity      int64     `json:"quantity"`
	AcquiredAt    time.Time `json:"acquiredAt"`
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	items, err := h.inventoryService.ListItems(r.Context(), userID)
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Error("list_items_failed", observability.F("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]ownedItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, ownedItemResponse{
			CatalogItemID: item.CatalogItemID,
			Name:          item.Name,
			Description:   item.Description,
			Quantity:      item.Quantity,
			AcquiredAt:    item.AcquiredAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGrantItems(w http.ResponseWriter, r *http.Request) {
	var req grantItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.CatalogItemID == "" {
		writeError(w, http.StatusBadRequest, "userId and catalogItemId are required")
		return
	}

	result, err := h.inventoryService.Grant(r.Context(), req.UserID, req.CatalogItemID, req.Quantity)
	switch {
	case errors.Is(err, domcatalog.ErrUnknownItem):
		writeError(w, http.StatusNotFound, "unknown catalog item")
		return
	case errors.Is(err, dominv.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "quantity must be greater than zero")
		return
	case err != nil:
		logctx.FromOr(r.Context(), h.log).Error("grant_items_failed", observability.F("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, grantItemsResponse{
		Quantity:  result.Quantity,
		Duplicate: result.Duplicate,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
