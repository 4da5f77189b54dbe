// Package admin exposes the read-only delivery log to operators.
package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/deploywatch/internal/auth"
	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/core/ports"
	"github.com/tjfontaine/deploywatch/internal/server"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

var outcomes = map[domain.Outcome]bool{
	domain.OutcomeForwarded: true,
	domain.OutcomeIgnored:   true,
	domain.OutcomeDuplicate: true,
	domain.OutcomeRejected:  true,
	domain.OutcomeInvalid:   true,
	domain.OutcomeFailed:    true,
}

// Handler serves /admin endpoints.
type Handler struct {
	store  ports.DeliveryStore
	logger *slog.Logger
}

func NewHandler(store ports.DeliveryStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes mounts the admin API under /admin, guarded by authenticator.
func (h *Handler) Routes(r chi.Router, authenticator *auth.Authenticator) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(server.AuthMiddleware(authenticator))
		r.Get("/deliveries", h.HandleListDeliveries)
	})
}

// HandleListDeliveries returns recorded deliveries, newest first.
// Query parameters: limit, offset, outcome, delivery_id.
func (h *Handler) HandleListDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		server.WriteJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "delivery storage is disabled",
		})
		return
	}

	opts, err := listOptions(r)
	if err != nil {
		server.WriteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	records, err := h.store.ListDeliveries(r.Context(), opts)
	if err != nil {
		server.AddError(r.Context(), err)
		h.logger.ErrorContext(r.Context(), "failed to list deliveries", slog.String("error", err.Error()))
		server.WriteJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to list deliveries"})
		return
	}
	if records == nil {
		records = []*domain.DeliveryRecord{}
	}

	server.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"deliveries": records,
		"limit":      opts.Limit,
		"offset":     opts.Offset,
	})
}

func listOptions(r *http.Request) (ports.DeliveryListOptions, error) {
	q := r.URL.Query()
	opts := ports.DeliveryListOptions{
		Limit:      defaultLimit,
		Outcome:    domain.Outcome(q.Get("outcome")),
		DeliveryID: q.Get("delivery_id"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("limit must be a positive integer")
		}
		opts.Limit = min(n, maxLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	if opts.Outcome != "" && !outcomes[opts.Outcome] {
		return opts, fmt.Errorf("unknown outcome %q", opts.Outcome)
	}
	return opts, nil
}
