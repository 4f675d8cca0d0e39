// Package handler exposes the dashboard's read-only projections over HTTP.
// Lifecycle mutations are not served here; callers drive those through the
// service layer directly.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"veridata/internal/dashboard"
	"veridata/internal/entry/models"
	"veridata/internal/identity"
	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
	"veridata/pkg/platform/httputil"
)

// InstanceReader is the read slice of the lifecycle service.
type InstanceReader interface {
	Get(ctx context.Context, formInstanceID id.FormInstanceID) (*models.FormInstance, error)
}

type Handler struct {
	dash    *dashboard.Service
	entries InstanceReader
	auth    *identity.Provider
	logger  *slog.Logger
}

// New builds the handler. auth may be nil, which leaves the routes open.
func New(dash *dashboard.Service, entries InstanceReader, auth *identity.Provider, logger *slog.Logger) *Handler {
	return &Handler{dash: dash, entries: entries, auth: auth, logger: logger}
}

// Register mounts the dashboard routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.auth != nil {
			r.Use(h.requireAuth)
		}
		r.Get("/dashboard/overview", h.handleOverview)
		r.Get("/dashboard/pending-second-entry", h.handlePendingSecondEntry)
		r.Get("/dashboard/pending-resolution", h.handlePendingResolution)
		r.Get("/instances/{id}", h.handleGetInstance)
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeAuthorizationDenied, "missing bearer token"))
			return
		}
		if _, err := h.auth.CurrentUser(token); err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type summaryResponse struct {
	ID                string `json:"id"`
	SiteID            string `json:"site_id"`
	Status            string `json:"status"`
	WaitingSeconds    int64  `json:"waiting_seconds"`
	OpenDiscrepancies int    `json:"open_discrepancies,omitempty"`
}

type overviewResponse struct {
	PendingSecondEntry []summaryResponse `json:"pending_second_entry"`
	PendingResolution  []summaryResponse `json:"pending_resolution"`
	StatusCounts       map[string]int    `json:"status_counts"`
}

type instanceResponse struct {
	ID              string  `json:"id"`
	SiteID          string  `json:"site_id"`
	Status          string  `json:"status"`
	FirstEnteredBy  *string `json:"first_entered_by,omitempty"`
	SecondEnteredBy *string `json:"second_entered_by,omitempty"`
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, err := siteFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	overview, err := h.dash.Overview(ctx, site)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard overview failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	counts := make(map[string]int, len(overview.StatusCounts))
	for status, n := range overview.StatusCounts {
		counts[status.String()] = n
	}
	httputil.WriteJSON(w, http.StatusOK, overviewResponse{
		PendingSecondEntry: toSummaryResponses(overview.PendingSecondEntry),
		PendingResolution:  toSummaryResponses(overview.PendingResolution),
		StatusCounts:       counts,
	})
}

func (h *Handler) handlePendingSecondEntry(w http.ResponseWriter, r *http.Request) {
	h.handleQueue(w, r, h.dash.PendingSecondEntry)
}

func (h *Handler) handlePendingResolution(w http.ResponseWriter, r *http.Request) {
	h.handleQueue(w, r, h.dash.PendingResolution)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request, list func(context.Context, *id.SiteID) ([]models.Summary, error)) {
	ctx := r.Context()
	site, err := siteFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summaries, err := list(ctx, site)
	if err != nil {
		h.logger.ErrorContext(ctx, "dashboard queue failed", "path", r.URL.Path, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSummaryResponses(summaries))
}

func (h *Handler) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	instanceID, err := id.ParseFormInstanceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid form instance id"))
		return
	}

	instance, err := h.entries.Get(ctx, instanceID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "load instance failed", "form_instance_id", instanceID, "error", err)
		}
		httputil.WriteError(w, err)
		return
	}

	resp := instanceResponse{
		ID:     instance.ID.String(),
		SiteID: instance.SiteID.String(),
		Status: instance.Status.String(),
	}
	if instance.FirstEnteredBy != nil {
		v := instance.FirstEnteredBy.String()
		resp.FirstEnteredBy = &v
	}
	if instance.SecondEnteredBy != nil {
		v := instance.SecondEnteredBy.String()
		resp.SecondEnteredBy = &v
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func siteFilter(r *http.Request) (*id.SiteID, error) {
	raw := r.URL.Query().Get("site")
	if raw == "" {
		return nil, nil
	}
	siteID, err := id.ParseSiteID(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid site id")
	}
	return &siteID, nil
}

func toSummaryResponses(summaries []models.Summary) []summaryResponse {
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, summaryResponse{
			ID:                s.ID.String(),
			SiteID:            s.SiteID.String(),
			Status:            s.Status.String(),
			WaitingSeconds:    int64(s.Waiting.Seconds()),
			OpenDiscrepancies: s.OpenDiscrepancies,
		})
	}
	return out
}
