package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sales-dashboard/internal/dataset"
	apperrors "sales-dashboard/internal/errors"
	"sales-dashboard/internal/export"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/panels"
	"sales-dashboard/internal/services"
)

const cacheControl = "public, max-age=300"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// selectionFromQuery reads start, end, store and state query parameters. A
// half-filled date range resolves to no date filter.
func selectionFromQuery(r *http.Request) services.Selection {
	q := r.URL.Query()
	return services.Selection{
		Range: dataset.ParseDateRange(q.Get("start"), q.Get("end")),
		Store: q.Get("store"),
		State: q.Get("state"),
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	apperrors.WriteError(w, h.logger, apperrors.From(err, message), observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) HandlePanels(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccessWithHeaders(w, panels.Catalog(), map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandlePanel(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.Panel(r.Context(), r.PathValue("id"), selectionFromQuery(r))
	if err != nil {
		h.writeError(w, r, err, "failed to compute panel")
		return
	}

	apperrors.WriteSuccessWithHeaders(w, result, map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleSection(w http.ResponseWriter, r *http.Request) {
	section, ok := panels.ParseSection(r.PathValue("section"))
	if !ok {
		h.writeError(w, r, apperrors.NotFound(fmt.Sprintf("unknown section %q", r.PathValue("section"))), "")
		return
	}

	results, err := h.analytics.Section(r.Context(), section, selectionFromQuery(r))
	if err != nil {
		h.writeError(w, r, err, "failed to compute section")
		return
	}

	apperrors.WriteSuccessWithHeaders(w, results, map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analytics.Overview(selectionFromQuery(r))
	if err != nil {
		h.writeError(w, r, err, "failed to compute overview")
		return
	}

	apperrors.WriteSuccessWithHeaders(w, overview, map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.analytics.Options(selectionFromQuery(r))
	if err != nil {
		h.writeError(w, r, err, "failed to list options")
		return
	}

	apperrors.WriteSuccess(w, opts)
}

func (h *APIHandlers) HandleStoreSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.StoreSummary(selectionFromQuery(r))
	if err != nil {
		h.writeError(w, r, err, "failed to summarise store")
		return
	}

	apperrors.WriteSuccess(w, summary)
}

// HandleStoreExport sends the selected store's rows as CSV or XLSX.
func (h *APIHandlers) HandleStoreExport(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	if format != "csv" && format != "xlsx" {
		h.writeError(w, r, apperrors.UnsupportedFormat(format), "")
		return
	}

	rows, store, err := h.analytics.StoreRows(selectionFromQuery(r))
	if err != nil {
		h.writeError(w, r, err, "failed to select store rows")
		return
	}

	// Render into memory first so a failed export still gets the error
	// envelope instead of a truncated attachment.
	name := export.SheetName("store_" + store)
	var body bytes.Buffer
	var contentType string
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
		err = export.CSV(&body, rows)
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = export.XLSX(&body, rows, name)
	}
	if err != nil {
		h.writeError(w, r, err, "failed to export store rows")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+format))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	if _, err := body.WriteTo(w); err != nil {
		h.logger.Warn("export write failed",
			"format", format,
			"store", store,
			"error", err,
			"request_id", observability.GetRequestID(r.Context()),
		)
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	apperrors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.analytics.Stats())
}
