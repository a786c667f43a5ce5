package handlers

import (
	"net/http"
	"time"

	"inkwell/internal/moderation"
)

// ReportCreatedResponse is the reporter's view of a new report
type ReportCreatedResponse struct {
	ID           int64                   `json:"id"`
	ReportedType moderation.ReportedType `json:"reported_type"`
	ReportedID   int64                   `json:"reported_id"`
	Reason       moderation.ReportReason `json:"reason"`
	Description  string                  `json:"description"`
	CreatedAt    time.Time               `json:"created_at"`
}

// HandleReportCreate files a report against a user or post
func (h *Handler) HandleReportCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var req moderation.CreateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	report, err := h.moderation.CreateReport(r.Context(), *user, req)
	if err != nil {
		writeServiceError(w, r, err, "create report")
		return
	}

	writeJSON(w, http.StatusCreated, ReportCreatedResponse{
		ID:           report.ID,
		ReportedType: report.ReportedType,
		ReportedID:   report.ReportedID,
		Reason:       report.Reason,
		Description:  report.Description,
		CreatedAt:    report.CreatedAt,
	}, "report")
}

// HandleMyReports lists the reports filed by the caller
func (h *Handler) HandleMyReports(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	reports, err := h.moderation.ListReportsByReporter(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "list reports")
		return
	}
	if reports == nil {
		reports = []moderation.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports}, "reports")
}
