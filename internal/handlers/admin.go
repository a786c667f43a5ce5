package handlers

import (
	"net/http"

	"inkwell/internal/models"
	"inkwell/internal/moderation"
)

// ResolveReportRequest is the admin's decision on a report
type ResolveReportRequest struct {
	Status          moderation.ReportStatus `json:"status"`
	AdminNotes      string                  `json:"admin_notes"`
	Action          moderation.ReportAction `json:"action"`
	BanDurationDays int                     `json:"ban_duration_days"`
	BanPermanent    bool                    `json:"ban_permanent"`
	BanReason       string                  `json:"ban_reason"`
}

// BanRequest parameterises a direct ban
type BanRequest struct {
	Reason       string `json:"reason"`
	DurationDays int    `json:"duration_days"`
	Permanent    bool   `json:"permanent"`
}

// RoleRequest names the new role for an account
type RoleRequest struct {
	Role models.Role `json:"role"`
}

// HidePostRequest sets a post's visibility
type HidePostRequest struct {
	Hidden *bool  `json:"hidden"`
	Reason string `json:"reason"`
}

// ReasonRequest is an optional body for deletions
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// HandleAdminReportList lists reports with optional status/type filters and paging
func (h *Handler) HandleAdminReportList(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	size, err := queryInt(r, "size", moderation.DefaultPageSize)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	result, err := h.moderation.ListReports(r.Context(), moderation.ReportFilter{
		Status: moderation.ReportStatus(q.Get("status")),
		Type:   moderation.ReportedType(q.Get("type")),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		writeServiceError(w, r, err, "list reports")
		return
	}
	if result.Reports == nil {
		result.Reports = []moderation.Report{}
	}
	writeJSON(w, http.StatusOK, result, "reports")
}

// HandleAdminReportStats returns report counts by status and type
func (h *Handler) HandleAdminReportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.moderation.Statistics(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "load report statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats, "statistics")
}

// HandleAdminReportGet returns one report with reporter, resolver and target details
func (h *Handler) HandleAdminReportGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	details, err := h.moderation.GetReport(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "load report")
		return
	}
	writeJSON(w, http.StatusOK, details, "report")
}

// HandleAdminReportResolve moves a report through review and applies the chosen action
func (h *Handler) HandleAdminReportResolve(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ResolveReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	report, err := h.moderation.ResolveReport(r.Context(), *admin, id, moderation.ResolveRequest{
		Status:     req.Status,
		AdminNotes: req.AdminNotes,
		Action:     req.Action,
		Params: moderation.ActionParams{
			DurationDays: req.BanDurationDays,
			Permanent:    req.BanPermanent,
			Reason:       req.BanReason,
		},
	})
	if err != nil {
		writeServiceError(w, r, err, "resolve report")
		return
	}
	writeJSON(w, http.StatusOK, report, "report")
}

// HandleAdminUserBan bans a user directly
func (h *Handler) HandleAdminUserBan(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req BanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	user, err := h.moderation.BanUser(r.Context(), *admin, id, moderation.ActionParams{
		DurationDays: req.DurationDays,
		Permanent:    req.Permanent,
		Reason:       req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err, "ban user")
		return
	}
	writeJSON(w, http.StatusOK, user, "user")
}

// HandleAdminUserUnban lifts a user's ban
func (h *Handler) HandleAdminUserUnban(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.moderation.UnbanUser(r.Context(), *admin, id)
	if err != nil {
		writeServiceError(w, r, err, "unban user")
		return
	}
	writeJSON(w, http.StatusOK, user, "user")
}

// HandleAdminUserDelete deletes a user and everything they own
func (h *Handler) HandleAdminUserDelete(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	reason, ok := optionalReason(w, r)
	if !ok {
		return
	}
	if err := h.moderation.DeleteUser(r.Context(), *admin, id, reason); err != nil {
		writeServiceError(w, r, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdminUserRole changes a user's role
func (h *Handler) HandleAdminUserRole(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	user, err := h.moderation.ChangeRole(r.Context(), *admin, id, req.Role)
	if err != nil {
		writeServiceError(w, r, err, "change role")
		return
	}
	writeJSON(w, http.StatusOK, user, "user")
}

// HandleAdminPostHide hides or unhides a post
func (h *Handler) HandleAdminPostHide(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	req := HidePostRequest{}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}
	hidden := true
	if req.Hidden != nil {
		hidden = *req.Hidden
	}

	post, err := h.moderation.SetPostHidden(r.Context(), *admin, id, hidden, req.Reason)
	if err != nil {
		writeServiceError(w, r, err, "update post")
		return
	}
	writeJSON(w, http.StatusOK, post, "post")
}

// HandleAdminPostDelete deletes a post
func (h *Handler) HandleAdminPostDelete(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	reason, ok := optionalReason(w, r)
	if !ok {
		return
	}
	if err := h.moderation.DeletePost(r.Context(), *admin, id, reason); err != nil {
		writeServiceError(w, r, err, "delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdminAuditLog returns the most recent moderation audit entries
func (h *Handler) HandleAdminAuditLog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := h.moderation.AuditLog(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err, "load audit log")
		return
	}
	if entries == nil {
		entries = []moderation.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries}, "audit log")
}

// HandleAdminRoles lists the configured roles and their permissions
func (h *Handler) HandleAdminRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roles": h.policy.ListRoles()}, "roles")
}

// optionalReason reads {"reason": ...} when a body is present
func optionalReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.ContentLength == 0 {
		return "", true
	}
	var req ReasonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return "", false
	}
	return req.Reason, true
}
