package moderation

import (
	"math"
	"strings"
	"time"
)

// ReportedType tags which kind of entity a report targets
type ReportedType string

const (
	ReportedTypeUser ReportedType = "USER"
	ReportedTypePost ReportedType = "POST"
)

// Valid reports whether t is a known target kind
func (t ReportedType) Valid() bool {
	return t == ReportedTypeUser || t == ReportedTypePost
}

// ReportReason is the closed set of reasons a reporter can pick from
type ReportReason string

const (
	ReasonSpam                 ReportReason = "SPAM"
	ReasonHarassment           ReportReason = "HARASSMENT"
	ReasonHateSpeech           ReportReason = "HATE_SPEECH"
	ReasonInappropriateContent ReportReason = "INAPPROPRIATE_CONTENT"
	ReasonViolence             ReportReason = "VIOLENCE"
	ReasonMisinformation       ReportReason = "MISINFORMATION"
	ReasonImpersonation        ReportReason = "IMPERSONATION"
	ReasonCopyrightViolation   ReportReason = "COPYRIGHT_VIOLATION"
	ReasonOther                ReportReason = "OTHER"
)

// AllReasons returns every report reason in display order
func AllReasons() []ReportReason {
	return []ReportReason{
		ReasonSpam,
		ReasonHarassment,
		ReasonHateSpeech,
		ReasonInappropriateContent,
		ReasonViolence,
		ReasonMisinformation,
		ReasonImpersonation,
		ReasonCopyrightViolation,
		ReasonOther,
	}
}

// Valid reports whether r is in the closed reason set
func (r ReportReason) Valid() bool {
	for _, known := range AllReasons() {
		if r == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable name, e.g. "Hate Speech" for HATE_SPEECH
func (r ReportReason) Label() string {
	words := strings.Split(strings.ToLower(string(r)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ReportStatus represents where a report is in its lifecycle
type ReportStatus string

const (
	StatusPending     ReportStatus = "PENDING"
	StatusUnderReview ReportStatus = "UNDER_REVIEW"
	StatusResolved    ReportStatus = "RESOLVED"
	StatusDismissed   ReportStatus = "DISMISSED"
)

// AllStatuses returns every report status in lifecycle order
func AllStatuses() []ReportStatus {
	return []ReportStatus{StatusPending, StatusUnderReview, StatusResolved, StatusDismissed}
}

// Valid reports whether s is a known status
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// IsActive is true for statuses that count toward duplicate suppression
func (s ReportStatus) IsActive() bool {
	return s == StatusPending || s == StatusUnderReview
}

// IsTerminal is true once no further resolution is accepted
func (s ReportStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// CanTransitionTo encodes the report state machine:
// PENDING -> {UNDER_REVIEW, RESOLVED, DISMISSED}, UNDER_REVIEW -> {RESOLVED, DISMISSED}.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusUnderReview || next == StatusResolved || next == StatusDismissed
	case StatusUnderReview:
		return next == StatusResolved || next == StatusDismissed
	}
	return false
}

// ReportAction is the moderation action applied when resolving a report
type ReportAction string

const (
	ActionNone       ReportAction = "NONE"
	ActionBanUser    ReportAction = "BAN_USER"
	ActionDeleteUser ReportAction = "DELETE_USER"
	ActionHidePost   ReportAction = "HIDE_POST"
	ActionDeletePost ReportAction = "DELETE_POST"
)

// Valid reports whether a is in the closed action set
func (a ReportAction) Valid() bool {
	switch a {
	case ActionNone, ActionBanUser, ActionDeleteUser, ActionHidePost, ActionDeletePost:
		return true
	}
	return false
}

// Field limits
const (
	MinDescriptionLength = 10
	MaxDescriptionLength = 1000
	MaxAdminNotesLength  = 2000
	MaxBanReasonLength   = 200
)

// Report is a reporter's complaint against a user or post
type Report struct {
	ID           int64        `json:"id"`
	ReportedType ReportedType `json:"reported_type"`
	ReportedID   int64        `json:"reported_id"`
	ReporterID   int64        `json:"reporter_id"`
	Reason       ReportReason `json:"reason"`
	Description  string       `json:"description"`
	Status       ReportStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	AdminNotes   string       `json:"admin_notes,omitempty"`
	Action       ReportAction `json:"action"`
	ResolvedBy   *int64       `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
}

// Target returns the tagged reference to the reported entity
func (r *Report) Target() Target {
	return Target{Type: r.ReportedType, ID: r.ReportedID}
}

// Target is a polymorphic reference to a reportable entity
type Target struct {
	Type ReportedType `json:"type"`
	ID   int64        `json:"id"`
}

// TargetStatus describes the current state of a report target
type TargetStatus string

const (
	TargetActive  TargetStatus = "ACTIVE"
	TargetBanned  TargetStatus = "BANNED"
	TargetHidden  TargetStatus = "HIDDEN"
	TargetDeleted TargetStatus = "DELETED"
)

// TargetSummary is the display form of a report target
type TargetSummary struct {
	Name   string       `json:"name"`
	Status TargetStatus `json:"status"`
}

// ReportDetails is a report enriched with the names of the people and
// entity involved, for admin review.
type ReportDetails struct {
	Report
	ReporterName string        `json:"reporter_name"`
	ResolverName string        `json:"resolver_name,omitempty"`
	Target       TargetSummary `json:"target"`
}

// CreateReportRequest is the reporter-supplied part of a new report
type CreateReportRequest struct {
	ReportedType ReportedType `json:"reported_type"`
	ReportedID   int64        `json:"reported_id"`
	Reason       ReportReason `json:"reason"`
	Description  string       `json:"description"`
}

// ResolveRequest carries an admin's decision on a report
type ResolveRequest struct {
	Status     ReportStatus `json:"status"`
	AdminNotes string       `json:"admin_notes"`
	Action     ReportAction `json:"action"`
	Params     ActionParams `json:"params"`
}

// ActionParams parameterises a moderation action.
// A ban is permanent when Permanent is set or DurationDays is zero.
type ActionParams struct {
	DurationDays int    `json:"duration_days"`
	Permanent    bool   `json:"permanent"`
	Reason       string `json:"reason"`
}

// Outcome reports what an applied action actually did
type Outcome struct {
	Action        ReportAction `json:"action"`
	Target        Target       `json:"target"`
	TargetMissing bool         `json:"target_missing,omitempty"`
	BannedUntil   *time.Time   `json:"banned_until,omitempty"`

	// applied names the mutation that was written, empty for a no-op
	applied AuditAction
}

// ReportFilter selects a page of reports. Zero values mean "any".
type ReportFilter struct {
	Status ReportStatus
	Type   ReportedType
	Page   int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to sane bounds
func (f ReportFilter) Normalize() ReportFilter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Size <= 0 {
		f.Size = DefaultPageSize
	}
	if f.Size > MaxPageSize {
		f.Size = MaxPageSize
	}
	return f
}

// Offset returns the number of rows to skip for a normalized filter. ok is
// false when the offset does not fit in an int; such a page is always empty.
func (f ReportFilter) Offset() (offset int, ok bool) {
	if f.Size <= 0 || f.Page < 0 {
		return 0, f.Page == 0
	}
	if f.Page > math.MaxInt/f.Size {
		return 0, false
	}
	return f.Page * f.Size, true
}

// ReportPage is one page of a filtered report listing
type ReportPage struct {
	Reports    []Report `json:"reports"`
	Page       int      `json:"page"`
	Size       int      `json:"size"`
	Total      int      `json:"total"`
	TotalPages int      `json:"total_pages"`
}

// Statistics summarises the report queue
type Statistics struct {
	Total    int                  `json:"total"`
	ByStatus map[ReportStatus]int `json:"by_status"`
	ByType   map[ReportedType]int `json:"by_type"`
}

// AuditAction represents a type of moderation action
type AuditAction string

const (
	AuditActionCreateReport  AuditAction = "create_report"
	AuditActionResolveReport AuditAction = "resolve_report"
	AuditActionDismissReport AuditAction = "dismiss_report"
	AuditActionReviewReport  AuditAction = "review_report"
	AuditActionBanUser       AuditAction = "ban_user"
	AuditActionUnbanUser     AuditAction = "unban_user"
	AuditActionDeleteUser    AuditAction = "delete_user"
	AuditActionHidePost      AuditAction = "hide_post"
	AuditActionUnhidePost    AuditAction = "unhide_post"
	AuditActionDeletePost    AuditAction = "delete_post"
	AuditActionChangeRole    AuditAction = "change_role"
)

// AuditEntry represents a logged moderation action
type AuditEntry struct {
	ID         string            `json:"id"` // TID
	Action     AuditAction       `json:"action"`
	ActorID    int64             `json:"actor_id"`
	TargetType string            `json:"target_type"` // USER, POST or REPORT
	TargetID   int64             `json:"target_id"`
	Reason     string            `json:"reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

const auditTargetReport = "REPORT"
