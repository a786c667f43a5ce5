package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/metrics"
	"inkwell/internal/models"
	"inkwell/internal/tracing"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultReportRateLimit is the number of reports a user may file per hour
	DefaultReportRateLimit = 10
	reportRateWindow       = time.Hour

	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Service is the report lifecycle manager. Every operation takes the acting
// user explicitly; nothing is read from ambient request state.
type Service struct {
	store     Store
	executor  *Executor
	now       func() time.Time
	rateLimit int
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source for the service and its executor
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.executor.now = now
	}
}

// WithReportRateLimit sets how many reports a user may file per hour.
// Zero or negative disables the limit.
func WithReportRateLimit(n int) Option {
	return func(s *Service) {
		s.rateLimit = n
	}
}

// NewService creates a report lifecycle manager backed by store
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		executor:  NewExecutor(),
		now:       time.Now,
		rateLimit: DefaultReportRateLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReport files a new PENDING report from reporter against req's target
func (s *Service) CreateReport(ctx context.Context, reporter models.User, req CreateReportRequest) (*Report, error) {
	ctx, span := tracing.ModerationSpan(ctx, "report.create",
		attribute.Int64("reporter_id", reporter.ID),
		attribute.String("target_type", string(req.ReportedType)),
		attribute.Int64("target_id", req.ReportedID),
	)
	defer span.End()

	report, err := s.createReport(ctx, reporter, req)
	if err != nil {
		tracing.EndWithError(span, err)
		metrics.ReportsRejectedTotal.WithLabelValues(string(KindOf(err))).Inc()
		return nil, err
	}

	metrics.ReportsTotal.WithLabelValues(string(report.ReportedType), string(report.Reason)).Inc()
	log.Info().
		Int64("report_id", report.ID).
		Int64("reporter_id", report.ReporterID).
		Str("reported_type", string(report.ReportedType)).
		Int64("reported_id", report.ReportedID).
		Str("reason", string(report.Reason)).
		Msg("moderation: report created")

	return report, nil
}

func (s *Service) createReport(ctx context.Context, reporter models.User, req CreateReportRequest) (*Report, error) {
	if !req.ReportedType.Valid() {
		return nil, fmt.Errorf("%w: unknown reported type %q", ErrInvalidReport, req.ReportedType)
	}
	if !req.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown reason %q", ErrInvalidReport, req.Reason)
	}
	if req.ReportedID <= 0 {
		return nil, fmt.Errorf("%w: reported id must be positive", ErrInvalidReport)
	}
	description := strings.TrimSpace(req.Description)
	if n := utf8.RuneCountInString(description); n < MinDescriptionLength || n > MaxDescriptionLength {
		return nil, fmt.Errorf("%w: description must be between %d and %d characters",
			ErrInvalidReport, MinDescriptionLength, MaxDescriptionLength)
	}
	if req.ReportedType == ReportedTypeUser && req.ReportedID == reporter.ID {
		return nil, ErrInvalidReportTarget
	}

	now := s.now()
	report := &Report{
		ReportedType: req.ReportedType,
		ReportedID:   req.ReportedID,
		ReporterID:   reporter.ID,
		Reason:       req.Reason,
		Description:  description,
		Status:       StatusPending,
		CreatedAt:    now,
		Action:       ActionNone,
	}

	err := s.store.Update(ctx, func(tx Tx) error {
		exists, err := targetExists(tx, report.Target())
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%s %d: %w", report.ReportedType, report.ReportedID, ErrTargetNotFound)
		}

		if s.rateLimit > 0 {
			n, err := tx.CountReportsSince(reporter.ID, now.Add(-reportRateWindow))
			if err != nil {
				return fmt.Errorf("failed to count recent reports: %w", err)
			}
			if n >= s.rateLimit {
				return ErrRateLimited
			}
		}

		existing, err := tx.FindActiveReport(reporter.ID, report.ReportedType, report.ReportedID)
		if err != nil {
			return fmt.Errorf("failed to check for active report: %w", err)
		}
		if existing != nil {
			return ErrDuplicateReport
		}

		// The store rejects a concurrent duplicate with ErrDuplicateReport too.
		if err := tx.InsertReport(report); err != nil {
			return err
		}

		entry := newAuditEntry(AuditActionCreateReport, reporter.ID, string(report.ReportedType), report.ReportedID, string(report.Reason), now)
		entry.Details["report_id"] = strconv.FormatInt(report.ID, 10)
		return tx.LogAction(entry)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func targetExists(tx Tx, target Target) (bool, error) {
	switch target.Type {
	case ReportedTypeUser:
		u, err := tx.GetUser(target.ID)
		if err != nil {
			return false, fmt.Errorf("failed to load user %d: %w", target.ID, err)
		}
		return u != nil, nil
	case ReportedTypePost:
		p, err := tx.GetPost(target.ID)
		if err != nil {
			return false, fmt.Errorf("failed to load post %d: %w", target.ID, err)
		}
		return p != nil, nil
	}
	return false, fmt.Errorf("%w: unknown target type %q", ErrInvalidReport, target.Type)
}

// ResolveReport moves a report to req.Status on behalf of admin. Resolving
// with an action applies it in the same transaction as the status change;
// if the action fails nothing is written.
func (s *Service) ResolveReport(ctx context.Context, admin models.User, reportID int64, req ResolveRequest) (*Report, error) {
	ctx, span := tracing.ModerationSpan(ctx, "report.resolve",
		attribute.Int64("report_id", reportID),
		attribute.Int64("admin_id", admin.ID),
		attribute.String("status", string(req.Status)),
		attribute.String("action", string(req.Action)),
	)
	defer span.End()

	report, outcome, err := s.resolveReport(ctx, admin, reportID, req)
	if err != nil {
		tracing.EndWithError(span, err)
		log.Warn().
			Err(err).
			Int64("report_id", reportID).
			Int64("admin_id", admin.ID).
			Str("status", string(req.Status)).
			Msg("moderation: report resolution rejected")
		return nil, err
	}

	recordOutcome(admin.ID, outcome)
	metrics.ReportResolutionsTotal.WithLabelValues(string(report.Status), string(report.Action)).Inc()
	log.Info().
		Int64("report_id", report.ID).
		Int64("admin_id", admin.ID).
		Str("status", string(report.Status)).
		Str("action", string(report.Action)).
		Bool("target_missing", outcome.TargetMissing).
		Msg("moderation: report updated")

	return report, nil
}

func (s *Service) resolveReport(ctx context.Context, admin models.User, reportID int64, req ResolveRequest) (*Report, Outcome, error) {
	var outcome Outcome

	switch req.Status {
	case StatusUnderReview, StatusResolved, StatusDismissed:
	default:
		return nil, outcome, fmt.Errorf("%w: cannot move a report to %q", ErrInvalidStatusTransition, req.Status)
	}
	action := req.Action
	if action == "" {
		action = ActionNone
	}
	if !action.Valid() {
		return nil, outcome, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if action != ActionNone && req.Status != StatusResolved {
		return nil, outcome, fmt.Errorf("%w: %s requires status %s", ErrInvalidAction, action, StatusResolved)
	}
	notes := strings.TrimSpace(req.AdminNotes)
	if utf8.RuneCountInString(notes) > MaxAdminNotesLength {
		return nil, outcome, fmt.Errorf("%w: admin notes longer than %d characters", ErrInvalidReport, MaxAdminNotesLength)
	}

	var report *Report
	err := s.store.Update(ctx, func(tx Tx) error {
		r, err := tx.GetReport(reportID)
		if err != nil {
			return fmt.Errorf("failed to load report %d: %w", reportID, err)
		}
		if r == nil {
			return ErrReportNotFound
		}
		if r.Status.IsTerminal() {
			return ErrReportAlreadyResolved
		}
		if !r.Status.CanTransitionTo(req.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, r.Status, req.Status)
		}

		now := s.now()
		r.Status = req.Status
		r.AdminNotes = notes

		auditAction := AuditActionReviewReport
		switch req.Status {
		case StatusResolved:
			params := req.Params
			if strings.TrimSpace(params.Reason) == "" {
				params.Reason = r.Reason.Label()
			}
			outcome, err = s.executor.Apply(ctx, tx, admin, action, r.Target(), params)
			if err != nil {
				return err
			}
			r.Action = action
			r.ResolvedBy = &admin.ID
			r.ResolvedAt = &now
			auditAction = AuditActionResolveReport
		case StatusDismissed:
			r.Action = ActionNone
			r.ResolvedBy = &admin.ID
			r.ResolvedAt = &now
			auditAction = AuditActionDismissReport
		}

		if err := tx.UpdateReport(r); err != nil {
			return fmt.Errorf("failed to update report %d: %w", reportID, err)
		}

		entry := newAuditEntry(auditAction, admin.ID, auditTargetReport, r.ID, notes, now)
		entry.Details["status"] = string(r.Status)
		entry.Details["action"] = string(r.Action)
		entry.Details["target"] = string(r.ReportedType) + ":" + strconv.FormatInt(r.ReportedID, 10)
		if outcome.TargetMissing {
			entry.Details["target_missing"] = "true"
		}
		if err := tx.LogAction(entry); err != nil {
			return fmt.Errorf("failed to log resolution: %w", err)
		}

		report = r
		return nil
	})
	if err != nil {
		return nil, outcome, err
	}
	return report, outcome, nil
}

// GetReport returns a report with its reporter, resolver and target
// looked up concurrently.
func (s *Service) GetReport(ctx context.Context, id int64) (*ReportDetails, error) {
	var report *Report
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		report, err = tx.GetReport(id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load report %d: %w", id, err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	details := &ReportDetails{Report: *report}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		name, err := s.userName(gctx, report.ReporterID)
		details.ReporterName = name
		return err
	})
	if report.ResolvedBy != nil {
		resolverID := *report.ResolvedBy
		g.Go(func() error {
			name, err := s.userName(gctx, resolverID)
			details.ResolverName = name
			return err
		})
	}
	g.Go(func() error {
		summary, err := s.describeTarget(gctx, report.Target())
		details.Target = summary
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

const (
	deletedUserName = "This User was Deleted"
	deletedPostName = "This Post was Deleted"
)

func (s *Service) userName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.store.View(ctx, func(tx Tx) error {
		u, err := tx.GetUser(id)
		if err != nil {
			return err
		}
		if u == nil {
			name = deletedUserName
			return nil
		}
		name = u.Username
		return nil
	})
	return name, err
}

func (s *Service) describeTarget(ctx context.Context, target Target) (TargetSummary, error) {
	var summary TargetSummary
	err := s.store.View(ctx, func(tx Tx) error {
		switch target.Type {
		case ReportedTypeUser:
			u, err := tx.GetUser(target.ID)
			if err != nil {
				return err
			}
			switch {
			case u == nil:
				summary = TargetSummary{Name: deletedUserName, Status: TargetDeleted}
			case u.IsActiveBan(s.now()):
				summary = TargetSummary{Name: u.Username, Status: TargetBanned}
			default:
				summary = TargetSummary{Name: u.Username, Status: TargetActive}
			}
		case ReportedTypePost:
			p, err := tx.GetPost(target.ID)
			if err != nil {
				return err
			}
			switch {
			case p == nil:
				summary = TargetSummary{Name: deletedPostName, Status: TargetDeleted}
			case p.Hidden:
				summary = TargetSummary{Name: p.Title, Status: TargetHidden}
			default:
				summary = TargetSummary{Name: p.Title, Status: TargetActive}
			}
		}
		return nil
	})
	return summary, err
}

// ListReports returns one page of reports matching f, newest first
func (s *Service) ListReports(ctx context.Context, f ReportFilter) (*ReportPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidReport, f.Status)
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown reported type %q", ErrInvalidReport, f.Type)
	}
	f = f.Normalize()

	page := &ReportPage{Page: f.Page, Size: f.Size}
	err := s.store.View(ctx, func(tx Tx) error {
		reports, total, err := tx.ListReports(f)
		if err != nil {
			return err
		}
		page.Reports = reports
		page.Total = total
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if page.Reports == nil {
		page.Reports = []Report{}
	}
	page.TotalPages = (page.Total + f.Size - 1) / f.Size
	return page, nil
}

// ListReportsByReporter returns every report filed by reporterID, newest first
func (s *Service) ListReportsByReporter(ctx context.Context, reporterID int64) ([]Report, error) {
	var reports []Report
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		reports, err = tx.ListReportsByReporter(reporterID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for %d: %w", reporterID, err)
	}
	return reports, nil
}

// Statistics counts reports by status and by type
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		ByStatus: make(map[ReportStatus]int, len(AllStatuses())),
		ByType:   make(map[ReportedType]int, 2),
	}
	for _, st := range AllStatuses() {
		stats.ByStatus[st] = 0
	}
	stats.ByType[ReportedTypeUser] = 0
	stats.ByType[ReportedTypePost] = 0

	err := s.store.View(ctx, func(tx Tx) error {
		byStatus, byType, err := tx.ReportCounts()
		if err != nil {
			return err
		}
		for st, n := range byStatus {
			stats.ByStatus[st] = n
			stats.Total += n
		}
		for t, n := range byType {
			stats.ByType[t] = n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}
	return stats, nil
}

// AuditLog returns the newest moderation log entries. A non-positive limit
// selects the default.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	var entries []AuditEntry
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.ListAuditLog(limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return entries, nil
}
