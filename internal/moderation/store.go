package moderation

import (
	"context"
	"time"

	"inkwell/internal/models"
)

// Store defines the persistence interface for moderation data.
// Implementations must be safe for concurrent use and must serialise
// Update transactions so check-then-act sequences inside one are atomic.
type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an error
	// every write made through the Tx is rolled back.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the set of operations available inside a store transaction.
// Lookups return nil, nil when the row does not exist.
type Tx interface {
	// Users
	GetUser(id int64) (*models.User, error)
	GetUserByLogin(login string) (*models.User, error) // username or email
	CreateUser(u *models.User) error                   // assigns u.ID
	SaveUser(u *models.User) error
	// DeleteUser removes the user, their posts and the reports they filed.
	// Reports they resolved keep their state with ResolvedBy cleared.
	DeleteUser(id int64) error
	CountUsers() (int, error)

	// Posts
	GetPost(id int64) (*models.Post, error)
	CreatePost(p *models.Post) error // assigns p.ID
	SavePost(p *models.Post) error
	DeletePost(id int64) error

	// Reports
	// InsertReport assigns r.ID. It returns ErrDuplicateReport when r is
	// active and the reporter already holds an active report on the target.
	InsertReport(r *Report) error
	GetReport(id int64) (*Report, error)
	UpdateReport(r *Report) error
	FindActiveReport(reporterID int64, t ReportedType, targetID int64) (*Report, error)
	CountReportsSince(reporterID int64, since time.Time) (int, error)
	// ListReports returns the requested page newest first and the total
	// number of reports matching the filter.
	ListReports(f ReportFilter) ([]Report, int, error)
	ListReportsByReporter(reporterID int64) ([]Report, error)
	ReportCounts() (map[ReportStatus]int, map[ReportedType]int, error)

	// Audit log
	LogAction(e AuditEntry) error
	ListAuditLog(limit int) ([]AuditEntry, error)
}
