package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/moderation"
)

const reportColumns = `id, reported_type, reported_id, reporter_id, reason, description, status,
	created_at, admin_notes, action, resolved_by, resolved_at`

func scanReport(row rowScanner) (*moderation.Report, error) {
	var r moderation.Report
	var createdAt string
	var resolvedBy sql.NullInt64
	var resolvedAt sql.NullString
	err := row.Scan(&r.ID, &r.ReportedType, &r.ReportedID, &r.ReporterID, &r.Reason, &r.Description,
		&r.Status, &createdAt, &r.AdminNotes, &r.Action, &resolvedBy, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if resolvedBy.Valid {
		id := resolvedBy.Int64
		r.ResolvedBy = &id
	}
	if r.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanReports(rows *sql.Rows) ([]moderation.Report, error) {
	defer rows.Close()
	var reports []moderation.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func (t *txn) InsertReport(r *moderation.Report) error {
	res, err := t.exec(`
		INSERT INTO reports
			(reported_type, reported_id, reporter_id, reason, description, status,
			 created_at, admin_notes, action, resolved_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(r.ReportedType), r.ReportedID, r.ReporterID, string(r.Reason), r.Description,
		string(r.Status), formatTime(r.CreatedAt), r.AdminNotes, string(r.Action),
		nullID(r.ResolvedBy), formatNullTime(r.ResolvedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return moderation.ErrDuplicateReport
		}
		return fmt.Errorf("create report: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (t *txn) GetReport(id int64) (*moderation.Report, error) {
	r, err := scanReport(t.q.QueryRowContext(t.ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (t *txn) UpdateReport(r *moderation.Report) error {
	res, err := t.exec(`
		UPDATE reports SET
			status      = ?,
			admin_notes = ?,
			action      = ?,
			resolved_by = ?,
			resolved_at = ?
		WHERE id = ?
	`, string(r.Status), r.AdminNotes, string(r.Action),
		nullID(r.ResolvedBy), formatNullTime(r.ResolvedAt), r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return moderation.ErrDuplicateReport
		}
		return fmt.Errorf("update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("report not found: %d", r.ID)
	}
	return nil
}

func (t *txn) FindActiveReport(reporterID int64, rt moderation.ReportedType, targetID int64) (*moderation.Report, error) {
	r, err := scanReport(t.q.QueryRowContext(t.ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE reporter_id = ? AND reported_type = ? AND reported_id = ?
		  AND status IN ('PENDING', 'UNDER_REVIEW')
		LIMIT 1
	`, reporterID, string(rt), targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active report: %w", err)
	}
	return r, nil
}

func (t *txn) CountReportsSince(reporterID int64, since time.Time) (int, error) {
	var count int
	err := t.q.QueryRowContext(t.ctx, `
		SELECT COUNT(*) FROM reports WHERE reporter_id = ? AND created_at > ?
	`, reporterID, formatTime(since)).Scan(&count)
	return count, err
}

func (t *txn) ListReports(f moderation.ReportFilter) ([]moderation.Report, int, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		where = append(where, "reported_type = ?")
		args = append(args, string(f.Type))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := t.q.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM reports`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	offset, ok := f.Offset()
	if !ok || offset >= total {
		return []moderation.Report{}, total, nil
	}

	rows, err := t.q.QueryContext(t.ctx,
		`SELECT `+reportColumns+` FROM reports`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, f.Size, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	reports, err := scanReports(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (t *txn) ListReportsByReporter(reporterID int64) ([]moderation.Report, error) {
	rows, err := t.q.QueryContext(t.ctx,
		`SELECT `+reportColumns+` FROM reports WHERE reporter_id = ? ORDER BY created_at DESC, id DESC`,
		reporterID)
	if err != nil {
		return nil, fmt.Errorf("list reports by reporter: %w", err)
	}
	return scanReports(rows)
}

func (t *txn) ReportCounts() (map[moderation.ReportStatus]int, map[moderation.ReportedType]int, error) {
	byStatus := make(map[moderation.ReportStatus]int)
	byType := make(map[moderation.ReportedType]int)

	rows, err := t.q.QueryContext(t.ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return nil, nil, fmt.Errorf("count reports by status: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, nil, err
		}
		byStatus[moderation.ReportStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = t.q.QueryContext(t.ctx, `SELECT reported_type, COUNT(*) FROM reports GROUP BY reported_type`)
	if err != nil {
		return nil, nil, fmt.Errorf("count reports by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rt string
		var n int
		if err := rows.Scan(&rt, &n); err != nil {
			return nil, nil, err
		}
		byType[moderation.ReportedType(rt)] = n
	}
	return byStatus, byType, rows.Err()
}

// ========== Audit Log ==========

func (t *txn) LogAction(entry moderation.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	_, err = t.exec(`
		INSERT INTO moderation_audit_log (id, action, actor_id, target_type, target_id, reason, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.Action), entry.ActorID, entry.TargetType, entry.TargetID, entry.Reason,
		string(details), formatTime(entry.Timestamp))
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func (t *txn) ListAuditLog(limit int) ([]moderation.AuditEntry, error) {
	rows, err := t.q.QueryContext(t.ctx, `
		SELECT id, action, actor_id, target_type, target_id, reason, details, timestamp
		FROM moderation_audit_log ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []moderation.AuditEntry
	for rows.Next() {
		var e moderation.AuditEntry
		var timestampStr, detailsStr string
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.TargetType, &e.TargetID, &e.Reason,
			&detailsStr, &timestampStr); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Timestamp, err = parseTime(timestampStr); err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(detailsStr), &e.Details); err != nil {
			return nil, fmt.Errorf("audit entry %s: decode details: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
