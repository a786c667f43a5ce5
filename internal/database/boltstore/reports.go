package boltstore

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"inkwell/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

func activeKey(reporterID int64, rt moderation.ReportedType, targetID int64) []byte {
	return []byte(fmt.Sprintf("%020d:%s:%020d", reporterID, rt, targetID))
}

func (t *txn) loadReport(b *bolt.Bucket, id int64) (*moderation.Report, error) {
	data := b.Get(itob(id))
	if data == nil {
		return nil, nil
	}
	var r moderation.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %d: %w", id, err)
	}
	return &r, nil
}

func putReport(b *bolt.Bucket, r *moderation.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return b.Put(itob(r.ID), data)
}

// forEachReport decodes every report, skipping malformed entries
func (t *txn) forEachReport(fn func(r *moderation.Report) error) error {
	b, err := t.bucket(BucketReports)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		var r moderation.Report
		if err := json.Unmarshal(v, &r); err != nil {
			return nil
		}
		return fn(&r)
	})
}

// InsertReport claims the active slot for (reporter, type, target) in the
// same write transaction as the insert.
func (t *txn) InsertReport(r *moderation.Report) error {
	reports, err := t.bucket(BucketReports)
	if err != nil {
		return err
	}
	active, err := t.bucket(BucketReportsActive)
	if err != nil {
		return err
	}
	byReporter, err := t.bucket(BucketReportsByReporter)
	if err != nil {
		return err
	}

	key := activeKey(r.ReporterID, r.ReportedType, r.ReportedID)
	if r.Status.IsActive() && active.Get(key) != nil {
		return moderation.ErrDuplicateReport
	}

	seq, err := reports.NextSequence()
	if err != nil {
		return err
	}
	r.ID = int64(seq)

	if r.Status.IsActive() {
		if err := active.Put(key, itob(r.ID)); err != nil {
			return err
		}
	}
	if err := byReporter.Put(pairKey(r.ReporterID, r.ID), nil); err != nil {
		return err
	}
	return putReport(reports, r)
}

func (t *txn) GetReport(id int64) (*moderation.Report, error) {
	b, err := t.bucket(BucketReports)
	if err != nil {
		return nil, err
	}
	return t.loadReport(b, id)
}

func (t *txn) UpdateReport(r *moderation.Report) error {
	reports, err := t.bucket(BucketReports)
	if err != nil {
		return err
	}
	active, err := t.bucket(BucketReportsActive)
	if err != nil {
		return err
	}

	old, err := t.loadReport(reports, r.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("report not found: %d", r.ID)
	}

	key := activeKey(r.ReporterID, r.ReportedType, r.ReportedID)
	switch {
	case old.Status.IsActive() && !r.Status.IsActive():
		if err := active.Delete(key); err != nil {
			return err
		}
	case !old.Status.IsActive() && r.Status.IsActive():
		if v := active.Get(key); v != nil && btoi(v) != r.ID {
			return moderation.ErrDuplicateReport
		}
		if err := active.Put(key, itob(r.ID)); err != nil {
			return err
		}
	}
	return putReport(reports, r)
}

func (t *txn) deleteReport(id int64) error {
	reports, err := t.bucket(BucketReports)
	if err != nil {
		return err
	}
	r, err := t.loadReport(reports, id)
	if err != nil || r == nil {
		return err
	}
	if r.Status.IsActive() {
		active, err := t.bucket(BucketReportsActive)
		if err != nil {
			return err
		}
		if err := active.Delete(activeKey(r.ReporterID, r.ReportedType, r.ReportedID)); err != nil {
			return err
		}
	}
	byReporter, err := t.bucket(BucketReportsByReporter)
	if err != nil {
		return err
	}
	if err := byReporter.Delete(pairKey(r.ReporterID, id)); err != nil {
		return err
	}
	return reports.Delete(itob(id))
}

// clearResolver nulls ResolvedBy on every report resolved by userID
func (t *txn) clearResolver(userID int64) error {
	var touched []*moderation.Report
	err := t.forEachReport(func(r *moderation.Report) error {
		if r.ResolvedBy != nil && *r.ResolvedBy == userID {
			r.ResolvedBy = nil
			touched = append(touched, r)
		}
		return nil
	})
	if err != nil {
		return err
	}
	reports, err := t.bucket(BucketReports)
	if err != nil {
		return err
	}
	for _, r := range touched {
		if err := putReport(reports, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) FindActiveReport(reporterID int64, rt moderation.ReportedType, targetID int64) (*moderation.Report, error) {
	active, err := t.bucket(BucketReportsActive)
	if err != nil {
		return nil, err
	}
	v := active.Get(activeKey(reporterID, rt, targetID))
	if v == nil {
		return nil, nil
	}
	return t.GetReport(btoi(v))
}

func (t *txn) reporterReports(reporterID int64) ([]moderation.Report, error) {
	byReporter, err := t.bucket(BucketReportsByReporter)
	if err != nil {
		return nil, err
	}
	reports, err := t.bucket(BucketReports)
	if err != nil {
		return nil, err
	}

	var result []moderation.Report
	for _, k := range prefixKeys(byReporter, pairPrefix(reporterID)) {
		r, err := t.loadReport(reports, childID(k))
		if err != nil {
			return nil, err
		}
		if r != nil {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (t *txn) CountReportsSince(reporterID int64, since time.Time) (int, error) {
	reports, err := t.reporterReports(reporterID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range reports {
		if r.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func newestFirst(a, b moderation.Report) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func (t *txn) ListReports(f moderation.ReportFilter) ([]moderation.Report, int, error) {
	var matched []moderation.Report
	err := t.forEachReport(func(r *moderation.Report) error {
		if f.Status != "" && r.Status != f.Status {
			return nil
		}
		if f.Type != "" && r.ReportedType != f.Type {
			return nil
		}
		matched = append(matched, *r)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	slices.SortFunc(matched, newestFirst)

	total := len(matched)
	offset, ok := f.Offset()
	if !ok || offset >= total {
		return []moderation.Report{}, total, nil
	}
	end := min(offset+f.Size, total)
	return matched[offset:end], total, nil
}

func (t *txn) ListReportsByReporter(reporterID int64) ([]moderation.Report, error) {
	reports, err := t.reporterReports(reporterID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(reports, newestFirst)
	return reports, nil
}

func (t *txn) ReportCounts() (map[moderation.ReportStatus]int, map[moderation.ReportedType]int, error) {
	byStatus := make(map[moderation.ReportStatus]int)
	byType := make(map[moderation.ReportedType]int)
	err := t.forEachReport(func(r *moderation.Report) error {
		byStatus[r.Status]++
		byType[r.ReportedType]++
		return nil
	})
	return byStatus, byType, err
}

// ========== Audit Log ==========

// LogAction stores a moderation action in the audit log.
func (t *txn) LogAction(entry moderation.AuditEntry) error {
	bucket, err := t.bucket(BucketModerationAuditLog)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	// Zero-padded timestamp:id keeps cursor order chronological
	key := fmt.Sprintf("%020d:%s", entry.Timestamp.UnixNano(), entry.ID)

	return bucket.Put([]byte(key), data)
}

// ListAuditLog returns the most recent audit log entries, newest first.
func (t *txn) ListAuditLog(limit int) ([]moderation.AuditEntry, error) {
	bucket, err := t.bucket(BucketModerationAuditLog)
	if err != nil {
		return nil, err
	}

	var entries []moderation.AuditEntry
	c := bucket.Cursor()
	for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
		var entry moderation.AuditEntry
		if err := json.Unmarshal(v, &entry); err != nil {
			continue // Skip malformed entries
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
