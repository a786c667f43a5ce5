package moderation

import (
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

var auditClock = syntax.NewTIDClock(0)

// newAuditEntry stamps an entry with a fresh, monotonic TID
func newAuditEntry(action AuditAction, actorID int64, targetType string, targetID int64, reason string, now time.Time) AuditEntry {
	return AuditEntry{
		ID:         auditClock.Next().String(),
		Action:     action,
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Details:    map[string]string{},
		Timestamp:  now,
	}
}
