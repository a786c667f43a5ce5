package moderation

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"inkwell/internal/metrics"
	"inkwell/internal/models"
	"inkwell/internal/tracing"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// allowedActions is the dispatch table from target kind to the actions
// that may be applied to it.
var allowedActions = map[ReportedType][]ReportAction{
	ReportedTypeUser: {ActionNone, ActionBanUser, ActionDeleteUser},
	ReportedTypePost: {ActionNone, ActionHidePost, ActionDeletePost},
}

// Executor applies moderation actions to report targets. All mutations go
// through the caller's transaction, so they commit or roll back together
// with whatever else the caller writes.
type Executor struct {
	now func() time.Time
}

// NewExecutor creates an Executor using the wall clock
func NewExecutor() *Executor {
	return &Executor{now: time.Now}
}

// Apply runs action against target on behalf of actor.
//
// BAN_USER fails with ErrTargetNotFound when the user is gone. DELETE_USER,
// HIDE_POST and DELETE_POST treat a missing target as already handled and
// return an Outcome with TargetMissing set.
func (e *Executor) Apply(ctx context.Context, tx Tx, actor models.User, action ReportAction, target Target, params ActionParams) (Outcome, error) {
	_, span := tracing.ModerationSpan(ctx, "action.apply",
		attribute.String("action", string(action)),
		attribute.String("target_type", string(target.Type)),
		attribute.Int64("target_id", target.ID),
	)
	defer span.End()

	out, err := e.apply(tx, &actor, action, target, params)
	if err != nil {
		tracing.EndWithError(span, err)
		metrics.ModerationActionsTotal.WithLabelValues(strings.ToLower(string(action)), "failed").Inc()
		return Outcome{}, err
	}
	return out, nil
}

var committedMessages = map[AuditAction]string{
	AuditActionBanUser:    "moderation: user banned",
	AuditActionUnbanUser:  "moderation: user unbanned",
	AuditActionDeleteUser: "moderation: user deleted",
	AuditActionHidePost:   "moderation: post hidden",
	AuditActionUnhidePost: "moderation: post unhidden",
	AuditActionDeletePost: "moderation: post deleted",
}

// recordOutcome logs and counts an action. Call it only once the
// transaction that applied out has committed.
func recordOutcome(actorID int64, out Outcome) {
	if out.TargetMissing {
		metrics.ModerationActionsTotal.WithLabelValues(strings.ToLower(string(out.Action)), "target_missing").Inc()
		log.Warn().
			Str("action", string(out.Action)).
			Str("target_type", string(out.Target.Type)).
			Int64("target_id", out.Target.ID).
			Msg("moderation: target already gone, action skipped")
		return
	}
	if out.applied == "" {
		return
	}

	metrics.ModerationActionsTotal.WithLabelValues(string(out.applied), "applied").Inc()
	ev := log.Info().
		Str("target_type", string(out.Target.Type)).
		Int64("target_id", out.Target.ID).
		Int64("actor_id", actorID)
	if out.applied == AuditActionBanUser {
		ev = ev.Bool("permanent", out.BannedUntil == nil)
	}
	ev.Msg(committedMessages[out.applied])
}

func (e *Executor) apply(tx Tx, actor *models.User, action ReportAction, target Target, params ActionParams) (Outcome, error) {
	if !action.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if !target.Type.Valid() {
		return Outcome{}, fmt.Errorf("%w: unknown target type %q", ErrInvalidReport, target.Type)
	}
	if !slices.Contains(allowedActions[target.Type], action) {
		return Outcome{}, fmt.Errorf("%s on %s: %w", action, target.Type, ErrActionTypeMismatch)
	}

	switch action {
	case ActionBanUser:
		_, out, err := e.banUser(tx, actor, target.ID, params)
		return out, err
	case ActionDeleteUser:
		return e.deleteUser(tx, actor, target.ID, params.Reason, false)
	case ActionHidePost:
		_, out, err := e.setPostHidden(tx, actor, target.ID, true, params.Reason, false)
		return out, err
	case ActionDeletePost:
		return e.deletePost(tx, actor, target.ID, params.Reason, false)
	}
	return Outcome{Action: ActionNone, Target: target}, nil
}

// checkProtected refuses actions against admins and against the actor themself
func checkProtected(actor, target *models.User) error {
	if target.ID == actor.ID {
		return fmt.Errorf("%w: cannot act on your own account", ErrUnauthorized)
	}
	if target.IsAdmin() {
		return fmt.Errorf("%w: target is an admin", ErrUnauthorized)
	}
	return nil
}

func (e *Executor) banUser(tx Tx, actor *models.User, userID int64, params ActionParams) (*models.User, Outcome, error) {
	out := Outcome{Action: ActionBanUser, Target: Target{Type: ReportedTypeUser, ID: userID}}

	if params.DurationDays < 0 {
		return nil, out, fmt.Errorf("%w: duration_days must not be negative", ErrInvalidBanParams)
	}
	reason := strings.TrimSpace(params.Reason)
	if utf8.RuneCountInString(reason) > MaxBanReasonLength {
		return nil, out, fmt.Errorf("%w: reason longer than %d characters", ErrInvalidBanParams, MaxBanReasonLength)
	}

	user, err := tx.GetUser(userID)
	if err != nil {
		return nil, out, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, out, fmt.Errorf("user %d: %w", userID, ErrTargetNotFound)
	}
	if err := checkProtected(actor, user); err != nil {
		return nil, out, err
	}

	now := e.now()
	if user.IsActiveBan(now) {
		return nil, out, fmt.Errorf("user %d: %w", userID, ErrAlreadyBanned)
	}

	var until *time.Time
	if !params.Permanent && params.DurationDays > 0 {
		t := now.Add(time.Duration(params.DurationDays) * 24 * time.Hour)
		until = &t
	}
	user.Ban(until, reason)
	if err := tx.SaveUser(user); err != nil {
		return nil, out, fmt.Errorf("failed to save user %d: %w", userID, err)
	}

	entry := newAuditEntry(AuditActionBanUser, actor.ID, string(ReportedTypeUser), userID, reason, now)
	entry.Details["username"] = user.Username
	if until != nil {
		entry.Details["banned_until"] = until.Format(time.RFC3339)
		entry.Details["duration_days"] = strconv.Itoa(params.DurationDays)
	} else {
		entry.Details["permanent"] = "true"
	}
	if err := tx.LogAction(entry); err != nil {
		return nil, out, fmt.Errorf("failed to log ban: %w", err)
	}

	out.BannedUntil = until
	out.applied = AuditActionBanUser
	return user, out, nil
}

func (e *Executor) unbanUser(tx Tx, actor *models.User, userID int64) (*models.User, Outcome, error) {
	out := Outcome{Action: ActionNone, Target: Target{Type: ReportedTypeUser, ID: userID}}

	user, err := tx.GetUser(userID)
	if err != nil {
		return nil, out, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, out, fmt.Errorf("user %d: %w", userID, ErrTargetNotFound)
	}
	if !user.IsBanned {
		return user, out, nil
	}

	previous := user.BanReason
	user.Unban()
	if err := tx.SaveUser(user); err != nil {
		return nil, out, fmt.Errorf("failed to save user %d: %w", userID, err)
	}

	entry := newAuditEntry(AuditActionUnbanUser, actor.ID, string(ReportedTypeUser), userID, "", e.now())
	entry.Details["username"] = user.Username
	entry.Details["previous_reason"] = previous
	if err := tx.LogAction(entry); err != nil {
		return nil, out, fmt.Errorf("failed to log unban: %w", err)
	}

	out.applied = AuditActionUnbanUser
	return user, out, nil
}

func (e *Executor) deleteUser(tx Tx, actor *models.User, userID int64, reason string, strict bool) (Outcome, error) {
	out := Outcome{Action: ActionDeleteUser, Target: Target{Type: ReportedTypeUser, ID: userID}}

	user, err := tx.GetUser(userID)
	if err != nil {
		return out, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		if strict {
			return out, fmt.Errorf("user %d: %w", userID, ErrTargetNotFound)
		}
		out.TargetMissing = true
		return out, nil
	}
	if err := checkProtected(actor, user); err != nil {
		return out, err
	}

	if err := tx.DeleteUser(userID); err != nil {
		return out, fmt.Errorf("failed to delete user %d: %w", userID, err)
	}

	entry := newAuditEntry(AuditActionDeleteUser, actor.ID, string(ReportedTypeUser), userID, strings.TrimSpace(reason), e.now())
	entry.Details["username"] = user.Username
	entry.Details["email"] = user.Email
	if err := tx.LogAction(entry); err != nil {
		return out, fmt.Errorf("failed to log user deletion: %w", err)
	}

	out.applied = AuditActionDeleteUser
	return out, nil
}

func (e *Executor) setPostHidden(tx Tx, actor *models.User, postID int64, hidden bool, reason string, strict bool) (*models.Post, Outcome, error) {
	out := Outcome{Action: ActionHidePost, Target: Target{Type: ReportedTypePost, ID: postID}}

	post, err := tx.GetPost(postID)
	if err != nil {
		return nil, out, fmt.Errorf("failed to load post %d: %w", postID, err)
	}
	if post == nil {
		if strict {
			return nil, out, fmt.Errorf("post %d: %w", postID, ErrTargetNotFound)
		}
		out.TargetMissing = true
		return nil, out, nil
	}
	if post.Hidden == hidden {
		return post, out, nil
	}

	post.Hidden = hidden
	if err := tx.SavePost(post); err != nil {
		return nil, out, fmt.Errorf("failed to save post %d: %w", postID, err)
	}

	action := AuditActionHidePost
	if !hidden {
		action = AuditActionUnhidePost
	}
	entry := newAuditEntry(action, actor.ID, string(ReportedTypePost), postID, strings.TrimSpace(reason), e.now())
	entry.Details["title"] = post.Title
	entry.Details["author_id"] = strconv.FormatInt(post.AuthorID, 10)
	if err := tx.LogAction(entry); err != nil {
		return nil, out, fmt.Errorf("failed to log %s: %w", action, err)
	}

	out.applied = action
	return post, out, nil
}

func (e *Executor) deletePost(tx Tx, actor *models.User, postID int64, reason string, strict bool) (Outcome, error) {
	out := Outcome{Action: ActionDeletePost, Target: Target{Type: ReportedTypePost, ID: postID}}

	post, err := tx.GetPost(postID)
	if err != nil {
		return out, fmt.Errorf("failed to load post %d: %w", postID, err)
	}
	if post == nil {
		if strict {
			return out, fmt.Errorf("post %d: %w", postID, ErrTargetNotFound)
		}
		out.TargetMissing = true
		return out, nil
	}

	if err := tx.DeletePost(postID); err != nil {
		return out, fmt.Errorf("failed to delete post %d: %w", postID, err)
	}

	entry := newAuditEntry(AuditActionDeletePost, actor.ID, string(ReportedTypePost), postID, strings.TrimSpace(reason), e.now())
	entry.Details["title"] = post.Title
	entry.Details["author_id"] = strconv.FormatInt(post.AuthorID, 10)
	if err := tx.LogAction(entry); err != nil {
		return out, fmt.Errorf("failed to log post deletion: %w", err)
	}

	out.applied = AuditActionDeletePost
	return out, nil
}
