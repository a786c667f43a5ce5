package moderation

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/tracing"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Direct admin operations. Unlike resolution actions these fail with
// ErrTargetNotFound when the target is gone.

// BanUser bans userID outside of any report
func (s *Service) BanUser(ctx context.Context, admin models.User, userID int64, params ActionParams) (*models.User, error) {
	ctx, span := tracing.ModerationSpan(ctx, "admin.ban_user", attribute.Int64("user_id", userID))
	defer span.End()

	if strings.TrimSpace(params.Reason) == "" {
		err := fmt.Errorf("%w: a reason is required", ErrInvalidBanParams)
		tracing.EndWithError(span, err)
		return nil, err
	}

	var user *models.User
	var out Outcome
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		user, out, err = s.executor.banUser(tx, &admin, userID, params)
		return err
	})
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}
	recordOutcome(admin.ID, out)
	return user, nil
}

// UnbanUser lifts any ban on userID. Unbanning a user who is not banned is a no-op.
func (s *Service) UnbanUser(ctx context.Context, admin models.User, userID int64) (*models.User, error) {
	ctx, span := tracing.ModerationSpan(ctx, "admin.unban_user", attribute.Int64("user_id", userID))
	defer span.End()

	var user *models.User
	var out Outcome
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		user, out, err = s.executor.unbanUser(tx, &admin, userID)
		return err
	})
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}
	recordOutcome(admin.ID, out)
	return user, nil
}

// DeleteUser removes userID and everything the store cascades from it
func (s *Service) DeleteUser(ctx context.Context, admin models.User, userID int64, reason string) error {
	ctx, span := tracing.ModerationSpan(ctx, "admin.delete_user", attribute.Int64("user_id", userID))
	defer span.End()

	var out Outcome
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		out, err = s.executor.deleteUser(tx, &admin, userID, reason, true)
		return err
	})
	if err != nil {
		tracing.EndWithError(span, err)
		return err
	}
	recordOutcome(admin.ID, out)
	return nil
}

// ChangeRole sets userID's role. Admins cannot change their own role.
func (s *Service) ChangeRole(ctx context.Context, admin models.User, userID int64, role models.Role) (*models.User, error) {
	ctx, span := tracing.ModerationSpan(ctx, "admin.change_role",
		attribute.Int64("user_id", userID),
		attribute.String("role", string(role)),
	)
	defer span.End()

	if !role.Valid() {
		err := fmt.Errorf("%w: %q", ErrInvalidRole, role)
		tracing.EndWithError(span, err)
		return nil, err
	}
	if userID == admin.ID {
		err := fmt.Errorf("%w: cannot change your own role", ErrUnauthorized)
		tracing.EndWithError(span, err)
		return nil, err
	}

	var user *models.User
	err := s.store.Update(ctx, func(tx Tx) error {
		u, err := tx.GetUser(userID)
		if err != nil {
			return fmt.Errorf("failed to load user %d: %w", userID, err)
		}
		if u == nil {
			return fmt.Errorf("user %d: %w", userID, ErrTargetNotFound)
		}
		user = u
		if u.Role == role {
			return nil
		}

		previous := u.Role
		u.Role = role
		if err := tx.SaveUser(u); err != nil {
			return fmt.Errorf("failed to save user %d: %w", userID, err)
		}

		entry := newAuditEntry(AuditActionChangeRole, admin.ID, string(ReportedTypeUser), userID, "", s.now())
		entry.Details["from"] = string(previous)
		entry.Details["to"] = string(role)
		return tx.LogAction(entry)
	})
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}

	log.Info().
		Int64("user_id", userID).
		Int64("admin_id", admin.ID).
		Str("role", string(role)).
		Msg("moderation: role changed")
	return user, nil
}

// SetPostHidden hides or unhides postID
func (s *Service) SetPostHidden(ctx context.Context, admin models.User, postID int64, hidden bool, reason string) (*models.Post, error) {
	ctx, span := tracing.ModerationSpan(ctx, "admin.set_post_hidden",
		attribute.Int64("post_id", postID),
		attribute.Bool("hidden", hidden),
	)
	defer span.End()

	var post *models.Post
	var out Outcome
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		post, out, err = s.executor.setPostHidden(tx, &admin, postID, hidden, reason, true)
		return err
	})
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}
	recordOutcome(admin.ID, out)
	return post, nil
}

// DeletePost removes postID
func (s *Service) DeletePost(ctx context.Context, admin models.User, postID int64, reason string) error {
	ctx, span := tracing.ModerationSpan(ctx, "admin.delete_post", attribute.Int64("post_id", postID))
	defer span.End()

	var out Outcome
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		out, err = s.executor.deletePost(tx, &admin, postID, reason, true)
		return err
	})
	if err != nil {
		tracing.EndWithError(span, err)
		return err
	}
	recordOutcome(admin.ID, out)
	return nil
}
