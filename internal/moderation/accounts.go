package moderation

import (
	"context"
	"fmt"

	"inkwell/internal/models"

	"github.com/rs/zerolog/log"
)

// GetUser returns the current record for id, or nil if the account is gone
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user *models.User
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		user, err = tx.GetUser(id)
		return err
	})
	return user, err
}

// GetUserByLogin looks an account up by username or email
func (s *Service) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user *models.User
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		user, err = tx.GetUserByLogin(login)
		return err
	})
	return user, err
}

// CountUsers returns the number of accounts
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		n, err = tx.CountUsers()
		return err
	})
	return n, err
}

// EnsureAdmin creates an ADMIN account named username unless an account with
// that username or email already exists. It returns the existing or new user.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	var user *models.User
	created := false
	err := s.store.Update(ctx, func(tx Tx) error {
		for _, login := range []string{username, email} {
			if login == "" {
				continue
			}
			existing, err := tx.GetUserByLogin(login)
			if err != nil {
				return err
			}
			if existing != nil {
				user = existing
				return nil
			}
		}

		user = &models.User{
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			Role:         models.RoleAdmin,
			CreatedAt:    s.now(),
		}
		created = true
		return tx.CreateUser(user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap admin %q: %w", username, err)
	}

	if created {
		log.Info().Int64("user_id", user.ID).Str("username", username).Msg("moderation: bootstrap admin created")
	} else if !user.IsAdmin() {
		log.Warn().Str("username", user.Username).Msg("moderation: bootstrap account exists but is not an admin")
	}
	return user, nil
}
