package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := Open(Options{Path: dbPath})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func createUser(t *testing.T, store *Store, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash-" + username,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.Update(context.Background(), func(tx moderation.Tx) error {
		return tx.CreateUser(u)
	}))
	return u
}

func newReport(reporterID int64, rt moderation.ReportedType, targetID int64, createdAt time.Time) *moderation.Report {
	return &moderation.Report{
		ReportedType: rt,
		ReportedID:   targetID,
		ReporterID:   reporterID,
		Reason:       moderation.ReasonHarassment,
		Description:  "keeps sending abusive messages",
		Status:       moderation.StatusPending,
		CreatedAt:    createdAt,
		Action:       moderation.ActionNone,
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	alice := createUser(t, store, "Alice", models.RoleUser)
	assert.Equal(t, int64(1), alice.ID)

	t.Run("password hash is persisted", func(t *testing.T) {
		require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
			u, err := tx.GetUser(alice.ID)
			require.NoError(t, err)
			require.NotNil(t, u)
			assert.Equal(t, "hash-Alice", u.PasswordHash)
			return nil
		}))
	})

	t.Run("login lookup is case insensitive", func(t *testing.T) {
		require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
			u, err := tx.GetUserByLogin("alice")
			require.NoError(t, err)
			require.NotNil(t, u)
			assert.Equal(t, alice.ID, u.ID)

			u, err = tx.GetUserByLogin("ALICE@example.com")
			require.NoError(t, err)
			require.NotNil(t, u)
			return nil
		}))
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		err := store.Update(ctx, func(tx moderation.Tx) error {
			return tx.CreateUser(&models.User{Username: "alice"})
		})
		assert.ErrorIs(t, err, errUsernameTaken)
	})

	t.Run("rename moves the login index", func(t *testing.T) {
		alice.Username = "alicia"
		require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error {
			return tx.SaveUser(alice)
		}))
		require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
			old, err := tx.GetUserByLogin("alice")
			require.NoError(t, err)
			assert.Nil(t, old)

			renamed, err := tx.GetUserByLogin("alicia")
			require.NoError(t, err)
			assert.NotNil(t, renamed)
			return nil
		}))
	})

	t.Run("view is read only", func(t *testing.T) {
		err := store.View(ctx, func(tx moderation.Tx) error {
			return tx.CreateUser(&models.User{Username: "mallory"})
		})
		assert.Error(t, err)
	})

	t.Run("count", func(t *testing.T) {
		require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
			n, err := tx.CountUsers()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			return nil
		}))
	})
}

func TestActiveReportIndex(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	alice := createUser(t, store, "alice", models.RoleUser)

	first := newReport(alice.ID, moderation.ReportedTypePost, 42, time.Now())
	require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error { return tx.InsertReport(first) }))

	t.Run("duplicate active report rejected", func(t *testing.T) {
		err := store.Update(ctx, func(tx moderation.Tx) error {
			return tx.InsertReport(newReport(alice.ID, moderation.ReportedTypePost, 42, time.Now()))
		})
		assert.ErrorIs(t, err, moderation.ErrDuplicateReport)
	})

	t.Run("find active", func(t *testing.T) {
		require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
			r, err := tx.FindActiveReport(alice.ID, moderation.ReportedTypePost, 42)
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.Equal(t, first.ID, r.ID)

			r, err = tx.FindActiveReport(alice.ID, moderation.ReportedTypeUser, 42)
			require.NoError(t, err)
			assert.Nil(t, r)
			return nil
		}))
	})

	t.Run("resolving frees the slot", func(t *testing.T) {
		now := time.Now()
		first.Status = moderation.StatusResolved
		first.ResolvedAt = &now
		require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error { return tx.UpdateReport(first) }))

		second := newReport(alice.ID, moderation.ReportedTypePost, 42, time.Now())
		require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error { return tx.InsertReport(second) }))
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	admin := createUser(t, store, "admin", models.RoleAdmin)
	alice := createUser(t, store, "alice", models.RoleUser)
	bob := createUser(t, store, "bob", models.RoleUser)

	post := &models.Post{AuthorID: alice.ID, Title: "hello", CreatedAt: time.Now()}
	filed := newReport(alice.ID, moderation.ReportedTypeUser, bob.ID, time.Now())
	kept := newReport(bob.ID, moderation.ReportedTypeUser, alice.ID, time.Now())
	require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error {
		if err := tx.CreatePost(post); err != nil {
			return err
		}
		if err := tx.InsertReport(filed); err != nil {
			return err
		}
		return tx.InsertReport(kept)
	}))

	now := time.Now()
	kept.Status = moderation.StatusDismissed
	kept.ResolvedBy = &admin.ID
	kept.ResolvedAt = &now
	require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error { return tx.UpdateReport(kept) }))

	require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error {
		if err := tx.DeleteUser(alice.ID); err != nil {
			return err
		}
		return tx.DeleteUser(admin.ID)
	}))

	require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
		u, err := tx.GetUser(alice.ID)
		require.NoError(t, err)
		assert.Nil(t, u)

		login, err := tx.GetUserByLogin("alice")
		require.NoError(t, err)
		assert.Nil(t, login)

		p, err := tx.GetPost(post.ID)
		require.NoError(t, err)
		assert.Nil(t, p)

		r, err := tx.GetReport(filed.ID)
		require.NoError(t, err)
		assert.Nil(t, r)

		active, err := tx.FindActiveReport(alice.ID, moderation.ReportedTypeUser, bob.ID)
		require.NoError(t, err)
		assert.Nil(t, active)

		r, err = tx.GetReport(kept.ID)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Nil(t, r.ResolvedBy)
		assert.Equal(t, moderation.StatusDismissed, r.Status)
		return nil
	}))
}

func TestListReports(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	alice := createUser(t, store, "alice", models.RoleUser)
	bob := createUser(t, store, "bob", models.RoleUser)

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error {
		for i := int64(1); i <= 4; i++ {
			if err := tx.InsertReport(newReport(alice.ID, moderation.ReportedTypePost, i, base.Add(time.Duration(i)*time.Hour))); err != nil {
				return err
			}
		}
		return tx.InsertReport(newReport(bob.ID, moderation.ReportedTypeUser, alice.ID, base))
	}))

	require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
		page, total, err := tx.ListReports(moderation.ReportFilter{Type: moderation.ReportedTypePost, Page: 1, Size: 3})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, page, 1)
		assert.Equal(t, int64(1), page[0].ReportedID)

		page, total, err = tx.ListReports(moderation.ReportFilter{Page: 5, Size: 3})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Empty(t, page)

		mine, err := tx.ListReportsByReporter(alice.ID)
		require.NoError(t, err)
		require.Len(t, mine, 4)
		assert.Equal(t, int64(4), mine[0].ReportedID)

		n, err := tx.CountReportsSince(alice.ID, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		byStatus, byType, err := tx.ReportCounts()
		require.NoError(t, err)
		assert.Equal(t, 5, byStatus[moderation.StatusPending])
		assert.Equal(t, 4, byType[moderation.ReportedTypePost])
		assert.Equal(t, 1, byType[moderation.ReportedTypeUser])
		return nil
	}))
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	now := time.Now()
	for i := 0; i < 5; i++ {
		entry := moderation.AuditEntry{
			ID:        "tid" + string(rune('a'+i)),
			Action:    moderation.AuditActionHidePost,
			ActorID:   1,
			TargetID:  int64(i),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Update(ctx, func(tx moderation.Tx) error { return tx.LogAction(entry) }))
	}

	require.NoError(t, store.View(ctx, func(tx moderation.Tx) error {
		entries, err := tx.ListAuditLog(3)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, int64(4), entries[0].TargetID)
		assert.Equal(t, int64(2), entries[2].TargetID)
		return nil
	}))
}

func TestClosedContext(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Update(ctx, func(tx moderation.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
