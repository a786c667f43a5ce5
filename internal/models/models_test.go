package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_IsActiveBan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(7 * 24 * time.Hour)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"not banned", User{}, false},
		{"not banned with stale expiry", User{IsBanned: false, BannedUntil: &future, BanReason: "old"}, false},
		{"permanent ban", User{IsBanned: true}, true},
		{"temporary ban in force", User{IsBanned: true, BannedUntil: &future}, true},
		{"temporary ban expired", User{IsBanned: true, BannedUntil: &past}, false},
		{"ban expiring exactly now", User{IsBanned: true, BannedUntil: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.IsActiveBan(now))
		})
	}
}

func TestUser_BanAndUnban(t *testing.T) {
	u := &User{ID: 5, Role: RoleUser}
	until := time.Now().Add(time.Hour)

	u.Ban(&until, "Spam")
	assert.True(t, u.IsBanned)
	assert.False(t, u.IsPermanentBan())
	assert.Equal(t, "Spam", u.BanReason)

	u.Ban(nil, "Harassment")
	assert.True(t, u.IsPermanentBan())

	u.Unban()
	assert.False(t, u.IsBanned)
	assert.Nil(t, u.BannedUntil)
	assert.Empty(t, u.BanReason)
}

func TestFormatBanMessage(t *testing.T) {
	until := time.Date(2026, 3, 17, 14, 5, 0, 0, time.UTC)

	t.Run("temporary with reason", func(t *testing.T) {
		assert.Equal(t,
			"Your account has been banned until March 17, 2026 at 02:05 PM UTC. Reason: Spam",
			FormatBanMessage(&until, "Spam"))
	})

	t.Run("expiry shown in UTC whatever the stored zone", func(t *testing.T) {
		local := until.In(time.FixedZone("UTC+3", 3*60*60))
		assert.Equal(t,
			"Your account has been banned until March 17, 2026 at 02:05 PM UTC",
			FormatBanMessage(&local, ""))
	})

	t.Run("permanent with reason", func(t *testing.T) {
		assert.Equal(t,
			"Your account has been banned permanently. Reason: Hate speech",
			FormatBanMessage(nil, "Hate speech"))
	})

	t.Run("reason omitted when empty", func(t *testing.T) {
		assert.Equal(t, "Your account has been banned permanently", FormatBanMessage(nil, "  "))
	})
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("MODERATOR").Valid())
	assert.False(t, Role("").Valid())
}
