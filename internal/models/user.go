package models

import (
	"strings"
	"time"
)

// Role is the platform role held by a user account
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// BanDateLayout renders ban expiry times, always in UTC, in user-facing messages
const BanDateLayout = "January 02, 2006 at 03:04 PM MST"

// User is the credential-store record of an account, reduced to the fields
// the moderation core reads and mutates.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsBanned     bool       `json:"is_banned"`
	BannedUntil  *time.Time `json:"banned_until,omitempty"` // nil with IsBanned means permanent
	BanReason    string     `json:"ban_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsAdmin returns true if the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActiveBan reports whether the ban recorded on the user is in force at now.
// BannedUntil and BanReason are ignored when IsBanned is false.
func (u *User) IsActiveBan(now time.Time) bool {
	if !u.IsBanned {
		return false
	}
	return u.BannedUntil == nil || u.BannedUntil.After(now)
}

// IsPermanentBan reports whether the user is banned with no expiry
func (u *User) IsPermanentBan() bool {
	return u.IsBanned && u.BannedUntil == nil
}

// Ban sets the ban fields. A nil until means the ban never expires.
func (u *User) Ban(until *time.Time, reason string) {
	u.IsBanned = true
	u.BannedUntil = until
	u.BanReason = reason
}

// Unban clears the ban fields
func (u *User) Unban() {
	u.IsBanned = false
	u.BannedUntil = nil
	u.BanReason = ""
}

// BanMessage returns the message shown to a banned user
func (u *User) BanMessage() string {
	return FormatBanMessage(u.BannedUntil, u.BanReason)
}

// FormatBanMessage builds "Your account has been banned {until <date> | permanently}"
// with ". Reason: <reason>" appended when a reason is present.
func FormatBanMessage(until *time.Time, reason string) string {
	var b strings.Builder
	b.WriteString("Your account has been banned")
	if until != nil {
		b.WriteString(" until ")
		b.WriteString(until.UTC().Format(BanDateLayout))
	} else {
		b.WriteString(" permanently")
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		b.WriteString(". Reason: ")
		b.WriteString(reason)
	}
	return b.String()
}
