package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	"inkwell/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_banned, banned_until, ban_reason, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var isBanned int
	var bannedUntil sql.NullString
	var createdAt string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&isBanned, &bannedUntil, &u.BanReason, &createdAt)
	if err != nil {
		return nil, err
	}
	u.IsBanned = isBanned == 1
	if u.BannedUntil, err = parseNullTime(bannedUntil); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *txn) GetUser(id int64) (*models.User, error) {
	u, err := scanUser(t.q.QueryRowContext(t.ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (t *txn) GetUserByLogin(login string) (*models.User, error) {
	if login == "" {
		return nil, nil
	}
	u, err := scanUser(t.q.QueryRowContext(t.ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR (email != '' AND email = ?) LIMIT 1`,
		login, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by login: %w", err)
	}
	return u, nil
}

func (t *txn) CreateUser(u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	res, err := t.exec(`
		INSERT INTO users (username, email, password_hash, role, is_banned, banned_until, ban_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.Username, u.Email, u.PasswordHash, string(u.Role), boolToInt(u.IsBanned),
		formatNullTime(u.BannedUntil), u.BanReason, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (t *txn) SaveUser(u *models.User) error {
	res, err := t.exec(`
		UPDATE users SET
			username      = ?,
			email         = ?,
			password_hash = ?,
			role          = ?,
			is_banned     = ?,
			banned_until  = ?,
			ban_reason    = ?
		WHERE id = ?
	`, u.Username, u.Email, u.PasswordHash, string(u.Role), boolToInt(u.IsBanned),
		formatNullTime(u.BannedUntil), u.BanReason, u.ID)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %d", u.ID)
	}
	return nil
}

// DeleteUser relies on the foreign keys to cascade posts and filed reports
// and to clear resolved_by on reports the user resolved.
func (t *txn) DeleteUser(id int64) error {
	if _, err := t.exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (t *txn) CountUsers() (int, error) {
	var n int
	err := t.q.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

const postColumns = `id, author_id, title, hidden, created_at`

func (t *txn) GetPost(id int64) (*models.Post, error) {
	var p models.Post
	var hidden int
	var createdAt string
	err := t.q.QueryRowContext(t.ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id).
		Scan(&p.ID, &p.AuthorID, &p.Title, &hidden, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	p.Hidden = hidden == 1
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

func (t *txn) CreatePost(p *models.Post) error {
	res, err := t.exec(`
		INSERT INTO posts (author_id, title, hidden, created_at) VALUES (?, ?, ?, ?)
	`, p.AuthorID, p.Title, boolToInt(p.Hidden), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (t *txn) SavePost(p *models.Post) error {
	res, err := t.exec(`UPDATE posts SET title = ?, hidden = ? WHERE id = ?`,
		p.Title, boolToInt(p.Hidden), p.ID)
	if err != nil {
		return fmt.Errorf("save post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post not found: %d", p.ID)
	}
	return nil
}

func (t *txn) DeletePost(id int64) error {
	if _, err := t.exec(`DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}
