package boltstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/models"

	bolt "go.etcd.io/bbolt"
)

var errUsernameTaken = errors.New("username or email already in use")

// userRecord persists the password hash, which models.User keeps out of JSON
type userRecord struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

func usernameKey(name string) []byte {
	return []byte("u:" + strings.ToLower(name))
}

func emailKey(email string) []byte {
	return []byte("e:" + strings.ToLower(email))
}

func loadUser(b *bolt.Bucket, id int64) (*models.User, error) {
	data := b.Get(itob(id))
	if data == nil {
		return nil, nil
	}
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %d: %w", id, err)
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return &u, nil
}

func putUser(b *bolt.Bucket, u *models.User) error {
	data, err := json.Marshal(userRecord{User: *u, PasswordHash: u.PasswordHash})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return b.Put(itob(u.ID), data)
}

func (t *txn) GetUser(id int64) (*models.User, error) {
	b, err := t.bucket(BucketUsers)
	if err != nil {
		return nil, err
	}
	return loadUser(b, id)
}

func (t *txn) GetUserByLogin(login string) (*models.User, error) {
	if login == "" {
		return nil, nil
	}
	idx, err := t.bucket(BucketUsersByLogin)
	if err != nil {
		return nil, err
	}
	v := idx.Get(usernameKey(login))
	if v == nil {
		v = idx.Get(emailKey(login))
	}
	if v == nil {
		return nil, nil
	}
	return t.GetUser(btoi(v))
}

// indexLogins points the username and email keys at u, rejecting keys
// already owned by another user.
func indexLogins(idx *bolt.Bucket, u *models.User) error {
	keys := [][]byte{usernameKey(u.Username)}
	if u.Email != "" {
		keys = append(keys, emailKey(u.Email))
	}
	for _, k := range keys {
		if v := idx.Get(k); v != nil && btoi(v) != u.ID {
			return errUsernameTaken
		}
	}
	for _, k := range keys {
		if err := idx.Put(k, itob(u.ID)); err != nil {
			return err
		}
	}
	return nil
}

func unindexLogins(idx *bolt.Bucket, u *models.User) error {
	if err := idx.Delete(usernameKey(u.Username)); err != nil {
		return err
	}
	if u.Email != "" {
		return idx.Delete(emailKey(u.Email))
	}
	return nil
}

func (t *txn) CreateUser(u *models.User) error {
	users, err := t.bucket(BucketUsers)
	if err != nil {
		return err
	}
	idx, err := t.bucket(BucketUsersByLogin)
	if err != nil {
		return err
	}
	if u.Username == "" {
		return fmt.Errorf("create user: username is required")
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	seq, err := users.NextSequence()
	if err != nil {
		return err
	}
	u.ID = int64(seq)

	if err := indexLogins(idx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return putUser(users, u)
}

func (t *txn) SaveUser(u *models.User) error {
	users, err := t.bucket(BucketUsers)
	if err != nil {
		return err
	}
	idx, err := t.bucket(BucketUsersByLogin)
	if err != nil {
		return err
	}

	old, err := loadUser(users, u.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("user not found: %d", u.ID)
	}
	if !strings.EqualFold(old.Username, u.Username) || !strings.EqualFold(old.Email, u.Email) {
		if err := unindexLogins(idx, old); err != nil {
			return err
		}
		if err := indexLogins(idx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
	}
	return putUser(users, u)
}

// DeleteUser removes the user with their posts and filed reports, and
// clears ResolvedBy on reports they resolved.
func (t *txn) DeleteUser(id int64) error {
	users, err := t.bucket(BucketUsers)
	if err != nil {
		return err
	}
	u, err := loadUser(users, id)
	if err != nil || u == nil {
		return err
	}

	idx, err := t.bucket(BucketUsersByLogin)
	if err != nil {
		return err
	}
	if err := unindexLogins(idx, u); err != nil {
		return err
	}

	byAuthor, err := t.bucket(BucketPostsByAuthor)
	if err != nil {
		return err
	}
	for _, k := range prefixKeys(byAuthor, pairPrefix(id)) {
		if err := t.DeletePost(childID(k)); err != nil {
			return err
		}
	}

	byReporter, err := t.bucket(BucketReportsByReporter)
	if err != nil {
		return err
	}
	for _, k := range prefixKeys(byReporter, pairPrefix(id)) {
		if err := t.deleteReport(childID(k)); err != nil {
			return err
		}
	}

	if err := t.clearResolver(id); err != nil {
		return err
	}

	return users.Delete(itob(id))
}

func (t *txn) CountUsers() (int, error) {
	b, err := t.bucket(BucketUsers)
	if err != nil {
		return 0, err
	}
	return b.Stats().KeyN, nil
}

// ========== Posts ==========

func (t *txn) GetPost(id int64) (*models.Post, error) {
	b, err := t.bucket(BucketPosts)
	if err != nil {
		return nil, err
	}
	data := b.Get(itob(id))
	if data == nil {
		return nil, nil
	}
	var p models.Post
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post %d: %w", id, err)
	}
	return &p, nil
}

func putPost(b *bolt.Bucket, p *models.Post) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	return b.Put(itob(p.ID), data)
}

func (t *txn) CreatePost(p *models.Post) error {
	posts, err := t.bucket(BucketPosts)
	if err != nil {
		return err
	}
	byAuthor, err := t.bucket(BucketPostsByAuthor)
	if err != nil {
		return err
	}
	author, err := t.GetUser(p.AuthorID)
	if err != nil {
		return err
	}
	if author == nil {
		return fmt.Errorf("create post: author %d not found", p.AuthorID)
	}

	seq, err := posts.NextSequence()
	if err != nil {
		return err
	}
	p.ID = int64(seq)

	if err := byAuthor.Put(pairKey(p.AuthorID, p.ID), nil); err != nil {
		return err
	}
	return putPost(posts, p)
}

func (t *txn) SavePost(p *models.Post) error {
	posts, err := t.bucket(BucketPosts)
	if err != nil {
		return err
	}
	if posts.Get(itob(p.ID)) == nil {
		return fmt.Errorf("post not found: %d", p.ID)
	}
	return putPost(posts, p)
}

func (t *txn) DeletePost(id int64) error {
	p, err := t.GetPost(id)
	if err != nil || p == nil {
		return err
	}
	posts, err := t.bucket(BucketPosts)
	if err != nil {
		return err
	}
	byAuthor, err := t.bucket(BucketPostsByAuthor)
	if err != nil {
		return err
	}
	if err := byAuthor.Delete(pairKey(p.AuthorID, id)); err != nil {
		return err
	}
	return posts.Delete(itob(id))
}
