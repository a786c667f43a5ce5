// Package boltstore provides persistent storage using BoltDB (bbolt).
// It implements moderation.Store as an embedded alternative to SQLite.
package boltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"inkwell/internal/moderation"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for organizing data
var (
	// BucketUsers stores user records keyed by big-endian id
	BucketUsers = []byte("users")

	// BucketUsersByLogin maps "u:<username>" and "e:<email>" (lowercased) to a user id
	BucketUsersByLogin = []byte("users_by_login")

	// BucketPosts stores post records keyed by big-endian id
	BucketPosts = []byte("posts")

	// BucketPostsByAuthor indexes posts as "authorID:postID"
	BucketPostsByAuthor = []byte("posts_by_author")

	// BucketReports stores reports keyed by big-endian id
	BucketReports = []byte("moderation_reports")

	// BucketReportsByReporter indexes reports as "reporterID:reportID"
	BucketReportsByReporter = []byte("moderation_reports_by_reporter")

	// BucketReportsActive holds one key per active report, "reporterID:type:targetID"
	BucketReportsActive = []byte("moderation_reports_active")

	// BucketModerationAuditLog stores moderation action audit trail
	BucketModerationAuditLog = []byte("moderation_audit_log")
)

var allBuckets = [][]byte{
	BucketUsers,
	BucketUsersByLogin,
	BucketPosts,
	BucketPostsByAuthor,
	BucketReports,
	BucketReportsByReporter,
	BucketReportsActive,
	BucketModerationAuditLog,
}

// Store wraps a BoltDB database and implements moderation.Store.
type Store struct {
	db *bolt.DB
}

// Ensure Store implements the interface at compile time.
var _ moderation.Store = (*Store)(nil)

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "inkwell.bolt",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = DefaultOptions().Path
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Update runs fn in a read-write bolt transaction. Bolt allows a single
// writer at a time, so check-then-act sequences inside fn are atomic.
func (s *Store) Update(ctx context.Context, fn func(tx moderation.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&txn{tx: tx})
	})
}

// View runs fn in a read-only bolt transaction.
func (s *Store) View(ctx context.Context, fn func(tx moderation.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&txn{tx: tx})
	})
}

// txn implements moderation.Tx over a bolt transaction.
type txn struct {
	tx *bolt.Tx
}

func (t *txn) bucket(name []byte) (*bolt.Bucket, error) {
	b := t.tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("bucket not found: %s", name)
	}
	return b, nil
}

// itob encodes an id as a sortable 8-byte key
func itob(id int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(id)
		id >>= 8
	}
	return b
}

func btoi(b []byte) int64 {
	var id int64
	for _, c := range b {
		id = id<<8 | int64(c)
	}
	return id
}

// pairKey builds a "%020d:%020d" index key so prefix scans stay ordered
func pairKey(parent, child int64) []byte {
	return []byte(fmt.Sprintf("%020d:%020d", parent, child))
}

func pairPrefix(parent int64) []byte {
	return []byte(fmt.Sprintf("%020d:", parent))
}

// hasPrefix checks if a byte slice has a given prefix.
func hasPrefix(s, prefix []byte) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if s[i] != b {
			return false
		}
	}
	return true
}

// prefixKeys returns a copy of every key in b starting with prefix
func prefixKeys(b *bolt.Bucket, prefix []byte) [][]byte {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	return keys
}

// childID extracts the id after the colon in a pairKey
func childID(key []byte) int64 {
	var parent, child int64
	fmt.Sscanf(string(key), "%d:%d", &parent, &child)
	return child
}
