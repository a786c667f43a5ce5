package models

import "time"

// Post is the minimal view of a blog post needed for moderation.
// Post CRUD lives outside this service.
type Post struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
}
