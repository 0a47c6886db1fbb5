package model

import "time"

// Notification is a server-issued alert about workflow activity.
type Notification struct {
	// ID is the server identifier for this notification.
	ID int64 `json:"id" db:"id"`

	// Title is the short headline.
	Title string `json:"title" db:"title"`

	// Body is the human-readable notification text.
	Body string `json:"body" db:"body"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"is_read" db:"read"`

	// CreatedAt is when the server generated this notification.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
