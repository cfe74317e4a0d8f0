package store

import "time"

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

type Session struct {
	ID        string    `json:"id"` // Using UUID for external ID
	UserID    int64     `json:"user_id"`
	Title     *string   `json:"title"` // Nullable
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID               string    `json:"id"` // Using UUID for external ID
	SessionID        string    `json:"session_id"`
	Sender           string    `json:"sender"` // "user" or "model"
	Content          string    `json:"content"`
	Prompt           string    `json:"prompt,omitempty"` // question that produced a model reply
	SQL              string    `json:"sql,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	NegativeFeedback bool      `json:"negative_feedback"`
}

// ActionRecord is one row of the append-only query log: every terminal
// workflow outcome plus explicit user feedback ends up here.
type ActionRecord struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Question     string    `json:"question"`
	SQL          string    `json:"sql"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message"`
}
