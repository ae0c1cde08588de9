package models

import "time"

// Session maps an opaque token to the user who logged in with it.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}
