package models

import "time"

// User is the durable identity of a person, keyed by phone.
type User struct {
	ID          string
	Phone       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time
}
