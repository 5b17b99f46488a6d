package model

import "time"

// User owns the orders created with its token.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}
