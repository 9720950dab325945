// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a registered identity. Username and Email are unique
// case-insensitively; PasswordHash is an argon2id PHC string.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Bio          string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
