package domain

import (
	"errors"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrUserExists = errors.New("user already exists")
var ErrUserNotFound = errors.New("user not found")

// User models a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public projection of a User returned by the API and
// mirrored into client-side session storage.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Valid reports whether the profile carries the shape the client trusts:
// a positive numeric id and non-empty username and email.
func (p *Profile) Valid() bool {
	return p != nil && p.ID > 0 && p.Username != "" && p.Email != ""
}

// Profile returns the public projection of the user.
func (u *User) Profile() *Profile {
	return &Profile{ID: u.ID, Username: u.Username, Email: u.Email}
}
