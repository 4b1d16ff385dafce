package user

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is a chat participant known to the system.
type User struct {
	Id int64
	// Uid is the public identifier, stable across databases.
	Uid string
	// ExternalId is the identity supplied by the chat transport.
	ExternalId string
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
}

// Profile is what the chat transport knows about a sender on first contact.
type Profile struct {
	ExternalId string
	Username   string
	FirstName  string
	LastName   string
}

// DisplayName returns the best human readable name available.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return u.ExternalId
	}
}
