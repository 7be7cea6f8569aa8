// Package domain holds the admin API's own small data model — the
// operators who sign in to inspect and cancel tasks. It is deliberately
// separate from internal/task: an operator has nothing to do with the
// task lifecycle itself.
package domain

import (
	"errors"
	"time"
)

var (
	ErrOperatorNotFound = errors.New("operator not found")
	ErrTokenInvalid     = errors.New("magic link is invalid or expired")
	ErrUnauthorized     = errors.New("unauthorized")
)

// Operator is anyone allowed to sign in to the admin API. There is no
// password: access is granted via a time-boxed magic link sent to email.
type Operator struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MagicToken is a single-use sign-in link issued to an Operator's email.
type MagicToken struct {
	ID        string
	OperatorID string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
