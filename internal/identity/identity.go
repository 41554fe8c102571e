package identity

import (
	"context"
	"errors"
	"time"
)

// Account is an identity-service record.
type Account struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrNotFound is returned when no account exists for the given id.
	ErrNotFound = errors.New("identity: account not found")
	// ErrEmailTaken is returned by CreateAccount for a duplicate email.
	ErrEmailTaken = errors.New("identity: email already registered")
	// ErrBadCredentials is returned when email/password verification fails.
	ErrBadCredentials = errors.New("identity: invalid credentials")
)

// Service is the identity-provider boundary. DeleteAccount must return
// ErrNotFound (not a generic error) when the account is already gone, so
// callers can treat repeat deletion as converged.
type Service interface {
	CreateAccount(ctx context.Context, email, password string) (Account, error)
	VerifyCredentials(ctx context.Context, email, password string) (Account, error)
	DeleteAccount(ctx context.Context, uid string) error
}
