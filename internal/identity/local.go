package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Local keeps accounts in Postgres with bcrypt-hashed credentials. Used for
// dev and self-hosted deployments where no hosted identity provider exists.
type Local struct {
	db *sql.DB
}

// NewLocal creates a local identity backend and ensures its schema.
func NewLocal(ctx context.Context, db *sql.DB) (*Local, error) {
	l := &Local{db: db}
	if err := l.migrate(ctx); err != nil {
		return nil, fmt.Errorf("identity migrate: %w", err)
	}
	return l, nil
}

func (l *Local) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			uid           TEXT PRIMARY KEY,
			email         TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// CreateAccount registers a new account keyed by a generated uid.
func (l *Local) CreateAccount(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Account{}, errors.New("identity: email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	acct := Account{UID: uuid.NewString(), Email: email, CreatedAt: time.Now().UTC()}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO accounts (uid, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, acct.UID, acct.Email, string(hash), acct.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return Account{}, ErrEmailTaken
		}
		return Account{}, err
	}
	return acct, nil
}

// VerifyCredentials checks email/password and returns the account.
func (l *Local) VerifyCredentials(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var acct Account
	var hash string
	err := l.db.QueryRowContext(ctx, `
		SELECT uid, email, password_hash, created_at FROM accounts WHERE email = $1
	`, email).Scan(&acct.UID, &acct.Email, &hash, &acct.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrBadCredentials
	}
	if err != nil {
		return Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Account{}, ErrBadCredentials
	}
	return acct, nil
}

// DeleteAccount removes an account by uid, reporting ErrNotFound when the
// account is already gone.
func (l *Local) DeleteAccount(ctx context.Context, uid string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM accounts WHERE uid = $1`, uid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
