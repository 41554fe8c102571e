package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory holds accounts in a map; the dev/test backend.
type Memory struct {
	mu       sync.Mutex
	byUID    map[string]Account
	byEmail  map[string]string
	password map[string]string
}

// NewMemory creates an empty in-memory identity backend.
func NewMemory() *Memory {
	return &Memory{
		byUID:    make(map[string]Account),
		byEmail:  make(map[string]string),
		password: make(map[string]string),
	}
}

// CreateAccount registers an account keyed by a generated uid.
func (m *Memory) CreateAccount(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[email]; taken {
		return Account{}, ErrEmailTaken
	}
	acct := Account{UID: uuid.NewString(), Email: email, CreatedAt: time.Now().UTC()}
	m.byUID[acct.UID] = acct
	m.byEmail[email] = acct.UID
	m.password[acct.UID] = password
	return acct, nil
}

// VerifyCredentials checks email/password.
func (m *Memory) VerifyCredentials(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.byEmail[email]
	if !ok || m.password[uid] != password {
		return Account{}, ErrBadCredentials
	}
	return m.byUID[uid], nil
}

// DeleteAccount removes an account, reporting ErrNotFound when absent.
func (m *Memory) DeleteAccount(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byUID[uid]
	if !ok {
		return ErrNotFound
	}
	delete(m.byUID, uid)
	delete(m.byEmail, acct.Email)
	delete(m.password, uid)
	return nil
}
