package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/accounts", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"uid": "u-1", "email": body["email"]})
	}))
	defer srv.Close()

	acct, err := NewClient(srv.URL, "").CreateAccount(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u-1", acct.UID)
	assert.Equal(t, "ada@example.com", acct.Email)
}

func TestClientDeleteAccountNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/v1/accounts/u-gone", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").DeleteAccount(context.Background(), "u-gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientVerifyCredentialsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").VerifyCredentials(context.Background(), "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestClientSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer provider-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "provider-key").DeleteAccount(context.Background(), "u-1")
	assert.NoError(t, err)
}

func TestMemoryIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	acct, err := m.CreateAccount(ctx, "Ada@Example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", acct.Email)

	_, err = m.CreateAccount(ctx, "ada@example.com", "other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := m.VerifyCredentials(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, acct.UID, got.UID)

	_, err = m.VerifyCredentials(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	require.NoError(t, m.DeleteAccount(ctx, acct.UID))
	assert.ErrorIs(t, m.DeleteAccount(ctx, acct.UID), ErrNotFound)
}
