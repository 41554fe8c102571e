package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/config"
	"campus/internal/docstore"
	"campus/internal/identity"
	"campus/internal/queue"
	"campus/internal/school"
)

func newTestRouter(t *testing.T) (*gin.Engine, *docstore.Memory, *identity.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := docstore.NewMemory()
	idsvc := identity.NewMemory()
	cfg := config.App{
		JWTIssuer:     "campus-test",
		JWTSigningKey: "test-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
	svc := school.NewService(store, idsvc, 50)
	h := New(svc, idsvc, nil, queue.NewInMemory(16), cfg)

	r := gin.New()
	Register(r, h)
	return r, store, idsvc
}

// seedAdmin registers an identity account with an admin grant and returns a
// bearer token for it.
func seedAdmin(t *testing.T, r *gin.Engine, store *docstore.Memory, idsvc *identity.Memory) string {
	t.Helper()
	ctx := context.Background()
	acct, err := idsvc.CreateAccount(ctx, "admin@example.com", "admin-pw")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "roles_admin/"+acct.UID, map[string]any{"id": acct.UID}))
	return login(t, r, "admin@example.com", "admin-pw")
}

func login(t *testing.T, r *gin.Engine, email, password string) string {
	t.Helper()
	res := doJSON(r, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body.AccessToken
}

func doJSON(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, _, idsvc := newTestRouter(t)
	_, err := idsvc.CreateAccount(context.Background(), "x@example.com", "right")
	require.NoError(t, err)

	res := doJSON(r, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "x@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	r, _, idsvc := newTestRouter(t)
	_, err := idsvc.CreateAccount(context.Background(), "plain@example.com", "pw")
	require.NoError(t, err)
	token := login(t, r, "plain@example.com", "pw")

	res := doJSON(r, http.MethodGet, "/v1/students", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(r, http.MethodGet, "/v1/students", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestStudentLifecycleOverHTTP(t *testing.T) {
	r, store, idsvc := newTestRouter(t)
	admin := seedAdmin(t, r, store, idsvc)

	// admit a student
	res := doJSON(r, http.MethodPost, "/v1/students", admin, map[string]any{
		"first_name": "Ada", "last_name": "Lovelace",
		"email": "ada@example.com", "password": "secret1", "class_id": "c1",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var profile school.StudentProfile
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &profile))
	require.NotEmpty(t, profile.ID)

	// record a fee for the student
	res = doJSON(r, http.MethodPut, "/v1/fees", admin, map[string]any{
		"student_id": profile.ID, "term": "1st", "session": "2025/2026",
		"amount": 5000, "amount_paid": 2000,
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var fee school.FeeRecord
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &fee))
	assert.Equal(t, 3000.0, fee.BalanceRemaining)
	assert.Equal(t, school.FeePartial, fee.Status)

	// the student sees their own fee
	studentToken := login(t, r, "ada@example.com", "secret1")
	res = doJSON(r, http.MethodGet, "/v1/me/fees", studentToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var mine struct {
		Fees []school.FeeRecord `json:"fees"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &mine))
	require.Len(t, mine.Fees, 1)
	assert.Equal(t, fee.ID, mine.Fees[0].ID)

	// cascade removes the account and every record
	res = doJSON(r, http.MethodDelete, "/v1/students/"+profile.ID, admin, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var del school.DeleteResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &del))
	assert.True(t, del.Success)

	global, err := store.Query(context.Background(), "fees", "studentId", profile.ID, "", 50)
	require.NoError(t, err)
	assert.Empty(t, global)

	res = doJSON(r, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code, "deleted account can no longer log in")
}

func TestDeleteStudentIsRepeatableOverHTTP(t *testing.T) {
	r, store, idsvc := newTestRouter(t)
	admin := seedAdmin(t, r, store, idsvc)

	for i := 0; i < 2; i++ {
		res := doJSON(r, http.MethodDelete, "/v1/students/missing-uid", admin, nil)
		require.Equal(t, http.StatusOK, res.Code, "attempt %d: %s", i+1, res.Body.String())
	}
}

func TestAnnouncementVisibleToStudentClass(t *testing.T) {
	r, store, idsvc := newTestRouter(t)
	admin := seedAdmin(t, r, store, idsvc)

	res := doJSON(r, http.MethodPost, "/v1/students", admin, map[string]any{
		"first_name": "Ada", "last_name": "L",
		"email": "a@example.com", "password": "secret1", "class_id": "c1",
	})
	require.Equal(t, http.StatusCreated, res.Code)

	for i, classIDs := range [][]string{{"c1"}, {"c2"}} {
		res = doJSON(r, http.MethodPost, "/v1/announcements", admin, map[string]any{
			"title": fmt.Sprintf("note %d", i), "content": "...", "class_ids": classIDs,
		})
		require.Equal(t, http.StatusCreated, res.Code)
	}

	token := login(t, r, "a@example.com", "secret1")
	res = doJSON(r, http.MethodGet, "/v1/me/announcements", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Announcements []school.Announcement `json:"announcements"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body.Announcements, 1)
	assert.Equal(t, "note 0", body.Announcements[0].Title)
}

func TestSiteContentPublicReadAdminWrite(t *testing.T) {
	r, store, idsvc := newTestRouter(t)
	admin := seedAdmin(t, r, store, idsvc)

	res := doJSON(r, http.MethodPut, "/v1/site-content", admin, map[string]any{
		"headline": "Welcome",
	})
	require.Equal(t, http.StatusOK, res.Code)

	// no token needed to read the homepage content
	res = doJSON(r, http.MethodGet, "/v1/site-content", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var content school.SiteContent
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &content))
	assert.Equal(t, "Welcome", content.Headline)
}

func TestUploadUnconfiguredReturns503(t *testing.T) {
	r, store, idsvc := newTestRouter(t)
	admin := seedAdmin(t, r, store, idsvc)

	res := doJSON(r, http.MethodPost, "/v1/uploads", admin, map[string]string{"data": "ZGF0YQ=="})
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}
