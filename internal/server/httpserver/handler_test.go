package httpserver

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

	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/logging"
	"github.com/dmitrijs2005/rtcauth/internal/server/models"
	"github.com/dmitrijs2005/rtcauth/internal/server/services"
)

type fakeAuth struct {
	err         error
	lastSession string
	lastRoom    string
	loginResult *services.LoginResult
	tokenResult *services.CapabilityToken
	user        *models.User
	refreshed   *models.Session
}

func (f *fakeAuth) RequestCode(ctx context.Context, phone string) error { return f.err }

func (f *fakeAuth) VerifyAndLogin(ctx context.Context, phone, code string) (*services.LoginResult, error) {
	return f.loginResult, f.err
}

func (f *fakeAuth) ExchangeForCapabilityToken(ctx context.Context, sessionToken, room string, privileges []string) (*services.CapabilityToken, error) {
	f.lastSession, f.lastRoom = sessionToken, room
	return f.tokenResult, f.err
}

func (f *fakeAuth) RenameIdentity(ctx context.Context, sessionToken, name string) (*models.User, error) {
	f.lastSession = sessionToken
	return f.user, f.err
}

func (f *fakeAuth) Logout(ctx context.Context, sessionToken string) error {
	f.lastSession = sessionToken
	return f.err
}

func (f *fakeAuth) RefreshSession(ctx context.Context, sessionToken string) (*models.Session, error) {
	f.lastSession = sessionToken
	return f.refreshed, f.err
}

func (f *fakeAuth) GetProfile(ctx context.Context, sessionToken string) (*models.User, error) {
	f.lastSession = sessionToken
	return f.user, f.err
}

type fakeUploads struct {
	out *services.UploadURL
	err error
}

func (f *fakeUploads) CreateUploadURL(ctx context.Context, sessionToken, fileName string) (*services.UploadURL, error) {
	return f.out, f.err
}

func newTestRouter(a AuthService, u UploadService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(a, u, logging.Nop())
	return NewRouter("rtcauth-test", h, logging.Nop())
}

func do(t *testing.T, r http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLogin_Success(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	auth := &fakeAuth{loginResult: &services.LoginResult{
		User:    &models.User{ID: "u1", Phone: "+8613800000000", DisplayName: "alice", CreatedAt: now, UpdatedAt: now, LastLoginAt: now},
		Session: models.Session{Token: "sess", UserID: "u1", ExpiresAt: now.Add(time.Hour)},
	}}
	r := newTestRouter(auth, nil)

	w := do(t, r, http.MethodPost, "/v1/sms/login", map[string]string{"phone": "+8613800000000", "code": "123456"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.EqualValues(t, 200, env["code"])
	assert.Equal(t, "ok", env["message"])
	resp, ok := env["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u1", resp["user_id"])
	assert.Equal(t, "sess", resp["login_token"])
	assert.EqualValues(t, now.Add(time.Hour).Unix(), resp["expires_at"])
}

func TestSendCode_NoResponseBody(t *testing.T) {
	r := newTestRouter(&fakeAuth{}, nil)
	w := do(t, r, http.MethodPost, "/v1/sms/send", map[string]string{"phone": "+8613800000000"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	_, has := env["response"]
	assert.False(t, has)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"invalid", fmt.Errorf("%w: bad phone", common.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"code invalid", common.ErrCodeInvalid, http.StatusUnprocessableEntity, "code_invalid"},
		{"code expired", common.ErrCodeExpired, http.StatusGone, "code_expired"},
		{"session", common.ErrSessionInvalid, http.StatusUnauthorized, "session_invalid"},
		{"upstream", fmt.Errorf("%w: sms down", common.ErrUpstream), http.StatusServiceUnavailable, "upstream_unavailable"},
		{"persistence", fmt.Errorf("%w: disk full", common.ErrPersistence), http.StatusInternalServerError, "persistence_error"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "persistence_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeAuth{err: tt.err}, nil)
			w := do(t, r, http.MethodPost, "/v1/sms/login", map[string]string{"phone": "p", "code": "c"}, nil)
			require.Equal(t, tt.status, w.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.kind, body.Error)
		})
	}
}

func TestErrorMapping_HidesPersistenceDetail(t *testing.T) {
	r := newTestRouter(&fakeAuth{err: fmt.Errorf("%w: pq: relation users missing", common.ErrPersistence)}, nil)
	w := do(t, r, http.MethodPost, "/v1/user/profile", map[string]string{"login_token": "t"}, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "relation")
}

func TestMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newTestRouter(&fakeAuth{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sms/send", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionToken_HeaderFallback(t *testing.T) {
	now := time.Now()
	auth := &fakeAuth{tokenResult: &services.CapabilityToken{Token: "cap", Room: "room-1", IssuedAt: now}}
	r := newTestRouter(auth, nil)

	w := do(t, r, http.MethodPost, "/v1/rtc/token", map[string]any{"room_id": "room-1"}, map[string]string{SessionTokenHeader: "from-header"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-header", auth.lastSession)
	assert.Equal(t, "room-1", auth.lastRoom)

	w = do(t, r, http.MethodPost, "/v1/rtc/token", map[string]any{"login_token": "from-body", "room_id": "room-1"}, map[string]string{SessionTokenHeader: "from-header"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-body", auth.lastSession)
}

func TestRenameProfileRefreshLogout(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	auth := &fakeAuth{
		user:      &models.User{ID: "u1", DisplayName: "bob", CreatedAt: now, UpdatedAt: now, LastLoginAt: now},
		refreshed: &models.Session{Token: "sess", ExpiresAt: now.Add(2 * time.Hour)},
	}
	r := newTestRouter(auth, nil)

	w := do(t, r, http.MethodPost, "/v1/user/rename", map[string]string{"login_token": "sess", "user_name": "bob"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", decodeEnvelope(t, w)["response"].(map[string]any)["user_name"])

	w = do(t, r, http.MethodPost, "/v1/user/profile", map[string]string{"login_token": "sess"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/v1/session/refresh", map[string]string{"login_token": "sess"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, now.Add(2*time.Hour).Unix(), decodeEnvelope(t, w)["response"].(map[string]any)["expires_at"])

	w = do(t, r, http.MethodPost, "/v1/logout", map[string]string{"login_token": "sess"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess", auth.lastSession)
}

func TestUploadURL(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		r := newTestRouter(&fakeAuth{}, nil)
		w := do(t, r, http.MethodPost, "/v1/upload-url", map[string]string{"login_token": "t", "file_name": "a.png"}, nil)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("ok", func(t *testing.T) {
		exp := time.Date(2025, 3, 1, 12, 15, 0, 0, time.UTC)
		r := newTestRouter(&fakeAuth{}, &fakeUploads{out: &services.UploadURL{Key: "users/u1/a.png", URL: "https://s3/x", ExpiresAt: exp}})
		w := do(t, r, http.MethodPost, "/v1/upload-url", map[string]string{"login_token": "t", "file_name": "a.png"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeEnvelope(t, w)["response"].(map[string]any)
		assert.Equal(t, "https://s3/x", resp["url"])
	})

	t.Run("upstream", func(t *testing.T) {
		r := newTestRouter(&fakeAuth{}, &fakeUploads{err: common.ErrUpstream})
		w := do(t, r, http.MethodPost, "/v1/upload-url", map[string]string{"login_token": "t", "file_name": "a.png"}, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHealthAndCORS(t *testing.T) {
	r := newTestRouter(&fakeAuth{}, nil)

	w := do(t, r, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, r, http.MethodOptions, "/v1/sms/send", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEmptyBody_HeaderSession(t *testing.T) {
	auth := &fakeAuth{user: &models.User{ID: "u1"}}
	r := newTestRouter(auth, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/user/profile", nil)
	req.Header.Set(SessionTokenHeader, "sess")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess", auth.lastSession)
}
