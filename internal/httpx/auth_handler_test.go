package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/service/auth"
)

type capturingNotifier struct {
	lastCode string
}

func (c *capturingNotifier) NotifyOrderPlaced(domain.Order) error { return nil }

func (c *capturingNotifier) NotifyOTP(_ string, code string) error {
	c.lastCode = code
	return nil
}

func newAuthRouter(t *testing.T) (*chiRouter, *capturingNotifier, *auth.TokenIssuer) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	notifier := &capturingNotifier{}
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	authSvc := auth.NewService(auth.NewRedisOTPStore(client), notifier, tokens, quietLogger())

	router := NewRouter(RouterDeps{
		Auth: NewAuthHandler(authSvc, quietLogger()),
	})
	return &chiRouter{router: router}, notifier, tokens
}

// chiRouter — маленький помощник вокруг ServeHTTP для тестов этого файла.
type chiRouter struct {
	router http.Handler
}

func (r *chiRouter) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

func TestAuthSendAndVerifyOTP(t *testing.T) {
	r, notifier, tokens := newAuthRouter(t)

	w := r.post(t, "/api/auth/send-otp", map[string]any{"email": "asha@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, notifier.lastCode, 6)

	w = r.post(t, "/api/auth/verify-otp", map[string]any{
		"email": "asha@example.com",
		"code":  notifier.lastCode,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	token, ok := body["token"].(string)
	require.True(t, ok)

	email, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", email)
}

func TestAuthVerifyWrongCode(t *testing.T) {
	r, notifier, _ := newAuthRouter(t)

	w := r.post(t, "/api/auth/send-otp", map[string]any{"email": "asha@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	wrong := "000000"
	if wrong == notifier.lastCode {
		wrong = "000001"
	}

	w = r.post(t, "/api/auth/verify-otp", map[string]any{
		"email": "asha@example.com",
		"code":  wrong,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthSendOTPInvalidEmail(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := r.post(t, "/api/auth/send-otp", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthVerifyOTPUnknownEmail(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := r.post(t, "/api/auth/verify-otp", map[string]any{
		"email": "ghost@example.com",
		"code":  "123456",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
