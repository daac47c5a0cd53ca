package v1

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faaxis/internal/app/middleware"
	"faaxis/internal/testutil"
)

// adminSession runs the full step-up flow and returns the admin session cookie.
func (e *testEnv) adminSession(t *testing.T) *http.Cookie {
	t.Helper()
	otpKey := e.startAdminLogin(t)
	code := e.lastAdminCode(t)

	rec := e.do(t, http.MethodPost, "/api/admin-auth/verify-code", map[string]string{"otpKey": otpKey, "code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return cookieNamed(t, rec, "faaxis_sid")
}

func (e *testEnv) seedAdmin(t *testing.T) {
	t.Helper()
	e.registerSession(t, "admin@example.com", "adminPassword1")
	e.users.SetAdmin(1, true)
}

func (e *testEnv) startAdminLogin(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/admin-auth/verify", map[string]string{"email": "admin@example.com", "password": "adminPassword1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	otpKey, _ := decode(t, rec)["otpKey"].(string)
	require.NotEmpty(t, otpKey)
	return otpKey
}

func (e *testEnv) lastAdminCode(t *testing.T) string {
	t.Helper()
	mail, ok := e.mailer.Last("admin_code")
	require.True(t, ok)
	return mail.Value
}

func TestAdminVerify_CodeNeverInResponse(t *testing.T) {
	e := newTestEnv(t)
	e.seedAdmin(t)

	rec := e.do(t, http.MethodPost, "/api/admin-auth/verify", map[string]string{"email": "admin@example.com", "password": "adminPassword1"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, rec.Body.String(), e.lastAdminCode(t))
	assert.NotContains(t, decode(t, rec), "code")
}

func TestAdminVerify_GenericFailure(t *testing.T) {
	e := newTestEnv(t)
	e.seedAdmin(t)
	e.registerSession(t, "user@example.com", "Str0ngP@ss1")

	for _, body := range []map[string]string{
		{"email": "admin@example.com", "password": "wrongPassword"},
		{"email": "ghost@example.com", "password": "adminPassword1"},
		{"email": "user@example.com", "password": "Str0ngP@ss1"},
	} {
		rec := e.do(t, http.MethodPost, "/api/admin-auth/verify", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", decode(t, rec)["message"])
	}
}

func TestAdminVerifyCode_LockoutOnFifthAttempt(t *testing.T) {
	e := newTestEnv(t)
	e.seedAdmin(t)

	otpKey := e.startAdminLogin(t)
	code := e.lastAdminCode(t)
	bad := "000000"
	if code == bad {
		bad = "111111"
	}

	for i := 1; i <= 4; i++ {
		rec := e.do(t, http.MethodPost, "/api/admin-auth/verify-code", map[string]string{"otpKey": otpKey, "code": bad})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_code", decode(t, rec)["error"], "attempt %d", i)
	}

	rec := e.do(t, http.MethodPost, "/api/admin-auth/verify-code", map[string]string{"otpKey": otpKey, "code": bad})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "too_many_attempts", decode(t, rec)["error"])

	rec = e.do(t, http.MethodPost, "/api/admin-auth/verify-code", map[string]string{"otpKey": otpKey, "code": code})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminVerifyCode_Validation(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/admin-auth/verify-code", map[string]string{"otpKey": "not-a-uuid", "code": "123456"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin-auth/verify-code", map[string]string{"otpKey": "550e8400-e29b-41d4-a716-446655440000", "code": "12ab56"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes_RequireAdminSession(t *testing.T) {
	e := newTestEnv(t)
	e.seedAdmin(t)

	rec := e.do(t, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A plain password login is not enough, even for an admin account.
	rec = e.do(t, http.MethodPost, "/api/login", map[string]string{"username": "admin@example.com", "password": "adminPassword1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/admin/users", nil, withCookie(cookieNamed(t, rec, "faaxis_sid")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := e.adminSession(t)
	rec = e.do(t, http.MethodGet, "/api/admin/users", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode(t, rec)["users"].([]interface{})
	assert.Len(t, users, 1)
}

func TestAdminDeleteUser(t *testing.T) {
	e := newTestEnv(t)
	e.seedAdmin(t)
	victim := e.registerSession(t, "user@example.com", "Str0ngP@ss1")
	admin := e.adminSession(t)

	rec := e.do(t, http.MethodDelete, "/api/admin/users/abc", nil, withCookie(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/admin/users/1", nil, withCookie(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/admin/users/2", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/user", nil, withCookie(victim))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", 2), nil, withCookie(admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTOTP_OwnAccountOnly(t *testing.T) {
	e := newTestEnv(t)
	alice := e.registerSession(t, "alice@example.com", "Str0ngP@ss1")
	e.registerSession(t, "bob@example.com", "Str0ngP@ss1")

	rec := e.do(t, http.MethodPost, "/api/generate-totp-secret", map[string]string{"username": "bob@example.com"}, withCookie(alice))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/generate-totp-secret", map[string]string{"username": "alice@example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTOTP_SetupAndVerify(t *testing.T) {
	e := newTestEnv(t)
	alice := e.registerSession(t, "alice@example.com", "Str0ngP@ss1")

	rec := e.do(t, http.MethodPost, "/api/generate-totp-secret", map[string]string{"username": "alice@example.com"}, withCookie(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	secret := body["secret"].(string)
	assert.Contains(t, body["qrCodeUrl"], "otpauth://totp/")

	code := testutil.TOTPCode(t, secret, time.Now())

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec = e.do(t, http.MethodPost, "/api/verify-totp", map[string]string{"username": "alice@example.com", "code": wrong}, withCookie(alice))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/verify-totp", map[string]string{"username": "alice@example.com", "code": code}, withCookie(alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["verified"])

	rec = e.do(t, http.MethodPost, "/api/disable-totp", map[string]string{"username": "alice@example.com"}, withCookie(alice))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTOTP_AdminAccountNeedsStepUpSession(t *testing.T) {
	e := newTestEnv(t)
	e.seedAdmin(t)

	rec := e.do(t, http.MethodPost, "/api/login", map[string]string{"username": "admin@example.com", "password": "adminPassword1"})
	require.Equal(t, http.StatusOK, rec.Code)
	passwordOnly := cookieNamed(t, rec, "faaxis_sid")

	rec = e.do(t, http.MethodPost, "/api/jwt/login", map[string]string{"username": "admin@example.com", "password": "adminPassword1"})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	for _, path := range []string{"/api/generate-totp-secret", "/api/disable-totp"} {
		rec = e.do(t, http.MethodPost, path, map[string]string{"username": "admin@example.com"}, withCookie(passwordOnly))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec = e.do(t, http.MethodPost, path, map[string]string{"username": "admin@example.com"}, withBearer(token))
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
	rec = e.do(t, http.MethodPost, "/api/verify-totp", map[string]string{"username": "admin@example.com", "code": "123456"}, withCookie(passwordOnly))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := e.adminSession(t)
	rec = e.do(t, http.MethodPost, "/api/generate-totp-secret", map[string]string{"username": "admin@example.com"}, withCookie(admin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyTOTP_RateLimited(t *testing.T) {
	e := newRateLimitedTestEnv(t, middleware.RateLimitByIP(3, time.Minute))
	alice := e.registerSession(t, "alice@example.com", "Str0ngP@ss1")

	rec := e.do(t, http.MethodPost, "/api/generate-totp-secret", map[string]string{"username": "alice@example.com"}, withCookie(alice))
	require.Equal(t, http.StatusOK, rec.Code)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec = e.do(t, http.MethodPost, "/api/verify-totp", map[string]string{"username": "alice@example.com", "code": "000000"}, withCookie(alice))
		codes = append(codes, rec.Code)
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
