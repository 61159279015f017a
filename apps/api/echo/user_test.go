package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	testutil "github.com/trezcool/shule/tests"
)

func Test_authApi_login(t *testing.T) {
	srv, env := setup(t)
	usr := env.CreateAdmin(t, "admin@shule.test")
	naughty := env.CreateUser(t, "N", "Dog", "ndog@shule.test", user.RoleTeacher)
	_, err := env.UserSvc.Update(context.Background(), naughty.ID, user.UpdateUser{IsActive: core.BoolPtr(false)})
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "wrong password", method: http.MethodPost, path: "/api/auth/login",
			body:     marchallObj(t, LoginRequest{Email: usr.Email, Password: "wrong"}),
			wantCode: http.StatusUnauthorized, wantData: errResponse(t, http.StatusUnauthorized, "invalid credentials"),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/api/auth/login",
			body:     marchallObj(t, LoginRequest{Email: "nobody@shule.test", Password: testutil.Password}),
			wantCode: http.StatusUnauthorized, wantData: errResponse(t, http.StatusUnauthorized, "invalid credentials"),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/api/auth/login",
			body:     marchallObj(t, LoginRequest{Email: naughty.Email, Password: testutil.Password}),
			wantCode: http.StatusForbidden, wantData: errResponse(t, http.StatusForbidden, "account deactivated"),
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/api/auth/login",
			body: []byte(`{}`), wantCode: http.StatusUnprocessableEntity,
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/api/auth/login",
			body: []byte(`{"email":`), wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, srv, tests)

	t.Run("success", func(t *testing.T) {
		var data LoginResponse
		code, res := do(t, srv, http.MethodPost, "/api/auth/login", "",
			LoginRequest{Email: " ADMIN@shule.test ", Password: testutil.Password}, &data)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)
		assert.Equal(t, usr.ID, data.User.ID)
		assert.NotNil(t, data.User.LastLogin)

		claims, err := srv.auth.parse(data.Token)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, claims.UserID)
		assert.Equal(t, user.RoleAdmin, claims.Role)
		assert.Equal(t, claims.IssuedAt.Unix(), claims.OrigIssuedAt)
	})
}

func Test_authApi_loginRateLimit(t *testing.T) {
	srv, env := setup(t, func(conf *core.Config) { conf.Server.LoginRateLimit = 3 })
	usr := env.CreateAdmin(t, "admin@shule.test")
	body := marchallObj(t, LoginRequest{Email: usr.Email, Password: "wrong"})

	for i := 0; i < 3; i++ {
		req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}
	tt := httpTest{
		wantCode: http.StatusTooManyRequests,
		wantData: errResponse(t, http.StatusTooManyRequests, "rate limit exceeded"),
	}
	req, rec := newRequest(http.MethodPost, "/api/auth/login", body)
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func Test_authApi_me(t *testing.T) {
	srv, env := setup(t)
	usr := env.CreateUser(t, "Tina", "Teach", "tina@shule.test", user.RoleTeacher)

	expired := srv.auth.claims(usr)
	expired.ExpiresAt.Time = time.Now().Add(-time.Minute)
	expiredToken, err := srv.auth.generateToken(expired)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "no token", path: "/api/auth/me",
			wantCode: http.StatusUnauthorized, wantData: errResponse(t, http.StatusUnauthorized, "missing or malformed jwt"),
		},
		{
			name: "garbage token", path: "/api/auth/me", token: "not-a-jwt",
			wantCode: http.StatusUnauthorized, wantData: errResponse(t, http.StatusUnauthorized, "invalid or expired jwt"),
		},
		{
			name: "expired token", path: "/api/auth/me", token: expiredToken,
			wantCode: http.StatusUnauthorized, wantData: errResponse(t, http.StatusUnauthorized, "invalid or expired jwt"),
		},
		{
			name: "valid token", path: "/api/auth/me", token: getToken(t, srv, usr),
			wantCode: http.StatusOK, wantData: okResponse(t, "Token is valid", usr),
		},
	}
	runHTTPTests(t, srv, tests)
}

func Test_authApi_refreshToken(t *testing.T) {
	srv, env := setup(t)
	usr := env.CreateUser(t, "Tina", "Teach", "tina@shule.test", user.RoleTeacher)
	now := time.Now()

	t.Run("within refresh window", func(t *testing.T) {
		origIat := now.Add(-time.Hour).Unix()
		token, err := srv.auth.token(usr, origIat)
		require.NoError(t, err)

		var data TokenResponse
		code, _ := do(t, srv, http.MethodPost, "/api/auth/refresh", token, nil, &data)
		require.Equal(t, http.StatusOK, code)
		claims, err := srv.auth.parse(data.Token)
		require.NoError(t, err)
		assert.Equal(t, origIat, claims.OrigIssuedAt)
	})

	t.Run("refresh window expired", func(t *testing.T) {
		token, err := srv.auth.token(usr, now.Add(-5*time.Hour).Unix())
		require.NoError(t, err)
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: errResponse(t, http.StatusForbidden, "refresh has expired"),
		}
		req, rec := newAuthRequest(http.MethodPost, "/api/auth/refresh", token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_authApi_changePassword(t *testing.T) {
	srv, env := setup(t)
	usr := env.CreateUser(t, "Tina", "Teach", "tina@shule.test", user.RoleTeacher)
	token := getToken(t, srv, usr)
	newPwd := "N3w-Secret!9"

	code, res := do(t, srv, http.MethodPost, "/api/auth/change-password", token, user.ChangePassword{
		OldPassword: "wrong", Password: newPwd, PasswordConfirm: newPwd,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]string{"old_password": "incorrect password"}, res.Errors)

	code, _ = do(t, srv, http.MethodPost, "/api/auth/change-password", token, user.ChangePassword{
		OldPassword: testutil.Password, Password: newPwd, PasswordConfirm: newPwd,
	}, nil)
	require.Equal(t, http.StatusOK, code)

	_, err := env.UserSvc.Authenticate(context.Background(), usr.Email, newPwd)
	assert.NoError(t, err)
}

func Test_authApi_passwordReset(t *testing.T) {
	srv, env := setup(t)
	usr := env.CreateUser(t, "Tina", "Teach", "tina@shule.test", user.RoleTeacher)
	msg := okResponse(t, passwordResetRequested, nil)

	tests := []httpTest{
		{
			name: "unknown email", method: http.MethodPost, path: "/api/auth/password-reset",
			body: marchallObj(t, PasswordResetRequest{Email: "nobody@shule.test"}), wantCode: http.StatusOK, wantData: msg,
		},
		{
			name: "known email", method: http.MethodPost, path: "/api/auth/password-reset",
			body: marchallObj(t, PasswordResetRequest{Email: usr.Email}), wantCode: http.StatusOK, wantData: msg,
		},
	}
	runHTTPTests(t, srv, tests)

	sent, found := emailsvc.LastSentMessage()
	require.True(t, found)
	assert.Equal(t, usr.Email, sent.To[0].Address)
	assert.Equal(t, "password_reset", sent.TemplateName)

	tmplData := sent.TemplateData.(map[string]interface{})
	rp := user.ResetUserPassword{
		UID:             tmplData["UID"].(string),
		Token:           tmplData["Token"].(string),
		Password:        "R3set-Secret!7",
		PasswordConfirm: "R3set-Secret!7",
	}
	code, _ := do(t, srv, http.MethodPost, "/api/auth/password-reset-confirm", "", rp, nil)
	require.Equal(t, http.StatusOK, code)

	// a token is single use: the password hash changed
	code, res := do(t, srv, http.MethodPost, "/api/auth/password-reset-confirm", "", rp, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "the password reset link is invalid or has expired", res.Message)
}

func Test_authApi_users(t *testing.T) {
	srv, env := setup(t)
	admin := env.CreateAdmin(t, "admin@shule.test")
	teacher := env.CreateUser(t, "Tina", "Teach", "tina@shule.test", user.RoleTeacher)
	parent := env.CreateUser(t, "Pat", "Parent", "pat@shule.test", user.RoleParent)
	adminToken := getToken(t, srv, admin)
	forbidden := errResponse(t, http.StatusForbidden, "permission denied")

	tests := []httpTest{
		{
			name: "auth required", path: "/api/auth/users",
			wantCode: http.StatusUnauthorized, wantData: errResponse(t, http.StatusUnauthorized, "missing or malformed jwt"),
		},
		{name: "admin required", path: "/api/auth/users", token: getToken(t, srv, teacher), wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "register requires admin", method: http.MethodPost, path: "/api/auth/register", token: getToken(t, srv, parent),
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "filter by role", path: "/api/auth/users?role=teacher", token: adminToken, wantCode: http.StatusOK,
			wantData: okResponse(t, "Users retrieved successfully", []user.User{teacher}, core.Pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1}),
		},
		{
			name: "invalid id", path: "/api/auth/users/abc", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: errResponse(t, http.StatusBadRequest, "invalid id"),
		},
		{
			name: "unknown user", path: "/api/auth/users/999", token: adminToken,
			wantCode: http.StatusNotFound, wantData: errResponse(t, http.StatusNotFound, "user not found"),
		},
		{
			name: "cannot delete self", method: http.MethodDelete, path: "/api/auth/users/" + itoa(admin.ID), token: adminToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "empty update", method: http.MethodPut, path: "/api/auth/users/" + itoa(teacher.ID), token: adminToken,
			body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: errResponse(t, http.StatusBadRequest, "no fields to update"),
		},
	}
	runHTTPTests(t, srv, tests)

	t.Run("register", func(t *testing.T) {
		nu := user.NewUser{
			FirstName: "Ken", LastName: "Kid", Email: "ken@shule.test", Role: user.RoleStudent,
			Password: testutil.Password, PasswordConfirm: testutil.Password,
		}
		var usr user.User
		code, _ := do(t, srv, http.MethodPost, "/api/auth/register", adminToken, nu, &usr)
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, "ken@shule.test", usr.Email)
		assert.True(t, usr.IsActive)

		code, res := do(t, srv, http.MethodPost, "/api/auth/register", adminToken, nu, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "a user with this email already exists", res.Message)
	})
}
