package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeVerifyToken(t *testing.T) {
	secret := "secret"
	timeout := 3 * 24 * time.Hour

	now := time.Now()
	usr := User{
		ID:        1,
		FirstName: "T",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: &now,
	}
	_ = usr.SetPassword("pwd")

	validToken := makeToken(usr, secret)

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := makeToken(usr, secret)
	nowFunc = time.Now // reset

	changedPwd := usr
	_ = changedPwd.SetPassword("new-pwd")

	tests := []struct {
		name    string
		usr     User
		token   string
		secret  string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "wrong secret", usr: usr, token: validToken, secret: "other", wantErr: errInvalidToken},
		{name: "password changed", usr: changedPwd, token: validToken, wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec := secret
			if tt.secret != "" {
				sec = tt.secret
			}
			assert.Equal(t, tt.wantErr, verifyToken(tt.usr, tt.token, sec, timeout))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	uid := EncodeUID(User{ID: 42})
	id, err := decodeUID(uid)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = decodeUID("%%%")
	assert.Error(t, err)
}
