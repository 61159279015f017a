package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	salt    = []byte("shule.core.user.token_gen")
	nowFunc = time.Now // mockable

	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes the given User ID.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(usr.ID, 10)))
}

func decodeUID(uid string) (int64, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(idBytes), 10, 64)
}

// makeToken generates a password reset token for the given User.
// The token is invalidated as soon as the password or last login changes.
func makeToken(usr User, secret string) string {
	return makeTokenWithTimestamp(usr, numDaysSince2001(nowFunc()), secret)
}

// verifyToken checks that a password reset token for the given User is valid and not older than `timeout`.
func verifyToken(usr User, token, secret string, timeout time.Duration) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := b32.DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	if subtle.ConstantTimeCompare([]byte(makeTokenWithTimestamp(usr, ts, secret)), []byte(token)) == 0 {
		return errInvalidToken
	}

	if (numDaysSince2001(nowFunc()) - ts) > int(timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func makeTokenWithTimestamp(usr User, ts int, secret string) string {
	tsB32 := b32.EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, sign(hashValue(usr, ts), secret))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(val []byte, secret string) string {
	key := sha256.Sum256(append(salt, secret...))
	h := hmac.New(sha256.New, key[:])
	_, _ = h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(strconv.FormatInt(usr.ID, 10))
	val.Write(usr.PasswordHash)
	if usr.LastLogin != nil {
		val.WriteString(usr.LastLogin.UTC().Truncate(time.Second).String())
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
