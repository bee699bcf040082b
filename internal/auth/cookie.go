// Package auth issues and decodes the signed identity tokens used by the
// gateway: the end-user cookie and the admin API bearer token.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserCookieName carries the end-user identity, distinct from the player's
// token query parameter.
const UserCookieName = "boxhub_user"

// claims is the JWT payload for both user cookies and admin tokens.
type claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// IssueUserCookie signs a user identity cookie value.
func IssueUserCookie(secret, username string, expiry time.Duration) (string, error) {
	return sign(secret, username, false, expiry)
}

// IssueAdminToken signs an admin API bearer token.
func IssueAdminToken(secret, username string, expiry time.Duration) (string, error) {
	return sign(secret, username, true, expiry)
}

func sign(secret, username string, admin bool, expiry time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("auth: empty signing secret")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	})
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("auth: sign token: %w", errSign)
	}
	return signed, nil
}

// decode verifies a token string and returns its claims.
func decode(secret, raw string) (*claims, bool) {
	if strings.TrimSpace(raw) == "" || strings.TrimSpace(secret) == "" {
		return nil, false
	}
	parsed, errParse := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !parsed.Valid {
		return nil, false
	}
	payload, ok := parsed.Claims.(*claims)
	if !ok || payload.Username == "" {
		return nil, false
	}
	return payload, true
}

// CookieUsername decodes the end-user cookie on a request. It returns the
// empty string for missing, malformed or expired cookies; the gateway treats
// that as the anonymous user rather than an error.
func CookieUsername(c *gin.Context, secret string) string {
	raw, errCookie := c.Cookie(UserCookieName)
	if errCookie != nil {
		return ""
	}
	payload, ok := decode(secret, raw)
	if !ok {
		return ""
	}
	return payload.Username
}

// BearerAdmin decodes an admin bearer token from the Authorization header.
func BearerAdmin(c *gin.Context, secret string) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	payload, ok := decode(secret, raw)
	if !ok || !payload.Admin {
		return "", false
	}
	return payload.Username, true
}

// HashPassword hashes an admin password for storage.
func HashPassword(plain string) (string, error) {
	hashed, errHash := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("auth: hash password: %w", errHash)
	}
	return string(hashed), nil
}

// CheckPassword compares a stored hash against a login attempt.
func CheckPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
