package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig selects the accepted bearer credentials. A request passes when
// its token equals one of Tokens or is an HS256 JWT signed with JWTSecret.
// With neither configured every request passes.
type AuthConfig struct {
	JWTSecret string
	Tokens    []string
}

func (c AuthConfig) open() bool {
	return c.JWTSecret == "" && len(c.Tokens) == 0
}

func (c AuthConfig) accepts(token string) bool {
	for _, t := range c.Tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	if c.JWTSecret != "" {
		_, err := authenticateJWT(token, c.JWTSecret)
		return err == nil
	}
	return false
}

func authenticateJWT(token, secret string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim required")
	}
	return claims.Subject, nil
}

// MintToken signs a credential for subject that the server accepts when
// configured with the same secret. A zero ttl never expires.
func MintToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if cfg.open() || req.URL.Path == "/health" {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := bearerToken(req.Header.Get("Authorization"))
			if !ok || !cfg.accepts(token) {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "Bad credentials"))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
