package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/signhand/signing"
)

type contextKey int

const callerKey contextKey = iota

// SecretProvider supplies the HMAC key used to verify bearer tokens. It is
// consulted on every request so the key can be rotated without a restart.
type SecretProvider interface {
	Secret(ctx context.Context) ([]byte, error)
}

// StaticSecret is a SecretProvider holding a fixed key.
type StaticSecret []byte

func (s StaticSecret) Secret(context.Context) ([]byte, error) {
	if len(s) == 0 {
		return nil, errors.New("no token secret configured")
	}
	return s, nil
}

// EnvSecret reads the key from an environment variable on each call.
type EnvSecret string

func (e EnvSecret) Secret(context.Context) ([]byte, error) {
	v := os.Getenv(string(e))
	if v == "" {
		return nil, errors.New("environment variable " + string(e) + " is not set")
	}
	return []byte(v), nil
}

// ProfileStore receives the caller's profile from token claims.
type ProfileStore interface {
	Put(ctx context.Context, u signing.User) error
}

// Claims are the bearer token claims. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Caller is the authenticated user of a request.
type Caller struct {
	ID    string
	Name  string
	Email string
}

// AuthMiddleware validates an HS256 bearer token and stores the caller on the
// request context.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.parseToken(r.Context(), token)
		if err != nil {
			a.audit.logFailure(AuditAuthFailure, r, err.Error())
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		caller := Caller{ID: claims.Subject, Name: claims.Name, Email: claims.Email}
		if a.profiles != nil && (caller.Name != "" || caller.Email != "") {
			if err := a.profiles.Put(r.Context(), signing.User{ID: caller.ID, Name: caller.Name, Email: caller.Email}); err != nil {
				a.audit.logger.Warn("storing caller profile", "user_id", caller.ID, "error", err)
			}
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) parseToken(ctx context.Context, token string) (*Claims, error) {
	if a.secrets == nil {
		return nil, errors.New("no secret provider")
	}
	secret, err := a.secrets.Secret(ctx)
	if err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func callerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey).(Caller)
	return c
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
