/*
auth.go - JWT authentication and role-based authorization

PURPOSE:
  Issues and validates the bearer tokens protecting the API. Credentials
  are checked against the user store (bcrypt hashes); a signed HS256
  token carries the user's roles so authorization never needs a second
  database read.

MIDDLEWARE:
  RequireAuth   rejects requests without a valid Bearer token (401)
  RequireRole   rejects authenticated users lacking every listed role (403)

TOKEN LIFETIME:
  Defaults to 8 hours. Back-office sessions are interactive; there is no
  refresh flow, users simply log in again.

SEE ALSO:
  - club/types.go: User, roles, password hashing
  - server.go: which routes sit behind which middleware
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/clubworks/club-backoffice/club"
)

const defaultTokenTTL = 8 * time.Hour

var errInvalidCredentials = errors.New("invalid email or password")

// Claims is the JWT payload for an authenticated back-office user.
type Claims struct {
	jwt.StandardClaims
	Email   string   `json:"email"`
	IsAdmin bool     `json:"is_admin"`
	Roles   []string `json:"roles"`
}

// Auth authenticates users and guards routes.
type Auth struct {
	Secret   []byte
	Issuer   string
	TokenTTL time.Duration

	store club.Store
}

// NewAuth creates an Auth backed by the given user store.
func NewAuth(secret []byte, store club.Store) *Auth {
	return &Auth{
		Secret:   secret,
		Issuer:   "club-backoffice",
		TokenTTL: defaultTokenTTL,
		store:    store,
	}
}

// Authenticate verifies credentials and returns the matching user.
// Inactive accounts and unknown emails fail identically so the response
// does not leak which emails are registered.
func (a *Auth) Authenticate(ctx context.Context, email, password string) (*club.User, error) {
	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, errInvalidCredentials
	}
	if err := user.CheckPassword(password); err != nil {
		return nil, errInvalidCredentials
	}
	return user, nil
}

// GenerateToken signs a token carrying the user's identity and roles.
func (a *Auth) GenerateToken(user *club.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.Issuer,
			Subject:   strconv.FormatInt(int64(user.ID), 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.TokenTTL).Unix(),
		},
		Email:   user.Email,
		IsAdmin: user.IsAdmin(),
		Roles:   user.Roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// ParseToken validates a signed token string and returns its claims.
func (a *Auth) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type contextKey string

const claimsKey contextKey = "authClaims"

// RequireAuth rejects requests without a valid Bearer token.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := a.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated users that carry none of the roles.
// Must sit inside RequireAuth.
func (a *Auth) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			for _, role := range roles {
				for _, have := range claims.Roles {
					if role == have {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient permissions", nil)
		})
	}
}

// ClaimsFromContext returns the claims placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
