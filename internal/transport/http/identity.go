package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller as asserted by the external auth provider.
type Identity struct {
	ID     string
	Name   string
	Avatar string
}

// IdentityFrom returns the caller attached by IdentityMiddleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.ID != ""
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityMiddleware verifies HS256 bearer tokens (claims sub, name, picture). Browsers cannot
// set headers on websocket upgrades, so the token may also come as ?access_token=.
// With an empty secret it trusts X-User-ID / X-User-Name / X-User-Avatar or ?userId=&name=,
// which is only meant for local development.
func IdentityMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  Identity
				msg string
			)
			if jwtSecret != "" {
				id, msg = identityFromToken(r, jwtSecret)
			} else {
				id, msg = identityFromHeaders(r)
			}
			if msg != "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: msg})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func identityFromToken(r *http.Request, secret string) (Identity, string) {
	tokenString := r.URL.Query().Get("access_token")
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return Identity{}, "invalid authorization header format"
		}
		tokenString = parts[1]
	}
	if tokenString == "" {
		return Identity{}, "missing authorization header"
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, "invalid or expired token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, "invalid token claims"
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, "invalid subject in token"
	}
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	if name == "" {
		name = sub
	}
	return Identity{ID: sub, Name: name, Avatar: picture}, ""
}

func identityFromHeaders(r *http.Request) (Identity, string) {
	q := r.URL.Query()
	id := Identity{
		ID:     firstNonEmpty(r.Header.Get("X-User-ID"), q.Get("userId")),
		Name:   firstNonEmpty(r.Header.Get("X-User-Name"), q.Get("name")),
		Avatar: firstNonEmpty(r.Header.Get("X-User-Avatar"), q.Get("avatar")),
	}
	if id.ID == "" {
		return Identity{}, "missing user identity"
	}
	if id.Name == "" {
		id.Name = id.ID
	}
	return id, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
