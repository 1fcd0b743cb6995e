package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type contextKey int

const identityKey contextKey = iota

// GuestTokenHeader carries the guest session token for carts owned by anonymous shoppers.
const GuestTokenHeader = "X-Guest-Token"

// Identity is the caller resolved from the request.
type Identity struct {
	UserID     string
	GuestToken string
}

// Owner returns the cart owner for the caller. A signed-in user owns the cart even when a stale guest token is sent.
func (i Identity) Owner() model.CartOwner {
	if i.UserID != "" {
		return model.CartOwner{UserID: i.UserID}
	}
	return model.CartOwner{GuestToken: i.GuestToken}
}

// IdentityFrom returns the identity attached by Authenticate.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticate resolves the caller from an HS256 bearer token (sub = user id) or the guest token header.
// A request carrying neither continues anonymously; a bearer token that fails verification is rejected.
func Authenticate(secret []byte, logger zerolog.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{GuestToken: strings.TrimSpace(r.Header.Get(GuestTokenHeader))}

			if header := r.Header.Get("Authorization"); header != "" {
				raw, ok := strings.CutPrefix(header, "Bearer ")
				if !ok || len(secret) == 0 {
					unauthorised(w, r, "Invalid authorization header")
					return
				}

				var claims jwt.RegisteredClaims
				if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, keyFunc); err != nil {
					logger.Warn().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
					message := "Invalid token"
					if errors.Is(err, jwt.ErrTokenExpired) {
						message = "Token expired"
					}
					unauthorised(w, r, message)
					return
				}
				if claims.Subject == "" {
					unauthorised(w, r, "Token has no subject")
					return
				}
				id.UserID = claims.Subject
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireUser rejects requests without a signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()).UserID == "" {
			unauthorised(w, r, "Sign in to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner rejects requests that identify neither a user nor a guest cart.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFrom(r.Context())
		if id.UserID == "" && id.GuestToken == "" {
			unauthorised(w, r, "Sign in or start a guest session")
			return
		}
		next.ServeHTTP(w, r)
	})
}
