// Package auth identifies the caller from a header set by a trusted
// reverse proxy (e.g. Cloudflare Access). There is no session state.
package auth

import (
	"context"
	"net/http"
	"strings"
)

const DefaultHeader = "Cf-Access-Authenticated-User-Email"

type User struct {
	Email string `json:"email"`
}

// Resolver maps a request to a user.
type Resolver struct {
	Header string
	// DevBypassEmail is used when the header is missing. Local use only.
	DevBypassEmail string
}

// Resolve returns the user named by the identity header, else the dev
// bypass user, else nil.
func (r Resolver) Resolve(req *http.Request) *User {
	header := r.Header
	if header == "" {
		header = DefaultHeader
	}
	if email := strings.TrimSpace(req.Header.Get(header)); email != "" {
		return &User{Email: email}
	}
	if r.DevBypassEmail != "" {
		return &User{Email: r.DevBypassEmail}
	}
	return nil
}

type ctxKey struct{}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}

// Middleware attaches the resolved user to every request and rejects
// requests under any of the protected path prefixes when nobody is signed
// in. Without prefixes, "/events" is protected.
func (r Resolver) Middleware(next http.Handler, protected ...string) http.Handler {
	if len(protected) == 0 {
		protected = []string{"/events"}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		user := r.Resolve(req)
		if user == nil {
			for _, prefix := range protected {
				if strings.HasPrefix(req.URL.Path, prefix) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, req)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithUser(req.Context(), user)))
	})
}
