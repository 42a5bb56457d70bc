package middleware

import (
	"context"
	"net/http"

	adminAuth "github.com/MrEthical07/adminAuth"
)

type sessionUserContextKey struct{}

// UserFromContext returns the session user attached by Navigator or a guard.
func UserFromContext(ctx context.Context) (*adminAuth.SessionUser, bool) {
	u, ok := ctx.Value(sessionUserContextKey{}).(*adminAuth.SessionUser)
	return u, ok && u != nil
}

// Resolver finds the session user for a request, or nil when there is none.
type Resolver func(r *http.Request) *adminAuth.SessionUser

// SessionSource is the part of *adminAuth.Service a Resolver needs.
type SessionSource interface {
	CurrentUser() *adminAuth.SessionUser
}

// FromService resolves every request to the Service's current session.
func FromService(src SessionSource) Resolver {
	return func(*http.Request) *adminAuth.SessionUser {
		if src == nil {
			return nil
		}
		return src.CurrentUser()
	}
}

// Navigator redirects each request to where its session belongs: logged-out users to
// the login page, pending users to the pending page, and approved users away from
// those pages. Requests already at their destination pass through, so redirects
// never loop.
func Navigator(resolve Resolver, routes adminAuth.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := resolveUser(resolve, r)

			if target, ok := adminAuth.NextPath(adminAuth.Gate(user), r.URL.Path, routes); ok {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, withUser(r, user))
		})
	}
}

// RequireAdmin rejects requests whose session is not an administrator with 403.
func RequireAdmin(resolve Resolver) func(http.Handler) http.Handler {
	return guard(resolve, adminAuth.IsAdmin)
}

// RequirePermission rejects requests whose session may not open section perm.
func RequirePermission(resolve Resolver, perm string) func(http.Handler) http.Handler {
	return guard(resolve, func(u *adminAuth.SessionUser) bool {
		return adminAuth.Permits(u, perm)
	})
}

func guard(resolve Resolver, allow func(*adminAuth.SessionUser) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := resolveUser(resolve, r)
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !allow(user) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, withUser(r, user))
		})
	}
}

func resolveUser(resolve Resolver, r *http.Request) *adminAuth.SessionUser {
	if u, ok := UserFromContext(r.Context()); ok {
		return u
	}
	if resolve == nil {
		return nil
	}
	return resolve(r)
}

func withUser(r *http.Request, u *adminAuth.SessionUser) *http.Request {
	if u == nil {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), sessionUserContextKey{}, u))
}
