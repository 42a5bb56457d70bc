package middleware

import (
	"net/http"
	"strings"

	adminAuth "github.com/MrEthical07/adminAuth"
	"github.com/MrEthical07/adminAuth/jwt"
)

// FromBearer resolves requests from an access token in the Authorization header,
// for API routes called by a dashboard running elsewhere. Tokens that fail
// verification, or that carry an unknown role, resolve to no session.
func FromBearer(tokens *jwt.Manager) Resolver {
	return func(r *http.Request) *adminAuth.SessionUser {
		if tokens == nil {
			return nil
		}
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			return nil
		}
		claims, err := tokens.ParseAccess(raw)
		if err != nil {
			return nil
		}
		role, err := adminAuth.ParseRole(claims.Role)
		if err != nil {
			return nil
		}
		return &adminAuth.SessionUser{ID: claims.UID, Name: claims.Name, Email: claims.Email, Role: role}
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
