package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	adminAuth "github.com/MrEthical07/adminAuth"
	"github.com/MrEthical07/adminAuth/jwt"
	"github.com/MrEthical07/adminAuth/storage"
	"github.com/stretchr/testify/require"
)

type fakeAccount struct {
	profile
	secret string
}

// fakeService is an in-memory stand-in for the hosted auth service.
type fakeService struct {
	tokens *jwt.Manager

	mu       sync.Mutex
	accounts []*fakeAccount
	nextID   int
	down     bool
	revoked  map[string]bool
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("remote-test-secret-remote-test-secret"),
	})
	require.NoError(t, err)

	f := &fakeService{tokens: tokens, revoked: map[string]bool{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) seed(name, email, secret, role string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("u-%d", f.nextID)
	f.accounts = append(f.accounts, &fakeAccount{profile: profile{ID: id, Name: name, Email: email, Role: role}, secret: secret})
	return id
}

func (f *fakeService) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeService) byEmail(email string) *fakeAccount {
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, email) {
			return a
		}
	}
	return nil
}

func (f *fakeService) byID(id string) *fakeAccount {
	for _, a := range f.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *fakeService) caller(r *http.Request) *fakeAccount {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if f.revoked[raw] {
		return nil
	}
	claims, err := f.tokens.ParseAccess(raw)
	if err != nil {
		return nil
	}
	return f.byID(claims.UID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/signup":
		var in struct {
			Email    string       `json:"email"`
			Password string       `json:"password"`
			Data     userMetadata `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if f.byEmail(in.Email) != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"msg": "User already registered"})
			return
		}
		f.nextID++
		a := &fakeAccount{profile: profile{ID: fmt.Sprintf("u-%d", f.nextID), Name: in.Data.Name, Email: in.Email, Role: "pendente"}, secret: in.Password}
		f.accounts = append(f.accounts, a)
		writeJSON(w, http.StatusOK, authUser{ID: a.ID, Email: a.Email, Metadata: userMetadata{Name: a.Name}})

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/token":
		if r.URL.Query().Get("grant_type") != "password" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "unsupported grant"})
			return
		}
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		a := f.byEmail(in.Email)
		if a == nil || a.secret != in.Password {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "Invalid login credentials"})
			return
		}
		token, err := f.tokens.CreateAccess(a.ID, a.Name, a.Email, a.Role)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", ExpiresIn: 3600, User: authUser{ID: a.ID, Email: a.Email}})

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
		f.revoked[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")] = true
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut && r.URL.Path == "/auth/v1/user":
		a := f.caller(r)
		if a == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		var in struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		a.secret = in.Password
		writeJSON(w, http.StatusOK, authUser{ID: a.ID, Email: a.Email})

	case r.URL.Path == "/rest/v1/profiles":
		f.profiles(w, r)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route"})
	}
}

func (f *fakeService) profiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var rows []profile
	var matched []*fakeAccount
	for _, a := range f.accounts {
		if v := q.Get("id"); v != "" && "eq."+a.ID != v {
			continue
		}
		if v := q.Get("email"); v != "" && !strings.EqualFold("ilike."+a.Email, v) {
			continue
		}
		matched = append(matched, a)
	}

	if r.Method == http.MethodGet {
		if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") && f.revoked[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")] {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT revoked"})
			return
		}
		for _, a := range matched {
			rows = append(rows, a.profile)
		}
		writeJSON(w, http.StatusOK, append([]profile{}, rows...))
		return
	}

	if r.Method != http.MethodPatch || r.Header.Get("Prefer") != "return=representation" {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "unexpected request"})
		return
	}
	caller := f.caller(r)
	if caller == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}

	var in map[string]string
	_ = json.NewDecoder(r.Body).Decode(&in)
	if _, ok := in["role"]; ok && caller.Role != "admin" {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "row level security"})
		return
	}
	if email, ok := in["email"]; ok {
		if other := f.byEmail(email); other != nil && (len(matched) == 0 || other.ID != matched[0].ID) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "duplicate key value"})
			return
		}
	}
	for _, a := range matched {
		if v, ok := in["role"]; ok {
			a.Role = v
		}
		if v, ok := in["nome"]; ok {
			a.Name = v
		}
		if v, ok := in["email"]; ok {
			a.Email = v
		}
		rows = append(rows, a.profile)
	}
	writeJSON(w, http.StatusOK, append([]profile{}, rows...))
}

func newTestClient(t *testing.T, srv *httptest.Server, f *fakeService) (*Client, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	c, err := New(Config{
		BaseURL:    srv.URL,
		APIKey:     "anon-key",
		HTTPClient: srv.Client(),
		Tokens:     f.tokens,
		Store:      store,
	})
	require.NoError(t, err)
	return c, store
}

// signIn signs in and commits the grant, as the session backend does after a
// login that won.
func signIn(t *testing.T, c *Client, email, secret string) adminAuth.RemoteIdentity {
	t.Helper()
	id, err := c.SignIn(context.Background(), email, secret)
	require.NoError(t, err)
	require.NoError(t, c.CommitSession(context.Background(), id.UserID))
	return id
}

// holdingTransport parks requests to tokenPath until release is closed.
type holdingTransport struct {
	next    http.RoundTripper
	entered chan struct{}
	release chan struct{}
}

func newHoldingTransport(next http.RoundTripper) *holdingTransport {
	return &holdingTransport{next: next, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (h *holdingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.URL.Path == "/auth/v1/token" {
		select {
		case h.entered <- struct{}{}:
		default:
		}
		<-h.release
	}
	return h.next.RoundTrip(r)
}
