package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	adminAuth "github.com/MrEthical07/adminAuth"
	"github.com/MrEthical07/adminAuth/jwt"
	"github.com/MrEthical07/adminAuth/storage"
)

// DefaultTokenKey is the storage key of the persisted access token.
const DefaultTokenKey = "pk_remote_access_token"

const (
	signUpPath   = "/auth/v1/signup"
	tokenPath    = "/auth/v1/token?grant_type=password"
	logoutPath   = "/auth/v1/logout"
	userPath     = "/auth/v1/user"
	profilesPath = "/rest/v1/profiles"

	maxBodyBytes = 1 << 20
)

// Config describes the remote service.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// Tokens verifies the access tokens the service issues.
	Tokens *jwt.Manager
	// Store persists the access token across restarts. TokenKey defaults to
	// DefaultTokenKey.
	Store    storage.Store
	TokenKey string
}

// Client talks to a REST/JSON auth service and its profiles table. It implements
// adminAuth.RemoteAuthClient and adminAuth.RemoteDirectory.
type Client struct {
	base     *url.URL
	apiKey   string
	http     *http.Client
	tokens   *jwt.Manager
	store    storage.Store
	tokenKey string

	mu        sync.Mutex
	listeners map[uint64]func(*adminAuth.RemoteIdentity)
	nextID    uint64
	// pending holds tokens granted by SignIn and not yet committed, by user id.
	pending map[string]string
}

var (
	_ adminAuth.RemoteAuthClient = (*Client)(nil)
	_ adminAuth.RemoteDirectory  = (*Client)(nil)
)

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("remote BaseURL required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse BaseURL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported BaseURL scheme %q", base.Scheme)
	}
	if cfg.Tokens == nil {
		return nil, errors.New("remote token verifier required")
	}
	if cfg.Store == nil {
		return nil, errors.New("remote token storage required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	key := cfg.TokenKey
	if key == "" {
		key = DefaultTokenKey
	}

	return &Client{
		base:      base,
		apiKey:    cfg.APIKey,
		http:      hc,
		tokens:    cfg.Tokens,
		store:     cfg.Store,
		tokenKey:  key,
		listeners: make(map[uint64]func(*adminAuth.RemoteIdentity)),
		pending:   make(map[string]string),
	}, nil
}

type userMetadata struct {
	Name string `json:"nome,omitempty"`
	Role string `json:"role,omitempty"`
}

type authUser struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Metadata userMetadata `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	User        authUser `json:"user"`
}

type profile struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (p profile) identity() adminAuth.RemoteIdentity {
	return adminAuth.RemoteIdentity{UserID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role}
}

// SignUp creates an account. New accounts are pending until promoted, so an empty
// role in the response is reported as pending.
func (c *Client) SignUp(ctx context.Context, name, email, secret string) (adminAuth.RemoteIdentity, error) {
	body := map[string]any{
		"email":    email,
		"password": secret,
		"data":     userMetadata{Name: name},
	}
	var u authUser
	if err := c.do(ctx, http.MethodPost, signUpPath, "", body, &u); err != nil {
		return adminAuth.RemoteIdentity{}, err
	}

	role := u.Metadata.Role
	if role == "" {
		role = string(adminAuth.RolePending)
	}
	if u.Metadata.Name != "" {
		name = u.Metadata.Name
	}
	return adminAuth.RemoteIdentity{UserID: u.ID, Name: name, Email: u.Email, Role: role}, nil
}

// SignIn exchanges credentials for an access token. The token is held in memory
// until CommitSession stores it; directory calls keep using the stored one.
func (c *Client) SignIn(ctx context.Context, email, secret string) (adminAuth.RemoteIdentity, error) {
	id, token, err := c.grant(ctx, email, secret)
	if err != nil {
		return adminAuth.RemoteIdentity{}, err
	}
	c.mu.Lock()
	c.pending[id.UserID] = token
	c.mu.Unlock()
	return id, nil
}

// CommitSession stores the token granted to userID by the latest SignIn and drops
// every other pending grant. Without a pending grant for userID it does nothing.
func (c *Client) CommitSession(ctx context.Context, userID string) error {
	c.mu.Lock()
	token, ok := c.pending[userID]
	clear(c.pending)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := c.store.Set(ctx, c.tokenKey, token); err != nil {
		return fmt.Errorf("%w: persist token: %v", adminAuth.ErrConnectivity, err)
	}
	return nil
}

// SignOut revokes the stored token remotely and discards pending grants. The local
// token is dropped even when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	clear(c.pending)
	c.mu.Unlock()

	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	remoteErr := c.do(ctx, http.MethodPost, logoutPath, token, nil, nil)
	if errors.Is(remoteErr, adminAuth.ErrInvalidCredential) {
		remoteErr = nil
	}
	var localErr error
	if err := c.store.Remove(ctx, c.tokenKey); err != nil {
		localErr = fmt.Errorf("%w: remove token: %v", adminAuth.ErrConnectivity, err)
	}
	c.notify(nil)
	return errors.Join(remoteErr, localErr)
}

// GetSession returns the identity behind the persisted token, with the role read
// from the profiles table so promotions made after sign-in are seen. An expired or
// invalid token is dropped and reported as no session.
func (c *Client) GetSession(ctx context.Context) (*adminAuth.RemoteIdentity, error) {
	token, err := c.token(ctx)
	if err != nil || token == "" {
		return nil, err
	}

	claims, err := c.tokens.ParseAccess(token)
	if err != nil {
		if rmErr := c.store.Remove(ctx, c.tokenKey); rmErr != nil {
			return nil, fmt.Errorf("%w: remove token: %v", adminAuth.ErrConnectivity, rmErr)
		}
		c.notify(nil)
		return nil, nil
	}

	p, err := c.findProfile(ctx, token, "id", "eq."+claims.UID)
	if errors.Is(err, adminAuth.ErrInvalidCredential) {
		// revoked remotely
		p, err = nil, c.store.Remove(ctx, c.tokenKey)
		if err != nil {
			return nil, fmt.Errorf("%w: remove token: %v", adminAuth.ErrConnectivity, err)
		}
		c.notify(nil)
	}
	if err != nil || p == nil {
		return nil, err
	}
	id := p.identity()
	return &id, nil
}

// OnSessionChange registers fn for sign-out and token expiry or revocation, which
// are reported as nil.
func (c *Client) OnSessionChange(fn func(*adminAuth.RemoteIdentity)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) FindByEmail(ctx context.Context, email string) (*adminAuth.RemoteIdentity, error) {
	return c.lookup(ctx, "email", "ilike."+escapeLike(email))
}

func (c *Client) FindByID(ctx context.Context, id string) (*adminAuth.RemoteIdentity, error) {
	return c.lookup(ctx, "id", "eq."+id)
}

func (c *Client) List(ctx context.Context) ([]adminAuth.RemoteIdentity, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var rows []profile
	if err := c.do(ctx, http.MethodGet, profilesPath+"?select=*&order=nome.asc", token, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]adminAuth.RemoteIdentity, 0, len(rows))
	for _, p := range rows {
		out = append(out, p.identity())
	}
	return out, nil
}

func (c *Client) UpdateRole(ctx context.Context, id, role string) (adminAuth.RemoteIdentity, error) {
	return c.patchProfile(ctx, id, map[string]string{"role": role})
}

func (c *Client) UpdateProfile(ctx context.Context, id, name, email string) (adminAuth.RemoteIdentity, error) {
	return c.patchProfile(ctx, id, map[string]string{"nome": name, "email": email})
}

// ChangePassword re-authenticates with oldSecret before updating, so a wrong old
// secret fails with ErrInvalidCredential and changes nothing. The stored token is
// left as it was.
func (c *Client) ChangePassword(ctx context.Context, id, oldSecret, newSecret string) error {
	current, err := c.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return adminAuth.ErrNotFound
	}

	_, fresh, err := c.grant(ctx, current.Email, oldSecret)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, userPath, fresh, map[string]string{"password": newSecret}, nil)
}

func (c *Client) grant(ctx context.Context, email, secret string) (adminAuth.RemoteIdentity, string, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": secret}
	if err := c.do(ctx, http.MethodPost, tokenPath, "", body, &resp); err != nil {
		return adminAuth.RemoteIdentity{}, "", err
	}
	if resp.AccessToken == "" {
		return adminAuth.RemoteIdentity{}, "", fmt.Errorf("%w: token response without access_token", adminAuth.ErrConnectivity)
	}

	claims, err := c.tokens.ParseAccess(resp.AccessToken)
	if err != nil {
		return adminAuth.RemoteIdentity{}, "", fmt.Errorf("%w: %v", adminAuth.ErrConnectivity, err)
	}

	name := claims.Name
	if name == "" {
		name = resp.User.Metadata.Name
	}
	return adminAuth.RemoteIdentity{
		UserID: claims.UID,
		Name:   name,
		Email:  claims.Email,
		Role:   claims.Role,
	}, resp.AccessToken, nil
}

func (c *Client) lookup(ctx context.Context, column, filter string) (*adminAuth.RemoteIdentity, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	p, err := c.findProfile(ctx, token, column, filter)
	if err != nil || p == nil {
		return nil, err
	}
	id := p.identity()
	return &id, nil
}

func (c *Client) findProfile(ctx context.Context, token, column, filter string) (*profile, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set(column, filter)

	var rows []profile
	if err := c.do(ctx, http.MethodGet, profilesPath+"?"+q.Encode(), token, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) patchProfile(ctx context.Context, id string, fields map[string]string) (adminAuth.RemoteIdentity, error) {
	token, err := c.token(ctx)
	if err != nil {
		return adminAuth.RemoteIdentity{}, err
	}

	q := url.Values{}
	q.Set("id", "eq."+id)
	var rows []profile
	if err := c.do(ctx, http.MethodPatch, profilesPath+"?"+q.Encode(), token, fields, &rows); err != nil {
		return adminAuth.RemoteIdentity{}, err
	}
	if len(rows) == 0 {
		return adminAuth.RemoteIdentity{}, adminAuth.ErrNotFound
	}
	return rows[0].identity(), nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	token, _, err := c.store.Get(ctx, c.tokenKey)
	if err != nil {
		return "", fmt.Errorf("%w: load token: %v", adminAuth.ErrConnectivity, err)
	}
	return token, nil
}

func (c *Client) notify(id *adminAuth.RemoteIdentity) {
	c.mu.Lock()
	fns := make([]func(*adminAuth.RemoteIdentity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		if id == nil {
			fn(nil)
			continue
		}
		cp := *id
		fn(&cp)
	}
}

// do sends one request and decodes a JSON response into out when out is non-nil.
// path may carry its own query string.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	bearer := token
	if bearer == "" {
		bearer = c.apiKey
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", adminAuth.ErrConnectivity, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", adminAuth.ErrConnectivity, err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", adminAuth.ErrConnectivity, err)
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Msg     string `json:"msg"`
	Error   string `json:"error_description"`
}

func statusError(status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := firstNonEmpty(eb.Message, eb.Msg, eb.Error, http.StatusText(status))

	var kind error
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		kind = adminAuth.ErrInvalidCredential
	case status == http.StatusForbidden:
		kind = adminAuth.ErrPermissionDenied
	case status == http.StatusNotFound:
		kind = adminAuth.ErrNotFound
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		kind = adminAuth.ErrDuplicateEmail
	default:
		kind = adminAuth.ErrConnectivity
	}
	return fmt.Errorf("%w: remote status %d: %s", kind, status, msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// escapeLike quotes the pattern characters of an ilike filter so an email matches
// only itself, case-insensitively.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `\*`)
	return r.Replace(s)
}
