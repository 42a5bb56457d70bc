package adminAuth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/adminAuth/internal/audit"
	"github.com/MrEthical07/adminAuth/internal/rate"
	"github.com/MrEthical07/adminAuth/session"
	"github.com/rs/zerolog"
)

// Service is the authentication facade. Build one with [New]; call [Service.Start]
// before serving protected content.
//
// Methods are safe for concurrent use. Each login and registration is tagged with a
// sequence number when it starts; if a logout or a newer login happens while it is
// in flight, its result is discarded and ErrSuperseded returned.
//
// Subscribers are called synchronously after every state change, in order. They may
// read state (CurrentUser, State, ...) but must not call mutating methods from the
// same goroutine.
type Service struct {
	cfg      Config
	creds    CredentialBackend
	sessions SessionBackend
	logger   zerolog.Logger
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	throttle *rate.Limiter

	mu      sync.Mutex
	current *SessionUser
	epoch   uint64
	started bool
	closed  bool
	unwatch func()

	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[uint64]func(Signal)
	nextSub  uint64
}

// Start runs the startup sequence: bootstrap the default administrator, restore the
// persisted session, then publish the resulting state once. Failures of either step
// are logged and leave the Service logged out; Start itself only fails after Close.
// Calling Start again is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServiceClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	created, err := s.creds.BootstrapDefaultAdmin(ctx)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Msg("default admin bootstrap skipped")
	case created:
		s.metricInc(MetricBootstrapAdminCreated)
		s.logger.Info().Str("email", s.cfg.Bootstrap.AdminEmail).Msg("default admin created; change its secret after first login")
		s.emitAudit(ctx, auditEventBootstrapAdminCreated, true, "", "", s.cfg.Bootstrap.AdminEmail, nil, nil)
	}

	restored, err := s.sessions.Current(ctx)
	if err != nil {
		restored = nil
		if errors.Is(err, session.ErrCorruptSession) {
			s.metricInc(MetricSessionCorrupt)
		}
		s.backendFailed(err)
		s.logger.Warn().Err(err).Msg("session restore failed; starting logged out")
	} else if restored != nil {
		s.metricInc(MetricSessionRestored)
		s.logger.Debug().Str("user_id", restored.ID).Str("role", restored.Role.String()).Msg("session restored")
	}

	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.epoch++
	s.current = restored
	if w, ok := s.sessions.(SessionWatcher); ok {
		s.unwatch = w.Watch(s.onExternalSession)
	}
	s.publishLocked()
	return nil
}

// Close stops watching the session backend and flushes the audit dispatcher.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unwatch := s.unwatch
	s.unwatch = nil
	s.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	s.audit.Close()
}

// Login verifies the credentials, awaits the session write, then publishes the new
// state. A failed login changes nothing. With the throttle enabled, an email or
// client IP that has used up its failure budget gets ErrTooManyAttempts without
// the secret being checked.
func (s *Service) Login(ctx context.Context, email, secret string) (SessionUser, error) {
	if s.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { s.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
	}

	ticket, err := s.begin(true)
	if err != nil {
		return SessionUser{}, err
	}

	ip := clientIPFromContext(ctx)
	if err := s.checkThrottle(ctx, email, ip); err != nil {
		s.backendFailed(err)
		if errors.Is(err, ErrTooManyAttempts) {
			s.metricInc(MetricLoginThrottled)
			s.emitAudit(ctx, auditEventLoginThrottled, false, "", "", email, err, nil)
		}
		return SessionUser{}, err
	}

	rec, err := s.creds.Verify(ctx, email, secret)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		s.backendFailed(err)
		if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrUnknownEmail) {
			s.recordFailure(ctx, email, ip)
		}
		s.emitAudit(ctx, auditEventLoginFailure, false, "", "", email, err, nil)
		return SessionUser{}, err
	}
	user := rec.SessionUser()
	s.resetThrottle(ctx, email, ip)

	s.mu.Lock()
	if s.epoch != ticket || s.closed {
		s.mu.Unlock()
		s.metricInc(MetricLoginSuperseded)
		s.logger.Debug().Str("user_id", user.ID).Msg("stale login discarded")
		s.emitAudit(ctx, auditEventLoginSuperseded, false, user.ID, user.ID, user.Email, ErrSuperseded, nil)
		return SessionUser{}, ErrSuperseded
	}
	if err := s.sessions.Persist(ctx, user); err != nil {
		s.mu.Unlock()
		s.metricInc(MetricLoginFailure)
		s.backendFailed(err)
		s.emitAudit(ctx, auditEventLoginFailure, false, user.ID, user.ID, user.Email, err, nil)
		return SessionUser{}, err
	}
	s.current = &user
	s.publishLocked()

	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, user.ID, user.Email, nil, func() map[string]string {
		return map[string]string{"role": user.Role.String()}
	})
	return user, nil
}

// Register creates a pending account. It never signs the caller in.
//
// If a logout or login happens while the request is in flight, the account is still
// created but ErrSuperseded is returned alongside it.
func (s *Service) Register(ctx context.Context, name, email, secret string) (UserRecord, error) {
	ticket, err := s.begin(false)
	if err != nil {
		return UserRecord{}, err
	}

	rec, err := s.creds.Register(ctx, name, email, secret)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.metricInc(MetricRegisterDuplicate)
		}
		s.backendFailed(err)
		s.emitAudit(ctx, auditEventRegisterFailure, false, "", "", email, err, nil)
		return UserRecord{}, err
	}

	s.metricInc(MetricRegisterSuccess)
	s.emitAudit(ctx, auditEventRegisterSuccess, true, "", rec.ID, rec.Email, nil, nil)

	s.mu.Lock()
	stale := s.epoch != ticket
	s.mu.Unlock()
	if stale {
		return rec, ErrSuperseded
	}
	return rec, nil
}

// Logout clears the session and publishes the logged-out state. The in-memory state
// is logged out even when the backend fails to clear; that error is returned.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.epoch++
	prev := s.current
	err := s.sessions.Clear(ctx)
	s.current = nil
	s.publishLocked()

	s.metricInc(MetricLogout)
	s.backendFailed(err)
	var uid string
	if prev != nil {
		uid = prev.ID
	}
	s.emitAudit(ctx, auditEventLogout, err == nil, uid, uid, "", err, nil)
	return err
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Service) CurrentUser() *SessionUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// State returns the derived authentication state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StateOf(s.current)
}

// Signal returns the navigation signal for the current state.
func (s *Service) Signal() Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return signalFor(s.current)
}

// IsAuthenticated reports whether anyone is signed in, approved or not.
func (s *Service) IsAuthenticated() bool { return s.State() != StateLoggedOut }

// IsAuthorized reports whether the signed-in user's role is approved.
func (s *Service) IsAuthorized() bool { return s.State() == StateAuthorized }

// Subscribe registers fn for every subsequent state change.
func (s *Service) Subscribe(fn func(Signal)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]func(Signal))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// MetricsSnapshot returns the current counters; used by the metric exporters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (s *Service) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// begin checks the Service is usable and returns the sequence number a request
// must still hold when it completes. bump marks the request as the newest session
// change, invalidating older in-flight logins.
func (s *Service) begin(bump bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrServiceClosed
	}
	if !s.started {
		return 0, ErrNotStarted
	}
	if bump {
		s.epoch++
	}
	return s.epoch, nil
}

// publishLocked must be called with s.mu held; it releases s.mu before invoking
// subscribers and keeps notifications ordered through notifyMu.
func (s *Service) publishLocked() {
	sig := signalFor(s.current)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.subMu.Lock()
	fns := make([]func(Signal), 0, len(s.subs))
	for i := uint64(0); i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(sig)
	}
}

// onExternalSession reacts to session changes reported by the backend itself.
func (s *Service) onExternalSession(u *SessionUser) {
	s.mu.Lock()
	if s.closed || s.current == nil {
		s.mu.Unlock()
		return
	}

	if u == nil {
		s.epoch++
		s.current = nil
		s.logger.Info().Msg("session ended by backend")
		s.publishLocked()
		return
	}

	if u.ID != s.current.ID || *u == *s.current {
		s.mu.Unlock()
		return
	}
	if err := s.sessions.Persist(context.Background(), *u); err != nil {
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("refresh from backend session change failed")
		return
	}
	fresh := *u
	s.current = &fresh
	s.publishLocked()
}

func (s *Service) checkThrottle(ctx context.Context, email, ip string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.Check(ctx, email, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrTooManyAttempts
	default:
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
}

func (s *Service) recordFailure(ctx context.Context, email, ip string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Fail(ctx, email, ip); err != nil {
		s.logger.Warn().Err(err).Msg("login failure not counted")
	}
}

func (s *Service) resetThrottle(ctx context.Context, email, ip string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email, ip); err != nil {
		s.logger.Warn().Err(err).Msg("login throttle reset failed")
	}
}

func (s *Service) metricInc(id MetricID) {
	s.metrics.Inc(id)
}

func (s *Service) backendFailed(err error) {
	if errors.Is(err, ErrConnectivity) {
		s.metricInc(MetricBackendUnavailable)
	}
}
