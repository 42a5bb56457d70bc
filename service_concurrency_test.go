package adminAuth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLogoutSupersedesInFlightLogin(t *testing.T) {
	svc, gated, kv := newGatedService(t, "ana@x.com")
	ctx := context.Background()
	mustRegister(t, svc, "Ana", "ana@x.com", "s1")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Login(ctx, "ana@x.com", "s1")
		done <- err
	}()
	<-gated.entered

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	close(gated.release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatal("stale login must not sign in after logout")
	}
	m, _ := NewLocalSessionManager(kv, "")
	if stored, err := m.Current(ctx); err != nil || stored != nil {
		t.Fatalf("stale login persisted a session: %+v, %v", stored, err)
	}
	if svc.MetricsSnapshot().Counters[MetricLoginSuperseded] != 1 {
		t.Fatal("expected login_superseded counter")
	}
}

func TestNewerLoginWins(t *testing.T) {
	svc, gated, _ := newGatedService(t, "ana@x.com")
	ctx := context.Background()
	mustRegister(t, svc, "Ana", "ana@x.com", "s1")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Login(ctx, "ana@x.com", "s1")
		done <- err
	}()
	<-gated.entered

	admin := mustLogin(t, svc, defaultAdminEmail, defaultAdminSecret)
	close(gated.release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if cur := svc.CurrentUser(); cur == nil || *cur != admin {
		t.Fatalf("current = %+v, want admin", cur)
	}
}

func TestRegisterDuringLogoutReportsSuperseded(t *testing.T) {
	svc, gated, _ := newGatedService(t, "cai@x.com")
	ctx := context.Background()
	mustLogin(t, svc, defaultAdminEmail, defaultAdminSecret)

	type result struct {
		rec UserRecord
		err error
	}
	done := make(chan result, 1)
	go func() {
		rec, err := svc.Register(ctx, "Cai", "cai@x.com", "s1")
		done <- result{rec, err}
	}()
	<-gated.entered

	if err := svc.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	close(gated.release)

	res := <-done
	if !errors.Is(res.err, ErrSuperseded) || res.rec.ID == "" {
		t.Fatalf("Register = %+v, %v; want record with ErrSuperseded", res.rec, res.err)
	}
	if svc.IsAuthenticated() {
		t.Fatal("Register must never sign in")
	}
	mustLogin(t, svc, "cai@x.com", "s1")
}

func TestSubscribersSeeOrderedStates(t *testing.T) {
	svc := newStartedService(t, testConfig(), newFlakyStore())
	ctx := context.Background()
	mustRegister(t, svc, "Ana", "ana@x.com", "s1")

	var (
		mu    sync.Mutex
		first []State
		order []string
	)
	svc.Subscribe(func(s Signal) {
		mu.Lock()
		first = append(first, s.State)
		order = append(order, "a")
		mu.Unlock()
	})
	unsubscribe := svc.Subscribe(func(s Signal) {
		if s.State == StateAuthorized && svc.CurrentUser() == nil {
			t.Error("subscriber saw a signal ahead of the state it describes")
		}
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
	})

	mustLogin(t, svc, "ana@x.com", "s1")
	mustLogin(t, svc, defaultAdminEmail, defaultAdminSecret)
	unsubscribe()
	unsubscribe()
	if err := svc.Logout(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StatePendingApproval, StateAuthorized, StateLoggedOut}
	if len(first) != len(want) {
		t.Fatalf("states = %v, want %v", first, want)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("states = %v, want %v", first, want)
		}
	}
	if got := len(order); got != 5 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("delivery order = %v", order)
	}

	if svc.Subscribe(nil) == nil {
		t.Fatal("Subscribe(nil) must return a usable unsubscribe")
	}
}

func TestConcurrentLoginLogoutStaysConsistent(t *testing.T) {
	kv := newFlakyStore()
	svc := newStartedService(t, testConfig(), kv)
	ctx := context.Background()
	mustRegister(t, svc, "Ana", "ana@x.com", "s1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if (i+j)%3 == 0 {
					_ = svc.Logout(ctx)
					continue
				}
				email, secret := "ana@x.com", "s1"
				if i%2 == 0 {
					email, secret = defaultAdminEmail, defaultAdminSecret
				}
				if _, err := svc.Login(ctx, email, secret); err != nil && !errors.Is(err, ErrSuperseded) {
					t.Errorf("Login: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	m, _ := NewLocalSessionManager(kv, "")
	stored, err := m.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cur := svc.CurrentUser()
	if (stored == nil) != (cur == nil) || (stored != nil && *stored != *cur) {
		t.Fatalf("persisted %+v and published %+v diverged", stored, cur)
	}
}

func TestLoginThrottle(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := testConfig()
	cfg.Throttle.Enabled = true
	cfg.Throttle.MaxLoginAttempts = 2
	cfg.Throttle.Cooldown = time.Minute
	cfg.Throttle.PerIP = true

	svc := newStartedService(t, cfg, newFlakyStore(), func(b *Builder) {
		b.WithRedis(rdb).WithMetricsEnabled(true)
	})
	ctx := WithClientIP(context.Background(), "10.0.0.9")
	mustRegister(t, svc, "Ana", "ana@x.com", "s1")

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, "ana@x.com", "bad"); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("attempt %d: expected ErrInvalidCredential, got %v", i, err)
		}
	}
	if _, err := svc.Login(ctx, "ANA@x.com", "s1"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if _, err := svc.Login(ctx, defaultAdminEmail, defaultAdminSecret); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected the IP budget to apply across emails, got %v", err)
	}

	other := WithClientIP(context.Background(), "10.0.0.10")
	mustLogin(t, svc, defaultAdminEmail, defaultAdminSecret)
	if _, err := svc.Login(other, defaultAdminEmail, defaultAdminSecret); err != nil {
		t.Fatalf("login from another IP failed: %v", err)
	}
	if svc.MetricsSnapshot().Counters[MetricLoginThrottled] != 2 {
		t.Fatalf("login_throttled = %d, want 2", svc.MetricsSnapshot().Counters[MetricLoginThrottled])
	}
}

func TestLoginThrottleResetOnSuccess(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := testConfig()
	cfg.Throttle.Enabled = true
	cfg.Throttle.MaxLoginAttempts = 2
	cfg.Throttle.Cooldown = time.Minute

	svc := newStartedService(t, cfg, newFlakyStore(), func(b *Builder) { b.WithRedis(rdb) })
	ctx := context.Background()

	for round := 0; round < 3; round++ {
		if _, err := svc.Login(ctx, defaultAdminEmail, "bad"); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("round %d: %v", round, err)
		}
		mustLogin(t, svc, defaultAdminEmail, defaultAdminSecret)
	}
}

func TestLoginThrottleRedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := testConfig()
	cfg.Throttle.Enabled = true

	svc := newStartedService(t, cfg, newFlakyStore(), func(b *Builder) { b.WithRedis(rdb) })
	mr.Close()

	if _, err := svc.Login(context.Background(), defaultAdminEmail, defaultAdminSecret); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatal("login must fail closed when the throttle is unreachable")
	}
}

func TestAuditEvents(t *testing.T) {
	sink := NewChannelSink(32)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	svc := newStartedService(t, cfg, newFlakyStore(), func(b *Builder) { b.WithAuditSink(sink) })
	ctx := WithClientIP(context.Background(), "192.0.2.1")
	ana := mustRegister(t, svc, "Ana", "ana@x.com", "s1")
	mustLogin(t, svc, "ana@x.com", "s1")
	if _, err := svc.UpdateRole(ctx, ana.ID, RoleAdmin); !errors.Is(err, ErrPermissionDenied) {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "ana@x.com", "nope"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatal(err)
	}

	want := []string{
		auditEventBootstrapAdminCreated,
		auditEventRegisterSuccess,
		auditEventLoginSuccess,
		auditEventRoleChangeDenied,
		auditEventLoginFailure,
	}
	var got []AuditEvent
	for len(got) < len(want) {
		select {
		case e := <-sink.Events():
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	for i, e := range got {
		if e.EventType != want[i] {
			t.Fatalf("event %d = %s, want %s", i, e.EventType, want[i])
		}
	}

	denied := got[3]
	if denied.Success || denied.Error != string(auditErrPermissionDenied) || denied.Metadata["reason"] != "actor_not_admin" {
		t.Fatalf("unexpected denial event: %+v", denied)
	}
	if denied.IP != "192.0.2.1" || denied.ActorID != ana.ID {
		t.Fatalf("denial event missing actor or IP: %+v", denied)
	}
	if got[4].Error != string(auditErrInvalidCredential) {
		t.Fatalf("login failure error code = %q", got[4].Error)
	}
}
