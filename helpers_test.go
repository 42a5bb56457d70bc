package adminAuth

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/MrEthical07/adminAuth/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	defaultAdminEmail  = "admin@exemplo.com"
	defaultAdminSecret = "admin123"
)

// testConfig keeps argon2id at its floor so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// newStartedService builds and starts a Service over kv. configure may adjust the
// Builder before Build.
func newStartedService(t *testing.T, cfg Config, kv storage.Store, configure ...func(*Builder)) *Service {
	t.Helper()

	b := New().WithConfig(cfg).WithStorage(kv)
	for _, fn := range configure {
		fn(b)
	}
	svc, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func mustLogin(t *testing.T, svc *Service, email, secret string) SessionUser {
	t.Helper()
	u, err := svc.Login(context.Background(), email, secret)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return u
}

func mustRegister(t *testing.T, svc *Service, name, email, secret string) UserRecord {
	t.Helper()
	rec, err := svc.Register(context.Background(), name, email, secret)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return rec
}

func rawValue(t *testing.T, kv storage.Store, key string) string {
	t.Helper()
	v, _, err := kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	return v
}

// flakyStore wraps a Memory store and fails selected operations with
// storage.ErrUnavailable.
type flakyStore struct {
	*storage.Memory

	mu      sync.Mutex
	failGet bool
	failSet bool
	failRm  bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Memory: storage.NewMemory()}
}

func (f *flakyStore) set(get, set, rm bool) {
	f.mu.Lock()
	f.failGet, f.failSet, f.failRm = get, set, rm
	f.mu.Unlock()
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, fmt.Errorf("%w: get %s", storage.ErrUnavailable, key)
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: set %s", storage.ErrUnavailable, key)
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.failRm
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: remove %s", storage.ErrUnavailable, key)
	}
	return f.Memory.Remove(ctx, key)
}

// gatedCredentials blocks Verify and Register for gateFor until release is closed,
// so a test can interleave a logout or a second login with an in-flight request.
type gatedCredentials struct {
	CredentialBackend

	entered chan string
	release chan struct{}
	gateFor string
}

func (g *gatedCredentials) Verify(ctx context.Context, email, secret string) (UserRecord, error) {
	if email == g.gateFor {
		g.entered <- email
		select {
		case <-g.release:
		case <-ctx.Done():
			return UserRecord{}, ctx.Err()
		}
	}
	return g.CredentialBackend.Verify(ctx, email, secret)
}

func (g *gatedCredentials) Register(ctx context.Context, name, email, secret string) (UserRecord, error) {
	if email == g.gateFor {
		g.entered <- email
		<-g.release
	}
	return g.CredentialBackend.Register(ctx, name, email, secret)
}

func newGatedService(t *testing.T, gateFor string) (*Service, *gatedCredentials, storage.Store) {
	t.Helper()
	cfg := testConfig()
	kv := storage.NewMemory()
	local, err := NewLocalCredentialStore(kv, cfg)
	if err != nil {
		t.Fatal(err)
	}
	gated := &gatedCredentials{
		CredentialBackend: local,
		entered:           make(chan string, 1),
		release:           make(chan struct{}),
		gateFor:           gateFor,
	}
	svc := newStartedService(t, cfg, kv, func(b *Builder) {
		b.WithCredentialBackend(gated).WithMetricsEnabled(true)
	})
	return svc, gated, kv
}
