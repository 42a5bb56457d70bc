// Command adminauth-loadtest drives concurrent logins and logouts through one
// Service over Redis storage and checks that the published state always matches
// the persisted session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	adminAuth "github.com/MrEthical07/adminAuth"
	"github.com/MrEthical07/adminAuth/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const accountSecret = "loadtest-secret"

func main() {
	var (
		accounts    = flag.Int("accounts", 64, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		ops         = flag.Int("ops", 2000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "storage key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	kv, err := storage.NewRedis(client, *prefix)
	if err != nil {
		fail("storage", err)
	}

	cfg := adminAuth.DefaultConfig()
	cfg.Storage.Driver = adminAuth.StorageRedis
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Bootstrap.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	svc, err := adminAuth.New().WithConfig(cfg).WithStorage(kv).Build()
	if err != nil {
		fail("build", err)
	}
	defer svc.Close()
	if err := svc.Start(ctx); err != nil {
		fail("start", err)
	}

	emails := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d@loadtest.local", i)
		if _, err := svc.Register(ctx, fmt.Sprintf("User %d", i), emails[i], accountSecret); err != nil {
			fail("register", err)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := svc.Login(ctx, emails[r.Intn(len(emails))], accountSecret)
		return err
	})
	churnStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		if r.Intn(3) == 0 {
			return svc.Logout(ctx)
		}
		_, err := svc.Login(ctx, emails[r.Intn(len(emails))], accountSecret)
		return err
	})

	persisted, err := adminAuth.NewLocalSessionManager(kv, cfg.Storage.SessionKey)
	if err != nil {
		fail("session manager", err)
	}
	stored, err := persisted.Current(ctx)
	if err != nil {
		fail("read session", err)
	}
	published := svc.CurrentUser()

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("churn", churnStats)
	snap := svc.MetricsSnapshot()
	fmt.Printf("counters: login_success=%d login_superseded=%d logout=%d\n",
		snap.Counters[adminAuth.MetricLoginSuccess],
		snap.Counters[adminAuth.MetricLoginSuperseded],
		snap.Counters[adminAuth.MetricLogout],
	)

	if !sameUser(stored, published) {
		fmt.Fprintf(os.Stderr, "state mismatch: persisted=%v published=%v\n", stored, published)
		os.Exit(1)
	}
	fmt.Println("persisted session matches published state")
}

type phaseStats struct {
	total      time.Duration
	ops        int
	failures   int64
	superseded int64
	p50        time.Duration
	p95        time.Duration
	p99        time.Duration
	opsPerS    float64
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg         sync.WaitGroup
		cursor     int64
		failures   int64
		superseded int64
		latencies  = make([]time.Duration, 0, ops)
		mu         sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				switch {
				case errors.Is(err, adminAuth.ErrSuperseded):
					atomic.AddInt64(&superseded, 1)
				case err != nil:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	s := computeStats(time.Since(start), latencies, failures)
	s.superseded = superseded
	return s
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d superseded=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.superseded,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func sameUser(a, b *adminAuth.SessionUser) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", step, err)
	os.Exit(1)
}
