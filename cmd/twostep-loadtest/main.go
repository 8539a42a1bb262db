// Command twostep-loadtest measures engine throughput and latency against a
// real or embedded Redis. It seeds a set of users, then runs two phases:
// identification alone, and the full identify-plus-verify round trip.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jmcastano/twostep"
	"github.com/jmcastano/twostep/secret"
)

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "tsl", "redis key prefix for login records")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := newSeededStore(*users)
	codes := &codeCapture{}

	cfg := twostep.DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("loadtest-only-key-loadtest-only!")
	cfg.Login.RedisPrefix = *prefix

	engine, err := twostep.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		WithNotifier(codes).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeded %d users\n", *users)

	identifyStats := runIdentifyPhase(ctx, engine, store, *ops, *concurrency)
	twoStepStats := runTwoStepPhase(ctx, engine, store, codes, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("identify", identifyStats)
	printStats("two-step", twoStepStats)
}

func runIdentifyPhase(ctx context.Context, engine *twostep.Engine, store *seededStore, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(store.count)
				t0 := time.Now()
				_, err := engine.Identify(ctx, store.credentials(idx))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runTwoStepPhase(ctx context.Context, engine *twostep.Engine, store *seededStore, codes *codeCapture, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(store.count)

				t0 := time.Now()
				user, err := engine.Identify(ctx, store.credentials(idx))
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				code, ok := codes.take(store.contact(idx))
				if !ok {
					atomic.AddInt64(&failures, 1)
					continue
				}
				_, err = engine.VerifyChallenge(ctx, twostep.ChallengeSubmission{
					UserID: user.ID,
					Code:   code,
				})
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// seededStore is a read-only UserStore with a fixed population. Every user
// shares the same secret so workers can identify as any index.
type seededStore struct {
	count   int
	users   []*twostep.User
	byID    map[string]*twostep.User
	byEmail map[string]*twostep.User
}

const seedSecret = "loadtest-secret"

func newSeededStore(count int) *seededStore {
	digest := secret.Digest(seedSecret)
	s := &seededStore{
		count:   count,
		users:   make([]*twostep.User, count),
		byID:    make(map[string]*twostep.User, count),
		byEmail: make(map[string]*twostep.User, count),
	}
	for i := 0; i < count; i++ {
		user := &twostep.User{
			ID:         fmt.Sprintf("u-%d", i),
			FirstName:  "Load",
			LastName:   fmt.Sprintf("Tester%d", i),
			Email:      fmt.Sprintf("load-%d@example.com", i),
			SecretHash: digest,
			RoleID:     "user",
		}
		s.users[i] = user
		s.byID[user.ID] = user
		s.byEmail[user.Email] = user
	}
	return s
}

func (s *seededStore) credentials(idx int) twostep.Credentials {
	return twostep.Credentials{Email: s.users[idx].Email, Secret: seedSecret}
}

func (s *seededStore) contact(idx int) string {
	return s.users[idx].Email
}

func (s *seededStore) FindByEmail(_ context.Context, email string) (*twostep.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, twostep.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *seededStore) FindByID(_ context.Context, id string) (*twostep.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, twostep.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *seededStore) Create(context.Context, *twostep.User) (*twostep.User, error) {
	return nil, fmt.Errorf("seeded store is read-only")
}

// codeCapture records the last delivered code per contact, standing in for
// the out-of-band channel.
type codeCapture struct {
	codes sync.Map
}

func (c *codeCapture) Send(_ context.Context, contact, message string) error {
	const prefix = "Your verification code is "
	if strings.HasPrefix(message, prefix) {
		c.codes.Store(contact, strings.TrimPrefix(message, prefix))
	}
	return nil
}

func (c *codeCapture) take(contact string) (string, bool) {
	value, ok := c.codes.LoadAndDelete(contact)
	if !ok {
		return "", false
	}
	return value.(string), true
}
