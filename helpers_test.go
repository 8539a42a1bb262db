package twostep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jmcastano/twostep/secret"
)

type memUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]*User
	nextID  int
	down    bool
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]*User),
	}
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("user db unreachable")
	}
	user, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("user db unreachable")
	}
	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) Create(_ context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("user db unreachable")
	}
	clone := *user
	s.nextID++
	clone.ID = fmt.Sprintf("u-%d", s.nextID)
	s.byID[clone.ID] = &clone
	s.byEmail[clone.Email] = &clone
	out := clone
	return &out, nil
}

func (s *memUserStore) put(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user
}

func (s *memUserStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byID[id]; ok {
		delete(s.byEmail, user.Email)
		delete(s.byID, id)
	}
}

func (s *memUserStore) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

type notifierSend struct {
	contact string
	message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends []notifierSend
}

func (n *recordingNotifier) Send(_ context.Context, contact, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, notifierSend{contact: contact, message: message})
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func (n *recordingNotifier) last(t *testing.T) notifierSend {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sends) == 0 {
		t.Fatal("expected at least one notification")
	}
	return n.sends[len(n.sends)-1]
}

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, string, string) error {
	return errors.New("sms gateway down")
}

// codeFromMessage extracts the challenge code from a notification message.
func codeFromMessage(t *testing.T, message string) string {
	t.Helper()
	const prefix = "Your verification code is "
	if !strings.HasPrefix(message, prefix) {
		t.Fatalf("unexpected notification message: %q", message)
	}
	return strings.TrimPrefix(message, prefix)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Metrics.Enabled = true
	return cfg
}

func seedUser(store *memUserStore, id, email, plaintext, roleID string) *User {
	user := &User{
		ID:         id,
		FirstName:  "Ana",
		MiddleName: "Lucia",
		LastName:   "Serrano",
		Email:      email,
		Phone:      "+573001112233",
		SecretHash: secret.Digest(plaintext),
		RoleID:     roleID,
	}
	store.put(user)
	return user
}

// newTestEngineWithNotifier builds an engine around a caller-provided user
// store and notifier, for tests exercising collaborator failures.
func newTestEngineWithNotifier(t *testing.T, cfg Config, store *memUserStore, notifier Notifier) (*Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// newTestEngineWithAudit builds an engine with the given audit sink wired.
func newTestEngineWithAudit(t *testing.T, cfg Config, store *memUserStore, sink AuditSink) (*Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithNotifier(&recordingNotifier{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *memUserStore, *recordingNotifier, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := newMemUserStore()
	notifier := &recordingNotifier{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return engine, store, notifier, rdb, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}
