package twostep

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresUserStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err = New().WithConfig(testConfig()).WithRedis(rdb).Build()
	if err == nil {
		t.Fatal("Build must fail without a user store")
	}
}

func TestBuildRequiresLoginBackend(t *testing.T) {
	_, err := New().WithConfig(testConfig()).WithUserStore(newMemUserStore()).Build()
	if err == nil {
		t.Fatal("Build must fail without redis or a login store")
	}
}

func TestBuildRejectsBadSigningKey(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"hs256 without key", func(c *Config) {
			c.Token.SigningMethod = "hs256"
			c.Token.PrivateKey = nil
		}},
		{"ed25519 without keys", func(c *Config) {
			c.Token.SigningMethod = "ed25519"
		}},
		{"ed25519 malformed key", func(c *Config) {
			c.Token.SigningMethod = "ed25519"
			c.Token.PrivateKey = []byte("too short")
			c.Token.PublicKey = []byte("too short")
		}},
		{"unknown method", func(c *Config) {
			c.Token.SigningMethod = "rs512"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := New().
				WithConfig(cfg).
				WithUserStore(newMemUserStore()).
				WithLoginStore(&failingConsumeStore{}).
				Build()
			if err == nil {
				t.Fatal("signing key problems must fail Build")
			}
		})
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Challenge.CodeLength = 0

	_, err := New().
		WithConfig(cfg).
		WithUserStore(newMemUserStore()).
		WithLoginStore(&failingConsumeStore{}).
		Build()
	if err == nil {
		t.Fatal("invalid config must fail Build")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	store := newMemUserStore()
	builder := New().WithConfig(testConfig()).WithUserStore(store).WithLoginStore(&failingConsumeStore{})

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("a builder must not be reusable")
	}
}

func TestBuildDefaultsNotifierToNoOp(t *testing.T) {
	store := newMemUserStore()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")
	quiet, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer quiet.Close()

	// No notifier configured: identification still succeeds.
	if _, err := quiet.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "pw123"}); err != nil {
		t.Fatalf("Identify without notifier failed: %v", err)
	}
}

func TestEngineNilSafety(t *testing.T) {
	var engine *Engine

	if _, err := engine.Identify(context.Background(), Credentials{}); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("nil Identify: %v", err)
	}
	if _, err := engine.VerifyChallenge(context.Background(), ChallengeSubmission{}); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("nil VerifyChallenge: %v", err)
	}
	if _, err := engine.ValidateToken("x"); !errors.Is(err, ErrEngineNotReady) {
		t.Errorf("nil ValidateToken: %v", err)
	}
	engine.Close()
	if engine.AuditDropped() != 0 {
		t.Error("nil AuditDropped should be 0")
	}
}
