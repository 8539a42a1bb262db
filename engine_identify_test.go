package twostep

import (
	"context"
	"errors"
	"testing"
)

func TestIdentifySuccess(t *testing.T) {
	engine, store, notifier, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")

	user, err := engine.Identify(context.Background(), Credentials{
		Email:  "ana@example.com",
		Secret: "pw123",
	})
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if user.ID != "u-1" {
		t.Errorf("expected user u-1, got %s", user.ID)
	}
	if user.SecretHash != "" {
		t.Error("returned user must not carry the secret digest")
	}

	send := notifier.last(t)
	if send.contact != "+573001112233" {
		t.Errorf("expected code sent to phone, got %s", send.contact)
	}
	code := codeFromMessage(t, send.message)
	if len(code) != 5 {
		t.Errorf("expected 5-digit code, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Errorf("non-digit in code %q", code)
		}
	}
}

func TestIdentifyFallsBackToEmailContact(t *testing.T) {
	engine, store, notifier, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	user := seedUser(store, "u-1", "ana@example.com", "pw123", "admin")
	user.Phone = ""
	store.put(user)

	if _, err := engine.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "pw123"}); err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if got := notifier.last(t).contact; got != "ana@example.com" {
		t.Errorf("expected email contact, got %s", got)
	}
}

func TestIdentifyWrongSecret(t *testing.T) {
	engine, store, notifier, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")

	_, err := engine.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if notifier.count() != 0 {
		t.Error("no code may be sent on a failed identification")
	}
}

func TestIdentifyUnknownEmail(t *testing.T) {
	engine, _, _, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	_, err := engine.Identify(context.Background(), Credentials{Email: "nobody@example.com", Secret: "pw123"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIdentifyRejectionIsUniform(t *testing.T) {
	// Unknown email and wrong secret must be indistinguishable to callers.
	engine, store, _, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")

	_, errUnknown := engine.Identify(context.Background(), Credentials{Email: "ghost@example.com", Secret: "pw123"})
	_, errWrong := engine.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "nope"})
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("rejection messages differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestIdentifyEmptyCredentials(t *testing.T) {
	engine, _, _, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	for _, creds := range []Credentials{
		{},
		{Email: "ana@example.com"},
		{Secret: "pw123"},
	} {
		if _, err := engine.Identify(context.Background(), creds); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("creds %+v: expected ErrInvalidCredentials, got %v", creds, err)
		}
	}
}

func TestIdentifyUserStoreFailure(t *testing.T) {
	engine, store, _, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")
	store.setDown(true)

	_, err := engine.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "pw123"})
	if !errors.Is(err, ErrUserStoreUnavailable) {
		t.Fatalf("expected ErrUserStoreUnavailable, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricStoreFailure]; got != 1 {
		t.Errorf("expected 1 store failure counted, got %d", got)
	}
}

func TestIdentifyNotifierFailureStillSucceeds(t *testing.T) {
	store := newMemUserStore()
	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")

	engine, cleanup := newTestEngineWithNotifier(t, testConfig(), store, failingNotifier{})
	defer cleanup()

	user, err := engine.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "pw123"})
	if err != nil {
		t.Fatalf("Identify must succeed when only delivery fails: %v", err)
	}
	if user == nil || user.ID != "u-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if got := engine.MetricsSnapshot().Counters[MetricNotifyFailure]; got != 1 {
		t.Errorf("expected 1 notify failure counted, got %d", got)
	}
}

func TestIdentifyMetrics(t *testing.T) {
	engine, store, _, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")

	_, _ = engine.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "pw123"})
	_, _ = engine.Identify(context.Background(), Credentials{Email: "ana@example.com", Secret: "bad"})

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricIdentifySuccess] != 1 {
		t.Errorf("identify success = %d, want 1", snap.Counters[MetricIdentifySuccess])
	}
	if snap.Counters[MetricIdentifyFailure] != 1 {
		t.Errorf("identify failure = %d, want 1", snap.Counters[MetricIdentifyFailure])
	}
	if snap.Counters[MetricChallengeIssued] != 1 {
		t.Errorf("challenges issued = %d, want 1", snap.Counters[MetricChallengeIssued])
	}
}

func TestIdentifyTwiceIssuesIndependentChallenges(t *testing.T) {
	engine, store, notifier, _, cleanup := newTestEngine(t, testConfig())
	defer cleanup()

	seedUser(store, "u-1", "ana@example.com", "pw123", "admin")
	creds := Credentials{Email: "ana@example.com", Secret: "pw123"}

	if _, err := engine.Identify(context.Background(), creds); err != nil {
		t.Fatalf("first Identify failed: %v", err)
	}
	firstCode := codeFromMessage(t, notifier.last(t).message)

	if _, err := engine.Identify(context.Background(), creds); err != nil {
		t.Fatalf("second Identify failed: %v", err)
	}
	secondCode := codeFromMessage(t, notifier.last(t).message)

	if notifier.count() != 2 {
		t.Fatalf("expected 2 notifications, got %d", notifier.count())
	}

	// Consuming one challenge must not touch the other.
	if _, err := engine.VerifyChallenge(context.Background(), ChallengeSubmission{UserID: "u-1", Code: firstCode}); err != nil {
		if firstCode == secondCode {
			t.Skip("codes collided; independence not observable in this run")
		}
		t.Fatalf("verifying first code failed: %v", err)
	}
	if firstCode != secondCode {
		if _, err := engine.VerifyChallenge(context.Background(), ChallengeSubmission{UserID: "u-1", Code: secondCode}); err != nil {
			t.Fatalf("second challenge should still be pending: %v", err)
		}
	}
}
