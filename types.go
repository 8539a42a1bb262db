package twostep

import (
	"context"
	"strings"
)

// User is the identity record owned by the caller's user database. The
// engine reads SecretHash during credential verification and clears it on
// every value it returns; it never writes stored users except through
// [Engine.Register].
type User struct {
	ID             string
	FirstName      string
	MiddleName     string
	LastName       string
	SecondLastName string
	Email          string
	Phone          string
	SecretHash     string
	RoleID         string
}

// DisplayName joins the non-empty name components with single spaces. It is
// the name claim embedded in issued tokens.
func (u User) DisplayName() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{u.FirstName, u.MiddleName, u.LastName, u.SecondLastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Redacted returns a copy of the user with the secret digest cleared.
func (u User) Redacted() *User {
	clone := u
	clone.SecretHash = ""
	return &clone
}

// Credentials is the Step A submission: email plus plaintext secret. It is
// transient and never persisted.
type Credentials struct {
	Email  string
	Secret string
}

// ChallengeSubmission is the Step B submission: user id plus the code
// delivered out-of-band. Transient, never persisted.
type ChallengeSubmission struct {
	UserID string
	Code   string
}

// LoginRecord is the persisted state of one authentication attempt. One
// record exists per Identify call; CodeConsumed flips to true exactly once,
// at which point Token holds the issued token.
type LoginRecord struct {
	ID           string
	UserID       string
	Code         string
	CodeConsumed bool
	Token        string
	TokenActive  bool
	CreatedAt    int64
}

// AuthResult is returned by [Engine.VerifyChallenge] on success.
type AuthResult struct {
	User  *User
	Token string
}

// RegisterInput is the input for [Engine.Register]. The secret is not part
// of the input: the engine generates one and delivers it via the Notifier.
type RegisterInput struct {
	FirstName      string
	MiddleName     string
	LastName       string
	SecondLastName string
	Email          string
	Phone          string
	RoleID         string
}

// UserStore is the interface callers implement to integrate twostep with
// their user database. FindByEmail and FindByID return [ErrUserNotFound]
// for an absent user; absence is an expected outcome, not an anomaly, and
// the engine never logs it.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
}

// LoginStore persists login records and transitions them from pending to
// consumed. The default implementation is Redis-backed; callers may supply
// their own through [Builder.WithLoginStore].
//
// Consume must be atomic with respect to FindPendingMatch: of two callers
// racing on the same record, exactly one may win; the loser receives
// [ErrLoginRecordConsumed]. A second Consume on a consumed record must not
// overwrite the stored token.
type LoginStore interface {
	CreatePending(ctx context.Context, userID, code string) (*LoginRecord, error)
	FindPendingMatch(ctx context.Context, userID, code string) (*LoginRecord, error)
	Consume(ctx context.Context, recordID, token string) error
}

// Notifier delivers challenge codes and generated secrets out-of-band (SMS,
// email). Delivery is best-effort: the engine logs and counts failures but
// never propagates them to the authenticating caller.
type Notifier interface {
	Send(ctx context.Context, contact, message string) error
}

// NoOpNotifier discards all messages. It is the default when no Notifier is
// configured.
type NoOpNotifier struct{}

// Send implements [Notifier].
func (NoOpNotifier) Send(context.Context, string, string) error { return nil }
