package twostep

import (
	"errors"
	"time"
)

// Config is the engine configuration. It is read once at [Builder.Build]
// and treated as immutable for the process lifetime; there is no runtime
// reconfiguration or key rotation.
type Config struct {
	Token     TokenConfig
	Challenge ChallengeConfig
	Secret    SecretConfig
	Login     LoginStoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig carries the process-wide signing key material. Missing or
// malformed keys fail Build; token issuance has no per-call key errors.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	TTL           time.Duration // 0 issues tokens without an exp claim
	Leeway        time.Duration
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig controls challenge code generation and lifetime.
type ChallengeConfig struct {
	// CodeLength is the number of decimal digits per challenge code.
	CodeLength int
	// TTL bounds how long a pending code stays matchable. 0 keeps codes
	// matchable until consumed.
	TTL time.Duration
}

/*
====================================
SECRET CONFIG
====================================
*/

// SecretConfig controls generated user secrets.
type SecretConfig struct {
	// GeneratedLength is the digit count of secrets created by Register.
	GeneratedLength int
}

/*
====================================
LOGIN STORE CONFIG
====================================
*/

// LoginStoreConfig configures the default Redis-backed login store.
type LoginStoreConfig struct {
	RedisPrefix string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the baseline configuration: 5-digit challenge codes
// valid for 5 minutes, 10-digit generated secrets, ed25519 signing, audit
// and metrics disabled. Key material must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "ed25519",
		},
		Challenge: ChallengeConfig{
			CodeLength: 5,
			TTL:        5 * time.Minute,
		},
		Secret: SecretConfig{
			GeneratedLength: 10,
		},
		Login: LoginStoreConfig{
			RedisPrefix: "tsl",
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate checks structural configuration. Key material is validated
// separately when the token manager is constructed during Build.
func (c Config) Validate() error {
	if c.Challenge.CodeLength < 4 || c.Challenge.CodeLength > 10 {
		return errors.New("challenge code length must be between 4 and 10 digits")
	}
	if c.Challenge.TTL < 0 {
		return errors.New("challenge TTL must not be negative")
	}
	if c.Secret.GeneratedLength < 8 || c.Secret.GeneratedLength > 64 {
		return errors.New("generated secret length must be between 8 and 64 digits")
	}
	if c.Login.RedisPrefix == "" {
		return errors.New("login store redis prefix must not be empty")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.Token.PrivateKey = append([]byte(nil), c.Token.PrivateKey...)
	out.Token.PublicKey = append([]byte(nil), c.Token.PublicKey...)
	return out
}
