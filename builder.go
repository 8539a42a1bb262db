package twostep

import (
	"errors"

	"github.com/jmcastano/twostep/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Collaborators and configuration are supplied
// through With* calls; Build validates everything and wires the engine.
type Builder struct {
	config Config
	redis  *redis.Client

	userStore  UserStore
	loginStore LoginStore
	notifier   Notifier
	auditSink  AuditSink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the default login store.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserStore supplies the caller's user database integration. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithLoginStore overrides the default Redis-backed login store.
func (b *Builder) WithLoginStore(store LoginStore) *Builder {
	b.loginStore = store
	return b
}

// WithNotifier supplies the out-of-band delivery collaborator. When absent,
// codes are generated but not delivered anywhere.
func (b *Builder) WithNotifier(notifier Notifier) *Builder {
	b.notifier = notifier
	return b
}

// WithAuditSink supplies the audit event consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates configuration and collaborators and returns a ready
// Engine. Signing-key problems fail here, at process startup, so token
// issuance has no per-call key errors.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}
	if b.loginStore == nil && b.redis == nil {
		return nil, errors.New("redis client or login store required")
	}

	manager, err := token.NewManager(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		TTL:           cfg.Token.TTL,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		userStore: b.userStore,
		tokens:    manager,
	}

	engine.loginStore = b.loginStore
	if engine.loginStore == nil {
		engine.loginStore = newRedisLoginStore(b.redis, cfg.Login, cfg.Challenge.TTL)
	}
	engine.notifier = b.notifier
	if engine.notifier == nil {
		engine.notifier = NoOpNotifier{}
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true
	return engine, nil
}
