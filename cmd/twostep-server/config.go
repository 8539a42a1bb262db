package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/jmcastano/twostep"
)

// serverConfig is the full server configuration, assembled from defaults,
// an optional YAML file, and command-line flags (highest precedence).
type serverConfig struct {
	Listen    string        `koanf:"listen"`
	UsersFile string        `koanf:"users_file"`
	Redis     redisConfig   `koanf:"redis"`
	Token     tokenConfig   `koanf:"token"`
	Challenge challengeConf `koanf:"challenge"`
	Audit     auditConfig   `koanf:"audit"`
}

type redisConfig struct {
	Addr   string `koanf:"addr"`
	Prefix string `koanf:"prefix"`
}

type tokenConfig struct {
	SigningMethod  string        `koanf:"signing_method"`
	PrivateKeyFile string        `koanf:"private_key_file"`
	PublicKeyFile  string        `koanf:"public_key_file"`
	Issuer         string        `koanf:"issuer"`
	TTL            time.Duration `koanf:"ttl"`
}

type challengeConf struct {
	CodeLength int           `koanf:"code_length"`
	TTL        time.Duration `koanf:"ttl"`
}

type auditConfig struct {
	Enabled bool `koanf:"enabled"`
}

// loadConfig merges the YAML file at configPath (when non-empty) with the
// given flag set. Flag defaults apply only where neither file nor explicit
// flag provides a value.
func loadConfig(configPath string, flags *pflag.FlagSet) (*serverConfig, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	cfg := &serverConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// engineConfig translates server configuration into engine configuration,
// reading key material from disk.
func (c *serverConfig) engineConfig() (twostep.Config, error) {
	cfg := twostep.DefaultConfig()
	cfg.Token.SigningMethod = c.Token.SigningMethod
	cfg.Token.Issuer = c.Token.Issuer
	cfg.Token.TTL = c.Token.TTL
	cfg.Challenge.CodeLength = c.Challenge.CodeLength
	cfg.Challenge.TTL = c.Challenge.TTL
	cfg.Login.RedisPrefix = c.Redis.Prefix
	cfg.Audit.Enabled = c.Audit.Enabled

	if c.Token.PrivateKeyFile == "" {
		return cfg, fmt.Errorf("token.private_key_file is required")
	}
	privateKey, err := os.ReadFile(c.Token.PrivateKeyFile)
	if err != nil {
		return cfg, fmt.Errorf("read private key: %w", err)
	}
	cfg.Token.PrivateKey = privateKey

	if c.Token.PublicKeyFile != "" {
		publicKey, err := os.ReadFile(c.Token.PublicKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read public key: %w", err)
		}
		cfg.Token.PublicKey = publicKey
	}

	return cfg, nil
}

// userSpec is one entry in the users file.
type userSpec struct {
	ID             string `koanf:"id"`
	FirstName      string `koanf:"first_name"`
	MiddleName     string `koanf:"middle_name"`
	LastName       string `koanf:"last_name"`
	SecondLastName string `koanf:"second_last_name"`
	Email          string `koanf:"email"`
	Phone          string `koanf:"phone"`
	SecretDigest   string `koanf:"secret_digest"`
	RoleID         string `koanf:"role_id"`
}

// loadUserStore reads the YAML users file into an in-memory UserStore.
func loadUserStore(path string) (*fileUserStore, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load users file: %w", err)
	}

	var specs []userSpec
	if err := k.Unmarshal("users", &specs); err != nil {
		return nil, fmt.Errorf("unmarshal users: %w", err)
	}

	store := newFileUserStore()
	for i, spec := range specs {
		if spec.ID == "" || spec.Email == "" || spec.SecretDigest == "" {
			return nil, fmt.Errorf("users[%d]: id, email and secret_digest are required", i)
		}
		store.put(&twostep.User{
			ID:             spec.ID,
			FirstName:      spec.FirstName,
			MiddleName:     spec.MiddleName,
			LastName:       spec.LastName,
			SecondLastName: spec.SecondLastName,
			Email:          spec.Email,
			Phone:          spec.Phone,
			SecretHash:     spec.SecretDigest,
			RoleID:         spec.RoleID,
		})
	}
	return store, nil
}

// fileUserStore serves users loaded at startup. Created users live only in
// memory; a production deployment plugs a database-backed UserStore instead.
type fileUserStore struct {
	mu      sync.Mutex
	byID    map[string]*twostep.User
	byEmail map[string]*twostep.User
}

func newFileUserStore() *fileUserStore {
	return &fileUserStore{
		byID:    make(map[string]*twostep.User),
		byEmail: make(map[string]*twostep.User),
	}
}

func (s *fileUserStore) put(u *twostep.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u
}

func (s *fileUserStore) FindByEmail(_ context.Context, email string) (*twostep.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, twostep.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *fileUserStore) FindByID(_ context.Context, id string) (*twostep.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, twostep.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *fileUserStore) Create(_ context.Context, u *twostep.User) (*twostep.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *u
	clone.ID = uuid.NewString()
	s.byID[clone.ID] = &clone
	s.byEmail[clone.Email] = &clone
	out := clone
	return &out, nil
}
