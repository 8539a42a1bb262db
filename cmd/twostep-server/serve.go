package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jmcastano/twostep"
)

const (
	defaultListen     = ":8080"
	defaultRedisAddr  = "localhost:6379"
	defaultPrefix     = "tsl"
	defaultCodeLength = 5
	defaultCodeTTL    = 5 * time.Minute
)

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the HTTP server exposing identification, challenge verification,
and registration endpoints. Configuration merges a YAML file (--config)
with command-line flags; flags win.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file path")
	cmd.Flags().String("listen", defaultListen, "HTTP listen address")
	cmd.Flags().String("users_file", "", "YAML file with the served user accounts")
	cmd.Flags().String("redis.addr", defaultRedisAddr, "redis address")
	cmd.Flags().String("redis.prefix", defaultPrefix, "redis key prefix for login records")
	cmd.Flags().String("token.signing_method", "ed25519", "token signing method (ed25519 or hs256)")
	cmd.Flags().String("token.private_key_file", "", "path to the signing key")
	cmd.Flags().String("token.public_key_file", "", "path to the verification key (ed25519)")
	cmd.Flags().String("token.issuer", "", "issuer claim for issued tokens")
	cmd.Flags().Duration("token.ttl", 0, "token lifetime (0 = no expiry claim)")
	cmd.Flags().Int("challenge.code_length", defaultCodeLength, "challenge code digits")
	cmd.Flags().Duration("challenge.ttl", defaultCodeTTL, "challenge code lifetime")
	cmd.Flags().Bool("audit.enabled", false, "emit JSON audit events to stdout")

	return cmd
}

// runServe builds the engine and serves HTTP until the context is canceled.
func runServe(ctx context.Context, cfg *serverConfig) error {
	if cfg.UsersFile == "" {
		return errors.New("users_file is required")
	}

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	users, err := loadUserStore(cfg.UsersFile)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	builder := twostep.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithNotifier(logNotifier{}).
		WithMetricsEnabled(true)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(twostep.NewJSONWriterSink(os.Stdout))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newMux(engine),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("twostep-server: listening on %s", cfg.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Print("twostep-server: shutting down")
	return server.Shutdown(shutdownCtx)
}

// logNotifier stands in for an SMS/email gateway: it logs the contact and
// message. Replace with a real Notifier for production use.
type logNotifier struct{}

func (logNotifier) Send(_ context.Context, contact, message string) error {
	log.Printf("twostep-server: notify %s: %s", contact, message)
	return nil
}
