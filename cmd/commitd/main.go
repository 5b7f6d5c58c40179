package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/commitcore/internal/api"
	"github.com/jmerrifield20/commitcore/internal/commitlog"
	"github.com/jmerrifield20/commitcore/internal/identity"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("commitd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	if err := loadConfig(viper.GetViper()); err != nil {
		return err
	}
	if viper.ConfigFileUsed() == "" {
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Signing identity ─────────────────────────────────────────────────────
	store := identity.NewKeyStore(viper.GetString("identity.key_dir"))
	keyName := viper.GetString("identity.key_name")
	key, created, err := store.LoadOrCreate(keyName, viper.GetString("identity.passphrase"))
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	defer key.Zero()
	logger.Info("signing key ready",
		zap.String("name", keyName),
		zap.Bool("created", created),
		zap.Stringer("public_key", key.PublicKey()),
	)

	// ── Commitment log ───────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, closeLog, err := openLog(ctx, viper.GetString("database.url"), logger)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := log.Verify(ctx); err != nil {
		logger.Warn("commit log integrity check FAILED", zap.Error(err))
	} else {
		n, _ := log.Len(ctx)
		head, _ := log.Head(ctx)
		logger.Info("commit log verified",
			zap.Int("entries", n),
			zap.String("head", head),
		)
	}

	auditor := commitlog.NewAuditor(log, viper.GetDuration("audit.interval"), logger)
	auditor.SetMetricsRecord(api.RecordAudit)
	go auditor.Start(ctx)

	// ── Auth ─────────────────────────────────────────────────────────────────
	var tokens *identity.TokenIssuer
	if secret := viper.GetString("auth.token_secret"); secret != "" {
		tokens = identity.NewTokenIssuer([]byte(secret), viper.GetString("auth.issuer"), viper.GetDuration("auth.token_ttl"))
	} else {
		logger.Warn("auth.token_secret not set: POST /commitments is open")
	}

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	workers := viper.GetInt("merkle.workers")
	router := api.NewRouter(api.RouterConfig{
		CORSOrigins:  viper.GetStringSlice("server.cors_origins"),
		RateLimitRPS: viper.GetInt("server.rate_limit_rps"),
		MaxBodyBytes: viper.GetInt64("server.max_body_bytes"),
	}, logger,
		api.NewSignerHandler(key.PublicKey()),
		api.NewMerkleHandler(workers),
		api.NewLedgerHandler(log, logger),
		api.NewCommitHandler(key, log, tokens, workers, logger),
	)

	port := viper.GetInt("server.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("commitd HTTP listening", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP listen: %w", err)
	}
	logger.Info("shutting down commitd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("commitd stopped")
	return nil
}

// loadConfig registers defaults and reads configs/commitd.yaml if present.
// Every key can be overridden from the environment, e.g. DATABASE_URL.
func loadConfig(v *viper.Viper) error {
	v.SetConfigName("commitd")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("identity.key_dir", "keys")
	v.SetDefault("identity.key_name", "commitd")
	v.SetDefault("identity.passphrase", "")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.issuer", "commitd")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("database.url", "")
	v.SetDefault("merkle.workers", runtime.NumCPU())
	v.SetDefault("audit.interval", 10*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// openLog returns a Postgres-backed log when dbURL is set and an in-memory
// log otherwise.
func openLog(ctx context.Context, dbURL string, logger *zap.Logger) (commitlog.Log, func(), error) {
	if dbURL == "" {
		logger.Warn("database.url not set: using in-memory commit log (not durable)")
		return commitlog.NewMemoryLog(), func() {}, nil
	}

	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	pg := commitlog.NewPostgresLog(db, logger)
	if err := pg.EnsureGenesis(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return pg, db.Close, nil
}
