package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"todoapp/internal/auth"
	"todoapp/internal/config"
	"todoapp/internal/handlers"
	"todoapp/internal/statscache"
	"todoapp/internal/store"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Task API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := slog.Default()

	s, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}

	cache, rdb, err := openStatsCache(ctx, cfg.Redis)
	if err != nil {
		s.Close()
		return err
	}

	hasher := auth.NewPasswordHasher(auth.DefaultBcryptCost)
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:     cfg.JWT.Secret,
		TokenDuration: cfg.JWT.TTL,
		Issuer:        cfg.JWT.Issuer,
	})
	authService := auth.NewService(s, hasher, jwtManager)
	loader := statscache.NewLoader(cache, s.Statistics, logger)
	h := handlers.New(s, authService, loader, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr, "db", cfg.DB.Driver, "redis", rdb != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"todoapp": func(ctx context.Context) error {
				logger.Info("graceful shutdown initiated")
				err := srv.Shutdown(ctx)
				if rdb != nil {
					err = errors.Join(err, rdb.Close())
				}
				return errors.Join(err, s.Close())
			},
		},
	)

	if code := <-wait; code != 0 {
		return fmt.Errorf("shutdown exited with code %d", code)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, db config.DBConfig) (store.Store, error) {
	switch db.Driver {
	case "postgres":
		s, err := store.NewPgStore(ctx, db.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		if err := os.MkdirAll(filepath.Dir(db.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		s, err := store.NewSQLiteStore(db.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// openStatsCache uses Redis when an address is configured and process
// memory otherwise. The returned client is nil for the memory cache.
func openStatsCache(ctx context.Context, rc config.RedisConfig) (statscache.Cache, *redis.Client, error) {
	if rc.Addr == "" {
		return statscache.NewMemory(), nil, nil
	}
	rdb, err := statscache.Dial(ctx, rc.Addr)
	if err != nil {
		return nil, nil, err
	}
	return statscache.NewRedis(rdb, "todoapp:", statscache.DefaultTTL), rdb, nil
}
