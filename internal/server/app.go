// Package server wires the formauth application together: storage, session
// backend, credential service, the HTTP form endpoint, the gRPC health
// endpoint and the expired-session sweeper, with graceful shutdown on
// SIGINT, SIGTERM or SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/formauth/internal/cryptox"
	"github.com/dmitrijs2005/formauth/internal/dbx"
	"github.com/dmitrijs2005/formauth/internal/logging"
	"github.com/dmitrijs2005/formauth/internal/server/config"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/formauth/internal/server/services"
	"github.com/dmitrijs2005/formauth/internal/server/sessions"
	"github.com/dmitrijs2005/formauth/internal/server/web"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/formauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	sessions    sessions.Manager
	hasher      cryptox.Hasher
	credentials *services.CredentialService
}

// NewApp validates cfg, connects storage and builds the credential service.
// The caller must Close the app.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	app := &App{config: cfg, logger: logger}

	usersRepo, rm, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	if err := app.openSessions(ctx, rm); err != nil {
		app.Close()
		return nil, err
	}

	hasher, err := cryptox.NewHasher(cfg.PasswordHashAlgorithm, cfg.BcryptCost)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.hasher = hasher

	app.credentials, err = services.NewCredentialService(usersRepo, app.sessions, hasher, logger, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

// openStore connects the user store and applies migrations.
func (app *App) openStore(ctx context.Context) (users.Repository, repomanager.RepositoryManager, error) {
	if app.config.DatabaseDriver == config.DriverMemory {
		app.logger.Warn(ctx, "using in-memory user store; accounts are lost on restart")
		return users.NewMemoryRepository(), nil, nil
	}

	db, err := dbx.Open(ctx, app.config.DatabaseDriver, app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	rm, err := repomanager.NewRepositoryManager(app.config.DatabaseDriver)
	if err != nil {
		return nil, nil, err
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	return rm.Users(db), rm, nil
}

func (app *App) openSessions(ctx context.Context, rm repomanager.RepositoryManager) error {
	ttl := app.config.SessionTTL

	switch app.config.SessionBackend {
	case config.SessionBackendMemory:
		app.sessions = sessions.NewMemoryManager(ttl)
	case config.SessionBackendSQL:
		app.sessions = sessions.NewSQLManager(app.db, rm.Sessions, ttl)
	case config.SessionBackendRedis:
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
			DB:       app.config.RedisDB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		app.sessions = sessions.NewRedisManager(app.redis, app.config.RedisKeyPrefix, ttl)
	case config.SessionBackendJWT:
		app.sessions = sessions.NewJWTManager([]byte(app.config.SecretKey), ttl)
	default:
		return fmt.Errorf("unknown session backend %q", app.config.SessionBackend)
	}

	return nil
}

// healthCheck pings every external dependency in use.
func (app *App) healthCheck(ctx context.Context) error {
	if app.db != nil {
		if err := app.db.PingContext(ctx); err != nil {
			return err
		}
	}
	if app.redis != nil {
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases database and redis connections.
func (app *App) Close() {
	if app.db != nil {
		_ = app.db.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	gin.SetMode(gin.ReleaseMode)

	s, err := web.NewServer(app.config.EndpointAddrHTTP, app.credentials, app.healthCheck, app.logger, web.Options{
		SecretKey:     app.config.SecretKey,
		SecureCookies: app.config.SecureCookies,
		SessionTTL:    app.config.SessionTTL,
	})
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.healthCheck, app.config.HealthProbeInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runSweeper purges expired sessions every interval until ctx is done.
func (app *App) runSweeper(ctx context.Context, sw sessions.Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sw.Sweep(ctx)
			if err != nil {
				app.logger.Error(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Debug(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or a
// server fails to start.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"database_driver", app.config.DatabaseDriver,
		"session_backend", app.config.SessionBackend,
		"password_hash", app.hasher.Name(),
	)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	if sw, ok := app.sessions.(sessions.Sweeper); ok && app.config.SessionSweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.runSweeper(ctx, sw, app.config.SessionSweepInterval)
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
}
