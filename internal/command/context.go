package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/monsters-club/lounge/internal/auth"
	"github.com/monsters-club/lounge/internal/config"
	"github.com/monsters-club/lounge/internal/core"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/logging"
	"github.com/monsters-club/lounge/internal/lounge"
	"github.com/monsters-club/lounge/internal/metrics"
	"github.com/monsters-club/lounge/internal/redisstore"
	"github.com/monsters-club/lounge/internal/sqlstore"
	"github.com/monsters-club/lounge/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sessionFileEnv overrides where the signed-in session is kept.
const sessionFileEnv = "LOUNGE_SESSION_FILE"

// readyTimeout bounds the wait for a binding's first snapshot.
const readyTimeout = 10 * time.Second

// CommandContext provides shared command resources.
type CommandContext struct {
	Project  core.Project
	Config   config.Config
	Logger   *zap.Logger
	Store    docstore.Store
	Auth     *auth.Service
	Sessions *auth.SessionStore
	JSONMode bool
}

// GetContext resolves the project, its config and an open store.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	projectDir, _ := cmd.Flags().GetString("project")
	jsonMode, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	project, err := core.DiscoverProject(projectDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(project)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cmd.Context(), cfg.Store, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	sessions, err := sessionStore()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &CommandContext{
		Project:  project,
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Auth:     auth.NewService(store, auth.WithLogger(logger)),
		Sessions: sessions,
		JSONMode: jsonMode,
	}, nil
}

// Close releases the store and flushes the logger.
func (c *CommandContext) Close() {
	if err := c.Store.Close(); err != nil {
		c.Logger.Debug("close store", zap.Error(err))
	}
	_ = c.Logger.Sync()
}

// Identity resolves the saved session on every call.
func (c *CommandContext) Identity() lounge.IdentitySource {
	return auth.SessionIdentity{Service: c.Auth, Sessions: c.Sessions}
}

// RequireUser returns the signed-in identity or auth.ErrNoSession.
func (c *CommandContext) RequireUser(ctx context.Context) (*types.Identity, error) {
	who, err := c.Identity().Current(ctx)
	if err != nil {
		return nil, err
	}
	if who == nil {
		return nil, auth.ErrNoSession
	}
	return who, nil
}

// OpenController opens the chat controller and waits for the first
// snapshot.
func (c *CommandContext) OpenController(ctx context.Context) (*lounge.Controller, error) {
	ctrl, err := lounge.Open(ctx, c.Store, c.Identity(),
		lounge.WithLogger(c.Logger),
		lounge.WithFallbackName(c.Config.Chat.FallbackName),
		lounge.WithAtomicReactions(c.Config.Chat.AtomicReactions),
	)
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := ctrl.Wait(waitCtx, func([]types.Message) bool { return true }); err != nil {
		_ = ctrl.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return ctrl, nil
}

func sessionStore() (*auth.SessionStore, error) {
	if path := os.Getenv(sessionFileEnv); path != "" {
		return auth.NewSessionStore(path), nil
	}
	path, err := auth.DefaultSessionPath()
	if err != nil {
		return nil, err
	}
	return auth.NewSessionStore(path), nil
}

// openStore opens the configured backend wrapped with metrics.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (docstore.Store, error) {
	var (
		store docstore.Store
		err   error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		store = docstore.NewMemory()
	case config.BackendSQLite:
		store, err = sqlstore.Open(cfg.SQLitePath,
			sqlstore.WithLogger(logger),
			sqlstore.WithPollInterval(time.Duration(cfg.PollInterval)),
		)
	case config.BackendRedis:
		if ctx == nil {
			ctx = context.Background()
		}
		store, err = redisstore.Open(ctx, cfg.RedisURL, redisstore.WithLogger(logger))
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", zap.String("backend", cfg.Backend))
	return metrics.InstrumentStore(store), nil
}
