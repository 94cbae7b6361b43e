// Package daemon wires the long-running chatlined process.
package daemon

import (
	"context"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/chats"
	"github.com/matheus3301/chatline/internal/config"
	"github.com/matheus3301/chatline/internal/domain"
	"github.com/matheus3301/chatline/internal/lock"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/outbox"
	"github.com/matheus3301/chatline/internal/realtime"
	"github.com/matheus3301/chatline/internal/session"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/store"
	intsync "github.com/matheus3301/chatline/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	ProfileName string
	Profile     config.Profile
	// WatchChat is activated and kept caught up once the chat list loads.
	WatchChat string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClient,
			provideCache,
			provideWatcher,
			provideSyncEngine,
			provideSender,
			provideFollower,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName, p.Profile.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(p Params, logger *zap.Logger) (*api.Client, error) {
	return api.New(p.Profile.BaseURL, p.Profile.Token, api.WithLogger(logger))
}

func provideCache(client *api.Client, b *bus.Bus, logger *zap.Logger) *chats.Cache {
	return chats.NewCache(client, b, logger)
}

// provideWatcher returns nil when the profile has no ws_url.
func provideWatcher(p Params, b *bus.Bus, m *status.Machine, logger *zap.Logger) *realtime.Watcher {
	if p.Profile.WSURL == "" {
		logger.Info("no ws_url configured, realtime disabled")
		return nil
	}
	return realtime.New(p.Profile.WSURL, p.Profile.Token, b, m, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger)
}

func provideSender(p Params, db *store.DB, client *api.Client, cache *chats.Cache, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, cache, b, logger, p.Profile.ImageMaxDimension)
}

func provideFollower(p Params, cache *chats.Cache, client *api.Client, b *bus.Bus, logger *zap.Logger) *Follower {
	me := domain.User{ID: p.Profile.UserID, Username: p.Profile.Username}
	return NewFollower(cache, client, me, b, logger)
}

type lifecycleParams struct {
	fx.In

	Params   Params
	Lock     *lock.Lock
	DB       *store.DB
	Cache    *chats.Cache
	Watcher  *realtime.Watcher
	Engine   *intsync.Engine
	Sender   *outbox.Sender
	Follower *Follower
	Logger   *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, sh fx.Shutdowner, lp lifecycleParams) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := lp.Logger

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Persistence subscribes first so the initial chat list is stored.
			lp.Engine.Start(ctx)
			lp.Follower.Start(ctx)
			lp.Sender.Start(ctx)

			if lp.Watcher != nil {
				go func() {
					if err := lp.Watcher.Run(ctx); err != nil {
						logger.Error("realtime feed stopped", zap.Error(err))
					}
				}()
			}

			go func() {
				if err := lp.Cache.Load(ctx); err != nil {
					logger.Error("initial chat list load failed", zap.Error(err))
				}
				if lp.Params.WatchChat == "" {
					return
				}
				if _, err := lp.Follower.Open(ctx, lp.Params.WatchChat); err != nil {
					logger.Error("cannot follow chat", zap.String("chat_id", lp.Params.WatchChat), zap.Error(err))
					if ctx.Err() == nil {
						_ = sh.Shutdown(fx.ExitCode(1))
					}
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			lp.Follower.Stop()
			lp.Sender.Stop()
			lp.Engine.Stop()
			lp.Follower.Close()
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
