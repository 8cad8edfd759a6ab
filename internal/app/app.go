package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sevasetu/internal/automation"
	"github.com/MrSnakeDoc/sevasetu/internal/automation/dgvcl"
	"github.com/MrSnakeDoc/sevasetu/internal/config"
	"github.com/MrSnakeDoc/sevasetu/internal/directory"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver"
	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/metrics"
	"github.com/MrSnakeDoc/sevasetu/internal/orchestrator"
	"github.com/MrSnakeDoc/sevasetu/internal/redis"
	"github.com/MrSnakeDoc/sevasetu/internal/relay"
	"github.com/MrSnakeDoc/sevasetu/internal/scheduler"
	"github.com/MrSnakeDoc/sevasetu/internal/sessions"
	redisstore "github.com/MrSnakeDoc/sevasetu/internal/store/redis"
	"github.com/MrSnakeDoc/sevasetu/internal/utils"
	"github.com/MrSnakeDoc/sevasetu/internal/version"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	redisClient  *goredis.Client
	relay        *relay.Relay
	orchestrator *orchestrator.Orchestrator
	reloader     *scheduler.DirectoryReloader
	reaper       *scheduler.SessionReaper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Redis is optional: without it sessions and counters live in memory only
	var (
		redisClient *goredis.Client
		store       *redisstore.Store
	)
	if cfg.RedisEnabled() {
		client, err := redis.New(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		redisClient = client
		store = redisstore.NewStore(client)
		loggerClient.Info("Redis initialized successfully")
	} else {
		loggerClient.Info("SEVA_REDIS_ADDR not set, running memory-only")
	}

	// Interfaces stay nil (not typed-nil) when Redis is disabled
	var (
		persister sessions.Persister
		mirror    scheduler.SupplierMirror
	)
	if store != nil {
		persister = store
		mirror = store
	}

	registry, err := sessions.New(sessions.Options{
		Capacity:  cfg.SessionCapacity,
		Persister: persister,
		Logger:    loggerClient.With(logger.String("component", "sessions")),
		OnEvict: func(_, reason string) {
			metrics.SessionsEvicted.WithLabelValues(reason).Inc()
		},
	})
	if err != nil {
		loggerClient.Fatalf("failed to create session registry: %v", err)
	}

	if store != nil {
		syncer := scheduler.NewRedisSyncer(store, registry, loggerClient)
		if err := syncer.Sync(context.Background()); err != nil {
			loggerClient.Warn("failed to restore sessions from redis, starting empty",
				logger.Error(err))
		}
	}

	statusRelay := relay.New(registry, loggerClient.With(logger.String("component", "relay")), cfg.RelayIdleWindow)

	bots := automation.NewRegistry()
	bots.Register(automation.ProviderDGVCL, dgvcl.New(
		dgvcl.Config{
			LoginURL:     cfg.DGVCLLoginURL,
			LoginTimeout: cfg.DGVCLLoginTimeout,
		},
		dgvcl.RodLauncher(cfg.BrowserBin, cfg.BrowserHeadless, cfg.DGVCLStepTimeout),
		loggerClient.With(logger.String("provider", "dgvcl")),
	))

	orch := orchestrator.New(orchestrator.Options{
		Store:      registry,
		Publisher:  statusRelay,
		Bots:       bots,
		Capability: automation.BrowserCapability(cfg.BrowserBin),
		Logger:     loggerClient.With(logger.String("component", "orchestrator")),
	})
	if err := orch.Available(); err != nil {
		loggerClient.Warn("automation disabled, /rpa/start will be rejected",
			logger.Error(err),
			logger.String("install", automation.InstallHint))
	}

	index := directory.NewIndex()

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	reloader := scheduler.NewDirectoryReloader(
		directory.NewLoader(cfg.SuppliersFile),
		mirror,
		index,
		loggerClient,
		cfg.ReloadInterval,
		reloadTrigger,
	)

	reaper := scheduler.NewSessionReaper(
		registry,
		loggerClient,
		cfg.ReaperInterval,
		cfg.SessionRetention,
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		CORSOrigins:     cfg.CORSOrigins,
		StartRatePerMin: cfg.StartRatePerMin,
		StartBurst:      cfg.StartBurst,
		Directory:       index,
		Store:           store,
		Sessions:        registry,
		Relay:           statusRelay,
		Orchestrator:    orch,
		HomeURL:         cfg.HomeURL,
		PortalLogin:     cfg.DGVCLLoginURL,
		ReloadTrigger:   reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		server:       server,
		redisClient:  redisClient,
		relay:        statusRelay,
		orchestrator: orch,
		reloader:     reloader,
		reaper:       reaper,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting SevaSetu %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String("sevasetu"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start directory reloader (loads suppliers and starts periodic refresh)
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start directory reloader: %w", err)
	}
	a.logger.Info("directory reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	a.reaper.Start(ctx)
	a.logger.Info("session reaper started",
		logger.Duration("interval", a.cfg.ReaperInterval),
		logger.Duration("retention", a.cfg.SessionRetention))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then drain running automations
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("failed to stop server cleanly", logger.Error(err))
	}
	if err := a.orchestrator.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("automations still running at shutdown", logger.Error(err))
	}
	a.relay.Close()

	a.reloader.Stop()
	a.reaper.Stop()

	if a.redisClient != nil {
		utils.MustClose(a.redisClient, a.logger, "redis")
	}

	_ = a.logger.Sync()
	a.logger.Info("✅ SevaSetu stopped cleanly")
	return nil
}
