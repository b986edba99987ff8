package main

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/botfleet/api/handler"
	"github.com/fastygo/botfleet/internal/bot"
	"github.com/fastygo/botfleet/internal/config"
	"github.com/fastygo/botfleet/internal/infrastructure/buffer"
	"github.com/fastygo/botfleet/internal/infrastructure/history"
	"github.com/fastygo/botfleet/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/botfleet/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/botfleet/internal/infrastructure/redis"
	"github.com/fastygo/botfleet/internal/infrastructure/registry"
	"github.com/fastygo/botfleet/internal/infrastructure/schema"
	"github.com/fastygo/botfleet/internal/infrastructure/workspace"
	"github.com/fastygo/botfleet/internal/middleware"
	"github.com/fastygo/botfleet/internal/router"
	"github.com/fastygo/botfleet/internal/services"
	"github.com/fastygo/botfleet/internal/services/lifecycle"
	"github.com/fastygo/botfleet/internal/supervisor"
	"github.com/fastygo/botfleet/pkg/httpcontext"
	"github.com/fastygo/botfleet/pkg/logger"
	"github.com/fastygo/botfleet/repository"
	"github.com/fastygo/botfleet/repository/postgres"
	redisRepo "github.com/fastygo/botfleet/repository/redis"
	"github.com/fastygo/botfleet/usecase"
	accountUC "github.com/fastygo/botfleet/usecase/account"
	auditUC "github.com/fastygo/botfleet/usecase/audit"
	fleetUC "github.com/fastygo/botfleet/usecase/fleet"
	historyUC "github.com/fastygo/botfleet/usecase/history"
	workspaceUC "github.com/fastygo/botfleet/usecase/workspace"
)

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	zapLogger, err := logger.New(loggerConfig(cfg))
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	accounts, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("open account registry: %w", err)
	}
	manager.Register("registry", func(context.Context) error {
		return accounts.Close()
	})

	store, err := workspace.New(workspace.Options{
		Root:          cfg.Workspace.Root,
		BackupDir:     cfg.Workspace.BackupDir,
		MaxMediaBytes: cfg.Workspace.MaxMediaBytes,
	}, zapLogger.Named("workspace"))
	if err != nil {
		return fmt.Errorf("prepare workspace root: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return fmt.Errorf("compile document schemas: %w", err)
	}

	histories := history.NewRegistry(store.HistoryPath, zapLogger.Named("history"))
	manager.Register("history", histories.CloseAll)

	// Optional backends. Monitor treats a nil dependency as disabled, so only
	// assign the interfaces when the backend is configured.
	var (
		pgPinger    monitor.Pinger
		redisPinger monitor.Pinger
		bufferSize  monitor.BufferSizer
		auditRepo   repository.AuditRepository
		auditSink   usecase.AuditSink
		mirror      repository.StatusMirror
		bufferStore *buffer.Store
	)

	if cfg.Database.Enabled() {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			return fmt.Errorf("postgres connection failed: %w", err)
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		pgPinger = pool
		auditRepo = postgres.NewAuditRepository(pool)

		bufferStore, err = buffer.Open(cfg.Buffer.Path, "audit")
		if err != nil {
			return fmt.Errorf("open buffer store: %w", err)
		}
		manager.Register("buffer", func(context.Context) error {
			return bufferStore.Close()
		})
		bufferSize = bufferStore
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		manager.Register("redis", func(context.Context) error {
			return redisClient.Close()
		})
		redisPinger = monitor.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		mirror = redisRepo.NewStatusMirror(redisClient, cfg.Redis.KeyPrefix)
	}

	mon := monitor.New(pgPinger, redisPinger, bufferSize, 10*time.Second, zapLogger.Named("monitor"))
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	if bufferStore != nil {
		processor := services.NewBufferProcessor(bufferStore, mon, auditRepo, zapLogger.Named("buffer"), services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		})
		processor.Start()
		manager.Register("buffer_processor", func(ctx context.Context) error {
			processor.Stop(ctx)
			return processor.Drain(ctx)
		})
		auditSink = services.NewAuditBridge(processor)
	}

	launcher, err := newLauncher(cfg, store, histories, zapLogger)
	if err != nil {
		return fmt.Errorf("worker launcher: %w", err)
	}
	location, err := time.LoadLocation(cfg.Supervisor.Timezone)
	if err != nil {
		return fmt.Errorf("SUPERVISOR_TIMEZONE: %w", err)
	}
	var supervisorOpts []supervisor.Option
	if mirror != nil {
		supervisorOpts = append(supervisorOpts, supervisor.WithStatusMirror(mirror))
	}
	sup, err := supervisor.New(accounts, launcher, supervisor.Options{
		StartTimeout:     cfg.Supervisor.StartTimeout,
		StopTimeout:      cfg.Supervisor.StopTimeout,
		RestartGrace:     cfg.Supervisor.RestartGrace,
		HeartbeatTimeout: cfg.Supervisor.HeartbeatTimeout,
		MaxConcurrent:    cfg.Supervisor.MaxConcurrent,
		AutoRestart:      cfg.Supervisor.AutoRestart,
		Policy: supervisor.RestartPolicy{
			MaxRestarts: cfg.Supervisor.MaxRestarts,
			Window:      cfg.Supervisor.RestartWindow,
			MinUptime:   cfg.Supervisor.MinUptime,
			Delay:       cfg.Supervisor.RestartDelay,
		},
		CronRestart: cfg.Supervisor.CronRestart,
		Location:    location,
	}, zapLogger.Named("supervisor"), supervisorOpts...)
	if err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	sup.StartScheduler()
	manager.Register("supervisor", sup.Shutdown)

	if cfg.Supervisor.AutoStart {
		results, err := sup.StartAll(appCtx)
		if err != nil {
			zapLogger.Warn("auto start failed", zap.Error(err))
		}
		for id, res := range results {
			if !res.Success {
				zapLogger.Warn("auto start skipped account", zap.String("account_id", id), zap.String("error", res.Error))
			}
		}
	}

	accountUseCase := accountUC.New(accounts, store, sup, histories, auditSink, zapLogger.Named("accounts"))
	workspaceUseCase := workspaceUC.New(accounts, store, validator, auditSink, zapLogger.Named("workspace"))
	fleetUseCase := fleetUC.New(sup, auditSink, zapLogger.Named("fleet"))
	historyUseCase := historyUC.New(accounts, histories, zapLogger.Named("history"))
	auditUseCase := auditUC.New(auditRepo)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	batchTimeout := cfg.Supervisor.StartTimeout + cfg.Supervisor.StopTimeout + cfg.Context.RequestTimeout

	handlers := router.Handlers{
		Account: apiHandler.NewAccountHandler(accountUseCase, workspaceUseCase, ctxAdapter, zapLogger),
		Fleet:   apiHandler.NewFleetHandler(fleetUseCase, batchTimeout, ctxAdapter, zapLogger),
		Config:  apiHandler.NewConfigHandler(workspaceUseCase, ctxAdapter, zapLogger),
		Media:   apiHandler.NewMediaHandler(workspaceUseCase, ctxAdapter, zapLogger),
		History: apiHandler.NewHistoryHandler(historyUseCase, ctxAdapter, zapLogger),
		Audit:   apiHandler.NewAuditHandler(auditUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, fleetUseCase, ctxAdapter, zapLogger),
	}

	if cfg.JWT.Secret == "" {
		zapLogger.Warn("JWT_SECRET is not set, the control API is unauthenticated")
	}
	r := router.New(handlers, middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger))

	server := &fasthttp.Server{
		Handler:            middleware.Chain(r.Handler, middleware.CORS(cfg.CORS.AllowedOrigins)),
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxConnsPerIP:      cfg.HTTP.MaxConn,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		Name:               cfg.AppName,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("supervisor_mode", cfg.Supervisor.Mode))
		serveErr <- server.ListenAndServe(cfg.Address())
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	var runErr error
	select {
	case <-appCtx.Done():
	case runErr = <-serveErr:
		zapLogger.Error("server crashed", zap.Error(runErr))
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	return runErr
}

// newLauncher picks child processes or in-process goroutines per
// SUPERVISOR_MODE.
func newLauncher(cfg *config.Config, store *workspace.Store, histories *history.Registry, log *zap.Logger) (supervisor.Launcher, error) {
	if cfg.Supervisor.Mode == "inproc" {
		runner := bot.NewRunner(store, histories, cfg.Supervisor.HeartbeatInterval, log.Named("worker"))
		return supervisor.NewTaskLauncher(runner.Run), nil
	}
	return supervisor.NewExecLauncher(cfg.Supervisor.WorkerCommand, cfg.Supervisor.WorkerArgs)
}
