package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/internal/bot"
	"github.com/fastygo/botfleet/internal/config"
	"github.com/fastygo/botfleet/internal/infrastructure/history"
	"github.com/fastygo/botfleet/internal/infrastructure/workspace"
	"github.com/fastygo/botfleet/internal/services/lifecycle"
	"github.com/fastygo/botfleet/internal/supervisor"
	"github.com/fastygo/botfleet/pkg/logger"
)

// workerCommand is the child process the supervisor launches in process
// mode. Stdout carries the ready/heartbeat protocol; logs go to stderr and
// the account's log file.
func workerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Run the bot of one account (launched by the supervisor)",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true, Usage: "account id"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			err := runWorker(ctx, c.String("account"))
			if domain.IsDomainError(err, domain.ErrCodeInvalid) {
				return cli.Exit(err.Error(), supervisor.ExitConfig)
			}
			return err
		},
	}
}

func runWorker(ctx context.Context, accountID string) error {
	if err := domain.ValidateAccountID(accountID); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "config error", err)
	}

	store, err := workspace.New(workspace.Options{
		Root:          cfg.Workspace.Root,
		BackupDir:     cfg.Workspace.BackupDir,
		MaxMediaBytes: cfg.Workspace.MaxMediaBytes,
	}, nil)
	if err != nil {
		return err
	}
	if !store.Exists(accountID) {
		return domain.OpError("worker", accountID, domain.WrapError(domain.ErrCodeInvalid, "workspace is missing", nil))
	}
	logPath, err := store.LogPath(accountID)
	if err != nil {
		return err
	}
	zapLogger, closeLog, err := logger.NewWithFile(loggerConfig(cfg), logPath)
	if err != nil {
		return fmt.Errorf("open worker log: %w", err)
	}
	defer closeLog()
	defer zapLogger.Sync()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	manager := lifecycle.New(cfg.Supervisor.StopTimeout, zapLogger)
	manager.Listen(cancel)

	histories := history.NewRegistry(store.HistoryPath, zapLogger)
	manager.Register("history", histories.CloseAll)

	runner := bot.NewRunner(store, histories, cfg.Supervisor.HeartbeatInterval, zapLogger)
	runErr := runner.Run(runCtx, accountID, supervisor.NewLineReporter(os.Stdout))
	if runErr != nil {
		zapLogger.Error("worker failed", zap.String("account_id", accountID), zap.Error(runErr))
	}
	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Warn("worker cleanup failed", zap.Error(err))
	}
	return runErr
}
