package account

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/repository"
	"github.com/fastygo/botfleet/usecase"
)

// Workspace is the workspace surface the account lifecycle touches.
type Workspace interface {
	Init(ctx context.Context, accountID string) error
	Exists(accountID string) bool
	CookiesExist(accountID string) bool
	ReadSettings(ctx context.Context, accountID string) (domain.Settings, error)
	Backup(ctx context.Context, accountID string) (string, error)
	Remove(ctx context.Context, accountID string) error
}

// Workers is the supervisor surface the account lifecycle touches.
type Workers interface {
	Stop(ctx context.Context, accountID string) error
	Forget(ctx context.Context, accountID string) error
}

// HistoryCloser releases an account's open history database.
type HistoryCloser interface {
	Close(accountID string) error
}

// View is an account augmented with workspace-derived fields.
type View struct {
	domain.Account
	WALink       string `json:"wa_link,omitempty"`
	FolderExists bool   `json:"folder_exists"`
	CookiesExist bool   `json:"cookies_exist"`
}

type Listing struct {
	Accounts []View `json:"accounts"`
	Total    int    `json:"total"`
	Enabled  int    `json:"enabled"`
}

type UseCase struct {
	accounts  repository.AccountRepository
	workspace Workspace
	workers   Workers
	history   HistoryCloser
	audit     usecase.AuditSink
	logger    *zap.Logger

	cacheMu sync.Mutex
	cached  []domain.Account
}

func New(accounts repository.AccountRepository, workspace Workspace, workers Workers, history HistoryCloser, audit usecase.AuditSink, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		accounts:  accounts,
		workspace: workspace,
		workers:   workers,
		history:   history,
		audit:     audit,
		logger:    logger,
	}
}

// List returns every account in registry order.
func (uc *UseCase) List(ctx context.Context) (Listing, error) {
	accounts, err := uc.registry(ctx)
	if err != nil {
		return Listing{}, err
	}
	out := Listing{Accounts: make([]View, 0, len(accounts)), Total: len(accounts)}
	for _, acc := range accounts {
		if acc.Enabled {
			out.Enabled++
		}
		out.Accounts = append(out.Accounts, uc.view(ctx, acc))
	}
	return out, nil
}

func (uc *UseCase) Get(ctx context.Context, id string) (View, error) {
	acc, err := uc.accounts.Get(ctx, id)
	if err != nil {
		return View{}, domain.OpError("get", id, err)
	}
	return uc.view(ctx, *acc), nil
}

// Create registers the account and scaffolds its workspace. A workspace
// failure rolls the registry entry back.
func (uc *UseCase) Create(ctx context.Context, acc domain.Account) (view View, err error) {
	defer func() { usecase.Audit(ctx, uc.audit, uc.logger, acc.ID, domain.AuditAccountCreate, acc, err) }()

	if err := domain.ValidateAccountID(acc.ID); err != nil {
		return View{}, domain.OpError("create", acc.ID, err)
	}
	if acc.Name == "" {
		acc.Name = acc.ID
	}
	if err := uc.accounts.Create(ctx, &acc); err != nil {
		return View{}, domain.OpError("create", acc.ID, err)
	}
	uc.invalidate()

	if err := uc.workspace.Init(ctx, acc.ID); err != nil {
		if rbErr := uc.accounts.Delete(context.WithoutCancel(ctx), acc.ID); rbErr != nil {
			uc.logger.Error("failed to roll back account", zap.String("account_id", acc.ID), zap.Error(rbErr))
		}
		uc.invalidate()
		return View{}, domain.OpError("create", acc.ID, err)
	}
	uc.logger.Info("account created", zap.String("account_id", acc.ID))
	return uc.view(ctx, acc), nil
}

// Update merges patch into the account. Disabling a running account stops
// its worker.
func (uc *UseCase) Update(ctx context.Context, id string, patch domain.AccountPatch) (view View, err error) {
	defer func() { usecase.Audit(ctx, uc.audit, uc.logger, id, domain.AuditAccountUpdate, patch, err) }()

	if patch.Empty() {
		return View{}, domain.OpError("update", id, domain.ErrInvalidPayload)
	}
	var wasEnabled bool
	updated, err := uc.accounts.Update(ctx, id, func(acc *domain.Account) error {
		wasEnabled = acc.Enabled
		patch.Apply(acc)
		return nil
	})
	if err != nil {
		return View{}, domain.OpError("update", id, err)
	}
	uc.invalidate()

	if wasEnabled && !updated.Enabled {
		if err := uc.workers.Stop(ctx, id); err != nil {
			return uc.view(ctx, *updated), domain.OpError("disable", id, err)
		}
		uc.logger.Info("account disabled, worker stopped", zap.String("account_id", id))
	}
	return uc.view(ctx, *updated), nil
}

func (uc *UseCase) SetEnabled(ctx context.Context, id string, enabled bool) (View, error) {
	return uc.Update(ctx, id, domain.AccountPatch{Enabled: &enabled})
}

// Delete removes a disabled account. The workspace is archived first; the
// account is only removed once the backup exists.
func (uc *UseCase) Delete(ctx context.Context, id string) (backup string, err error) {
	defer func() {
		usecase.Audit(ctx, uc.audit, uc.logger, id, domain.AuditAccountDelete, map[string]string{"backup": backup}, err)
	}()

	acc, err := uc.accounts.Get(ctx, id)
	if err != nil {
		return "", domain.OpError("delete", id, err)
	}
	if acc.Enabled {
		return "", domain.OpError("delete", id, domain.ErrStillEnabled)
	}
	if err := uc.workers.Stop(ctx, id); err != nil {
		return "", domain.OpError("delete", id, err)
	}
	// the history database must be closed before it is archived
	if uc.history != nil {
		if err := uc.history.Close(id); err != nil {
			uc.logger.Warn("failed to close history", zap.String("account_id", id), zap.Error(err))
		}
	}
	if backup, err = uc.workspace.Backup(ctx, id); err != nil {
		return "", domain.OpError("delete", id, err)
	}
	if err := uc.workspace.Remove(ctx, id); err != nil {
		return backup, domain.OpError("delete", id, err)
	}
	if err := uc.accounts.Delete(ctx, id); err != nil {
		return backup, domain.OpError("delete", id, err)
	}
	uc.invalidate()
	if err := uc.workers.Forget(ctx, id); err != nil {
		uc.logger.Warn("failed to drop worker record", zap.String("account_id", id), zap.Error(err))
	}
	uc.logger.Info("account deleted", zap.String("account_id", id), zap.String("backup", backup))
	return backup, nil
}

func (uc *UseCase) registry(ctx context.Context) ([]domain.Account, error) {
	uc.cacheMu.Lock()
	defer uc.cacheMu.Unlock()
	if uc.cached != nil {
		return uc.cached, nil
	}
	accounts, err := uc.accounts.List(ctx)
	if err != nil {
		return nil, domain.OpError("list", "", err)
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	uc.cached = accounts
	return accounts, nil
}

func (uc *UseCase) invalidate() {
	uc.cacheMu.Lock()
	uc.cached = nil
	uc.cacheMu.Unlock()
}

func (uc *UseCase) view(ctx context.Context, acc domain.Account) View {
	v := View{
		Account:      acc,
		FolderExists: uc.workspace.Exists(acc.ID),
		CookiesExist: uc.workspace.CookiesExist(acc.ID),
	}
	if !v.FolderExists {
		return v
	}
	settings, err := uc.workspace.ReadSettings(ctx, acc.ID)
	if err != nil {
		uc.logger.Debug("settings unreadable for account view", zap.String("account_id", acc.ID), zap.Error(err))
		return v
	}
	if v.WANumber == "" {
		v.WANumber = settings.Business.WANumber
	}
	v.WALink = settings.Business.WALink
	return v
}
