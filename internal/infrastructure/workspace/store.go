// Package workspace owns the per-account filesystem namespace: config
// documents, media assets, session cookies, logs and the history database.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/pkg/keylock"
)

const (
	configDir     = "config"
	dataDir       = "data"
	logsDir       = "data/logs"
	settingsFile  = "config/settings.yaml"
	templatesFile = "config/templates.yaml"
	keywordsFile  = "config/keywords.yaml"
	cookiesFile   = "cookies.json"
	historyFile   = "data/history.db"
	workerLogFile = "data/logs/worker.log"

	// DefaultMaxMediaBytes is the upload ceiling when none is configured.
	DefaultMaxMediaBytes int64 = 15 << 20
)

// Options configures a Store.
type Options struct {
	Root          string
	BackupDir     string
	MaxMediaBytes int64
}

// Store is the filesystem-backed workspace. Every account lives in
// <root>/<id>; no operation resolves a path outside that directory.
type Store struct {
	root      string
	backupDir string
	maxMedia  int64
	locks     *keylock.Map
	logger    *zap.Logger
}

// New prepares the workspace root and backup directory.
func New(opts Options, logger *zap.Logger) (*Store, error) {
	if opts.Root == "" {
		return nil, errors.New("workspace root is required")
	}
	if opts.BackupDir == "" {
		opts.BackupDir = filepath.Join(opts.Root, ".backups")
	}
	if opts.MaxMediaBytes <= 0 {
		opts.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	backupDir, err := filepath.Abs(opts.BackupDir)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{root, backupDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{
		root:      root,
		backupDir: backupDir,
		maxMedia:  opts.MaxMediaBytes,
		locks:     keylock.New(),
		logger:    logger,
	}, nil
}

// Root returns the absolute workspace root.
func (s *Store) Root() string { return s.root }

// MaxMediaBytes returns the upload ceiling.
func (s *Store) MaxMediaBytes() int64 { return s.maxMedia }

// Dir resolves the workspace directory of an account.
func (s *Store) Dir(accountID string) (string, error) {
	if err := domain.ValidateAccountID(accountID); err != nil {
		return "", err
	}
	return s.within(s.root, accountID)
}

// Exists reports whether the account directory is present.
func (s *Store) Exists(accountID string) bool {
	dir, err := s.Dir(accountID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// HistoryPath is the SQLite file holding the account's activity history.
func (s *Store) HistoryPath(accountID string) (string, error) {
	return s.path(accountID, historyFile)
}

// LogPath is the worker log file of the account.
func (s *Store) LogPath(accountID string) (string, error) {
	return s.path(accountID, workerLogFile)
}

// Init creates the directory layout and default documents. Existing
// documents are left untouched.
func (s *Store) Init(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.Lock(accountID)
	defer unlock()

	dir, err := s.Dir(accountID)
	if err != nil {
		return err
	}
	for _, sub := range []string{configDir, dataDir, logsDir, filepath.FromSlash(domain.MediaPrefix)} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}
	defaults := []struct {
		name string
		doc  any
	}{
		{settingsFile, DefaultSettings()},
		{templatesFile, domain.Templates{PromoTemplates: []domain.PromoTemplate{}, Tips: []string{}, ValueTemplates: []string{}}},
		{keywordsFile, domain.Keywords{}},
	}
	for _, d := range defaults {
		p := filepath.Join(dir, filepath.FromSlash(d.name))
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := writeYAML(p, d.doc); err != nil {
			return err
		}
	}
	s.logger.Info("workspace initialized", zap.String("account_id", accountID), zap.String("dir", dir))
	return nil
}

// DefaultSettings is the settings document of a freshly created workspace.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		Schedule: domain.ScheduleSettings{
			Enabled:  true,
			Timezone: "UTC",
			Slots: map[string]domain.SlotSettings{
				"morning":   {Time: "08:00", Enabled: true},
				"afternoon": {Time: "13:00", Enabled: true},
				"evening":   {Time: "19:00", Enabled: true},
			},
		},
	}
}

// Remove deletes the account directory. Callers are expected to Backup first.
func (s *Store) Remove(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.Lock(accountID)
	defer unlock()

	dir, err := s.Dir(accountID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	s.logger.Info("workspace removed", zap.String("account_id", accountID))
	return nil
}

// ReadSettings returns the settings document, or defaults when absent. A
// stored document is returned as written, without merging defaults into it.
func (s *Store) ReadSettings(ctx context.Context, accountID string) (domain.Settings, error) {
	var settings domain.Settings
	found, err := s.readDoc(ctx, accountID, settingsFile, &settings)
	if err != nil {
		return domain.Settings{}, err
	}
	if !found {
		return DefaultSettings(), nil
	}
	return settings, nil
}

// WriteSettings replaces the settings document.
func (s *Store) WriteSettings(ctx context.Context, accountID string, settings domain.Settings) error {
	return s.writeDoc(ctx, accountID, settingsFile, settings)
}

// ReadTemplates returns the templates document.
func (s *Store) ReadTemplates(ctx context.Context, accountID string) (domain.Templates, error) {
	var templates domain.Templates
	_, err := s.readDoc(ctx, accountID, templatesFile, &templates)
	return normalizeTemplates(templates), err
}

// WriteTemplates replaces the templates document.
func (s *Store) WriteTemplates(ctx context.Context, accountID string, templates domain.Templates) error {
	return s.writeDoc(ctx, accountID, templatesFile, normalizeTemplates(templates))
}

func (s *Store) ReadKeywords(ctx context.Context, accountID string) (domain.Keywords, error) {
	keywords := domain.Keywords{}
	_, err := s.readDoc(ctx, accountID, keywordsFile, &keywords)
	if keywords == nil {
		keywords = domain.Keywords{}
	}
	return keywords, err
}

func (s *Store) WriteKeywords(ctx context.Context, accountID string, keywords domain.Keywords) error {
	if keywords == nil {
		keywords = domain.Keywords{}
	}
	return s.writeDoc(ctx, accountID, keywordsFile, keywords)
}

// ReadDocuments loads all three documents plus the dangling media report.
func (s *Store) ReadDocuments(ctx context.Context, accountID string) (domain.Documents, error) {
	var docs domain.Documents
	var err error
	if docs.Settings, err = s.ReadSettings(ctx, accountID); err != nil {
		return docs, err
	}
	if docs.Templates, err = s.ReadTemplates(ctx, accountID); err != nil {
		return docs, err
	}
	if docs.Keywords, err = s.ReadKeywords(ctx, accountID); err != nil {
		return docs, err
	}
	docs.DanglingMedia = s.danglingIn(accountID, docs.Templates)
	return docs, nil
}

// readDoc decodes a stored document into out and reports whether the file
// exists. out is left untouched when it does not.
func (s *Store) readDoc(ctx context.Context, accountID, name string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.path(accountID, name)
	if err != nil {
		return false, err
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("%w: %s: %v", domain.ErrInvalidDocument, name, err)
	}
	return true, nil
}

func (s *Store) writeDoc(ctx context.Context, accountID, name string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.Lock(accountID)
	defer unlock()
	p, err := s.path(accountID, name)
	if err != nil {
		return err
	}
	return writeYAML(p, doc)
}

// path resolves a workspace-relative name for accountID and rejects anything
// that would land outside the account directory.
func (s *Store) path(accountID, rel string) (string, error) {
	dir, err := s.Dir(accountID)
	if err != nil {
		return "", err
	}
	return s.within(dir, filepath.FromSlash(rel))
}

func (s *Store) within(base, rel string) (string, error) {
	p := filepath.Join(base, rel)
	r, err := filepath.Rel(base, p)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", domain.ErrInvalidFilename
	}
	return p, nil
}

func normalizeTemplates(t domain.Templates) domain.Templates {
	if t.PromoTemplates == nil {
		t.PromoTemplates = []domain.PromoTemplate{}
	}
	if t.Tips == nil {
		t.Tips = []string{}
	}
	if t.ValueTemplates == nil {
		t.ValueTemplates = []string{}
	}
	return t
}

func writeYAML(path string, doc any) error {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return writeAtomic(path, raw, 0o644)
}

// writeAtomic replaces path so readers never observe a half-written file.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, perm)
}
