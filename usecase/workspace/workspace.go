// Package workspace exposes the per-account config documents, media and
// session cookies to the control API.
package workspace

import (
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/internal/infrastructure/schema"
	"github.com/fastygo/botfleet/repository"
	"github.com/fastygo/botfleet/usecase"
)

type Store interface {
	ReadDocuments(ctx context.Context, accountID string) (domain.Documents, error)
	WriteSettings(ctx context.Context, accountID string, settings domain.Settings) error
	WriteTemplates(ctx context.Context, accountID string, templates domain.Templates) error
	WriteKeywords(ctx context.Context, accountID string, keywords domain.Keywords) error
	WriteCookies(ctx context.Context, accountID string, jar domain.CookieJar) error
	UploadMedia(ctx context.Context, accountID string, r io.Reader, declaredType string) (domain.MediaFile, error)
	ListMedia(ctx context.Context, accountID string) ([]domain.MediaFile, error)
	MediaPath(ctx context.Context, accountID, name string) (string, domain.MediaFile, error)
	AssignMedia(ctx context.Context, accountID string, index int, filename *string) (domain.Templates, error)
	DeleteMedia(ctx context.Context, accountID, name string) (int, error)
}

type Validator interface {
	Validate(doc schema.Document, raw []byte) error
}

type UseCase struct {
	accounts  repository.AccountReader
	store     Store
	validator Validator
	audit     usecase.AuditSink
	logger    *zap.Logger
}

func New(accounts repository.AccountReader, store Store, validator Validator, audit usecase.AuditSink, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		accounts:  accounts,
		store:     store,
		validator: validator,
		audit:     audit,
		logger:    logger,
	}
}

// Documents returns the settings, templates and keywords of an account.
func (uc *UseCase) Documents(ctx context.Context, accountID string) (domain.Documents, error) {
	if err := uc.ensure(ctx, "config", accountID); err != nil {
		return domain.Documents{}, err
	}
	docs, err := uc.store.ReadDocuments(ctx, accountID)
	if err != nil {
		return domain.Documents{}, domain.OpError("config", accountID, err)
	}
	return docs, nil
}

// ReplaceSettings validates raw and replaces the whole settings document.
func (uc *UseCase) ReplaceSettings(ctx context.Context, accountID string, raw []byte) (settings domain.Settings, err error) {
	defer func() { uc.record(ctx, accountID, domain.AuditSettingsWrite, json.RawMessage(raw), err) }()

	if err := uc.decode(ctx, "settings", accountID, schema.Settings, raw, &settings); err != nil {
		return domain.Settings{}, err
	}
	if err := uc.store.WriteSettings(ctx, accountID, settings); err != nil {
		return domain.Settings{}, domain.OpError("settings", accountID, err)
	}
	return settings, nil
}

// ReplaceTemplates validates raw and replaces the whole templates document.
func (uc *UseCase) ReplaceTemplates(ctx context.Context, accountID string, raw []byte) (templates domain.Templates, err error) {
	defer func() { uc.record(ctx, accountID, domain.AuditTemplatesWrite, json.RawMessage(raw), err) }()

	if err := uc.decode(ctx, "templates", accountID, schema.Templates, raw, &templates); err != nil {
		return domain.Templates{}, err
	}
	if err := uc.store.WriteTemplates(ctx, accountID, templates); err != nil {
		return domain.Templates{}, domain.OpError("templates", accountID, err)
	}
	return templates, nil
}

// ReplaceKeywords validates raw and replaces the whole keywords document.
func (uc *UseCase) ReplaceKeywords(ctx context.Context, accountID string, raw []byte) (keywords domain.Keywords, err error) {
	defer func() { uc.record(ctx, accountID, domain.AuditKeywordsWrite, json.RawMessage(raw), err) }()

	if err := uc.decode(ctx, "keywords", accountID, schema.Keywords, raw, &keywords); err != nil {
		return nil, err
	}
	if err := uc.store.WriteKeywords(ctx, accountID, keywords); err != nil {
		return nil, domain.OpError("keywords", accountID, err)
	}
	return keywords, nil
}

// UploadCookies validates the session blob and stores it. The blob itself is
// never written to the audit trail.
func (uc *UseCase) UploadCookies(ctx context.Context, accountID string, raw json.RawMessage) (err error) {
	defer func() { uc.record(ctx, accountID, domain.AuditCookiesUpload, nil, err) }()

	if err := uc.ensure(ctx, "cookies", accountID); err != nil {
		return err
	}
	jar, err := domain.ParseCookies(raw)
	if err != nil {
		return domain.OpError("cookies", accountID, err)
	}
	if err := uc.store.WriteCookies(ctx, accountID, jar); err != nil {
		return domain.OpError("cookies", accountID, err)
	}
	return nil
}

func (uc *UseCase) UploadMedia(ctx context.Context, accountID string, r io.Reader, declaredType string) (file domain.MediaFile, err error) {
	defer func() {
		uc.record(ctx, accountID, domain.AuditMediaUpload, map[string]any{"name": file.Name, "type": declaredType}, err)
	}()

	if err := uc.ensure(ctx, "upload-media", accountID); err != nil {
		return domain.MediaFile{}, err
	}
	file, err = uc.store.UploadMedia(ctx, accountID, r, declaredType)
	if err != nil {
		return domain.MediaFile{}, domain.OpError("upload-media", accountID, err)
	}
	return file, nil
}

func (uc *UseCase) ListMedia(ctx context.Context, accountID string) ([]domain.MediaFile, error) {
	if err := uc.ensure(ctx, "media", accountID); err != nil {
		return nil, err
	}
	files, err := uc.store.ListMedia(ctx, accountID)
	if err != nil {
		return nil, domain.OpError("media", accountID, err)
	}
	return files, nil
}

// MediaPath resolves a media file on disk for serving.
func (uc *UseCase) MediaPath(ctx context.Context, accountID, name string) (string, domain.MediaFile, error) {
	if err := uc.ensure(ctx, "media", accountID); err != nil {
		return "", domain.MediaFile{}, err
	}
	p, file, err := uc.store.MediaPath(ctx, accountID, name)
	if err != nil {
		return "", domain.MediaFile{}, domain.OpError("media", accountID, err)
	}
	return p, file, nil
}

// AssignMedia sets (or clears, when filename is nil) the media of one promo template.
func (uc *UseCase) AssignMedia(ctx context.Context, accountID string, index int, filename *string) (templates domain.Templates, err error) {
	defer func() {
		uc.record(ctx, accountID, domain.AuditMediaAssign, map[string]any{"template_index": index, "media_file": filename}, err)
	}()

	if err := uc.ensure(ctx, "assign-media", accountID); err != nil {
		return domain.Templates{}, err
	}
	templates, err = uc.store.AssignMedia(ctx, accountID, index, filename)
	if err != nil {
		return domain.Templates{}, domain.OpError("assign-media", accountID, err)
	}
	return templates, nil
}

// DeleteMedia removes a media file and unassigns it from every template.
func (uc *UseCase) DeleteMedia(ctx context.Context, accountID, name string) (cleared int, err error) {
	defer func() {
		uc.record(ctx, accountID, domain.AuditMediaDelete, map[string]any{"name": name, "templates_cleared": cleared}, err)
	}()

	if err := uc.ensure(ctx, "delete-media", accountID); err != nil {
		return 0, err
	}
	cleared, err = uc.store.DeleteMedia(ctx, accountID, name)
	if err != nil {
		return cleared, domain.OpError("delete-media", accountID, err)
	}
	return cleared, nil
}

func (uc *UseCase) ensure(ctx context.Context, op, accountID string) error {
	if _, err := uc.accounts.Get(ctx, accountID); err != nil {
		return domain.OpError(op, accountID, err)
	}
	return nil
}

func (uc *UseCase) decode(ctx context.Context, op, accountID string, doc schema.Document, raw []byte, out any) error {
	if err := uc.ensure(ctx, op, accountID); err != nil {
		return err
	}
	if uc.validator != nil {
		if err := uc.validator.Validate(doc, raw); err != nil {
			return domain.OpError(op, accountID, err)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.OpError(op, accountID, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidDocument.Message, err))
	}
	return nil
}

func (uc *UseCase) record(ctx context.Context, accountID, action string, payload any, err error) {
	if raw, ok := payload.(json.RawMessage); ok && !json.Valid(raw) {
		payload = nil
	}
	usecase.Audit(ctx, uc.audit, uc.logger, accountID, action, payload, err)
}
