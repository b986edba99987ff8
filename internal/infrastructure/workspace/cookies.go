package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
)

// WriteCookies persists the session credentials with owner-only permissions.
func (s *Store) WriteCookies(ctx context.Context, accountID string, jar domain.CookieJar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !jar.Valid() {
		return domain.ErrInvalidCookies
	}
	raw, err := json.MarshalIndent(jar, "", "  ")
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	p, err := s.path(accountID, cookiesFile)
	if err != nil {
		return err
	}
	if err := writeAtomic(p, raw, 0o600); err != nil {
		return err
	}
	s.logger.Info("session cookies stored", zap.String("account_id", accountID))
	return nil
}

// ReadCookies loads the session credentials. A missing or incomplete file is
// reported as ErrMissingCredentials.
func (s *Store) ReadCookies(ctx context.Context, accountID string) (domain.CookieJar, error) {
	if err := ctx.Err(); err != nil {
		return domain.CookieJar{}, err
	}
	p, err := s.path(accountID, cookiesFile)
	if err != nil {
		return domain.CookieJar{}, err
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.CookieJar{}, domain.ErrMissingCredentials
	}
	if err != nil {
		return domain.CookieJar{}, err
	}
	jar, err := domain.ParseCookies(raw)
	if err != nil {
		return domain.CookieJar{}, errors.Join(domain.ErrMissingCredentials, err)
	}
	return jar, nil
}

// CookiesExist reports whether a cookies file is present.
func (s *Store) CookiesExist(accountID string) bool {
	p, err := s.path(accountID, cookiesFile)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}
