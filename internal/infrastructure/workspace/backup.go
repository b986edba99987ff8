package workspace

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// Backup writes a tar.gz snapshot of the account directory to the backup
// directory and returns its path. An absent workspace yields an empty archive
// so a deletion always leaves a snapshot behind.
func (s *Store) Backup(ctx context.Context, accountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	unlock := s.locks.Lock(accountID)
	defer unlock()

	dir, err := s.Dir(accountID)
	if err != nil {
		return "", err
	}
	f, target, err := s.createBackupFile(accountID)
	if err != nil {
		return "", err
	}

	if err := archiveDir(ctx, f, dir, accountID); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("backup %s: %w", accountID, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(target)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return "", err
	}
	s.logger.Info("workspace backed up", zap.String("account_id", accountID), zap.String("archive", target))
	return target, nil
}

func (s *Store) createBackupFile(accountID string) (*os.File, string, error) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	for i := 0; i < 100; i++ {
		name := fmt.Sprintf("%s-%s.tar.gz", accountID, stamp)
		if i > 0 {
			name = fmt.Sprintf("%s-%s-%d.tar.gz", accountID, stamp, i)
		}
		target := filepath.Join(s.backupDir, name)
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, target, nil
	}
	return nil, "", fmt.Errorf("backup %s: too many archives for %s", accountID, stamp)
}

func archiveDir(ctx context.Context, w io.Writer, dir, prefix string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && p == dir {
				return filepath.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// symlinks could point outside the workspace
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(prefix, rel))
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
