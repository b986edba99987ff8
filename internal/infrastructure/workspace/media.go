package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
)

var mediaNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// allowedMedia maps each accepted MIME type to its stored extension.
var allowedMedia = map[string]struct {
	ext  string
	kind domain.MediaKind
}{
	"image/jpeg": {".jpg", domain.MediaImage},
	"image/png":  {".png", domain.MediaImage},
	"image/gif":  {".gif", domain.MediaImage},
	"video/mp4":  {".mp4", domain.MediaVideo},
}

var extKinds = map[string]domain.MediaKind{
	".jpg":  domain.MediaImage,
	".jpeg": domain.MediaImage,
	".png":  domain.MediaImage,
	".gif":  domain.MediaImage,
	".mp4":  domain.MediaVideo,
}

// ValidateMediaName accepts only a single, plain path element.
func ValidateMediaName(name string) error {
	if name == "" || name != filepath.Base(name) || !mediaNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return domain.ErrInvalidFilename
	}
	return nil
}

// MediaTypeFor returns the allow-listed MIME type for a file name, or "".
func MediaTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	}
	return ""
}

// UploadMedia stores content under a content-addressed name. The body is read
// at most once up to the size ceiling, so oversized uploads fail before
// anything touches the disk. The type always comes from the content; a
// declared type must agree with it.
func (s *Store) UploadMedia(ctx context.Context, accountID string, r io.Reader, declaredType string) (domain.MediaFile, error) {
	if err := ctx.Err(); err != nil {
		return domain.MediaFile{}, err
	}
	if r == nil {
		return domain.MediaFile{}, domain.ErrInvalidPayload
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxMedia+1))
	if err != nil {
		return domain.MediaFile{}, err
	}
	if int64(len(data)) > s.maxMedia {
		return domain.MediaFile{}, domain.ErrFileTooLarge
	}

	mediaType, ok := detectMedia(data)
	if !ok {
		return domain.MediaFile{}, domain.ErrUnsupportedType
	}
	if declared := normalizeType(declaredType); declared != "" && declared != mediaType {
		s.logger.Warn("media type mismatch",
			zap.String("account_id", accountID),
			zap.String("declared", declared),
			zap.String("detected", mediaType))
		return domain.MediaFile{}, domain.ErrUnsupportedType
	}
	allowed := allowedMedia[mediaType]

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:])[:16] + allowed.ext

	unlock := s.locks.Lock(accountID)
	defer unlock()

	dir, err := s.mediaDir(accountID)
	if err != nil {
		return domain.MediaFile{}, err
	}
	target := filepath.Join(dir, name)
	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		if err := writeAtomic(target, data, 0o644); err != nil {
			return domain.MediaFile{}, err
		}
		s.logger.Info("media uploaded",
			zap.String("account_id", accountID),
			zap.String("file", name),
			zap.Int("bytes", len(data)))
	} else if err != nil {
		return domain.MediaFile{}, err
	}
	return s.describe(accountID, target)
}

// ListMedia returns the media set sorted by name.
func (s *Store) ListMedia(ctx context.Context, accountID string) ([]domain.MediaFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.mediaDir(accountID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.MediaFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	files := make([]domain.MediaFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || ValidateMediaName(e.Name()) != nil {
			continue
		}
		if _, ok := extKinds[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		mf, err := s.describe(accountID, filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		files = append(files, mf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// MediaPath resolves one media file for serving.
func (s *Store) MediaPath(ctx context.Context, accountID, name string) (string, domain.MediaFile, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.MediaFile{}, err
	}
	if err := ValidateMediaName(name); err != nil {
		return "", domain.MediaFile{}, err
	}
	dir, err := s.mediaDir(accountID)
	if err != nil {
		return "", domain.MediaFile{}, err
	}
	p := filepath.Join(dir, name)
	mf, err := s.describe(accountID, p)
	if err != nil {
		return "", domain.MediaFile{}, err
	}
	return p, mf, nil
}

// AssignMedia sets or clears the media reference of one promo template. The
// file is not required to exist; unresolved references render as no media.
func (s *Store) AssignMedia(ctx context.Context, accountID string, index int, filename *string) (domain.Templates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Templates{}, err
	}
	var ref *string
	if filename != nil && *filename != "" {
		name := filepath.Base(strings.TrimPrefix(*filename, domain.MediaPrefix+"/"))
		if err := ValidateMediaName(name); err != nil {
			return domain.Templates{}, err
		}
		r := domain.MediaRef(name)
		ref = &r
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	var templates domain.Templates
	if _, err := s.readDoc(ctx, accountID, templatesFile, &templates); err != nil {
		return domain.Templates{}, err
	}
	templates = normalizeTemplates(templates)
	if index < 0 || index >= len(templates.PromoTemplates) {
		return templates, domain.ErrIndexOutOfRange
	}
	templates.PromoTemplates[index].Media = ref

	p, err := s.path(accountID, templatesFile)
	if err != nil {
		return domain.Templates{}, err
	}
	if err := writeYAML(p, templates); err != nil {
		return domain.Templates{}, err
	}
	return templates, nil
}

// DeleteMedia clears every template reference to name and then removes the
// file. References are cleared even when the file is already gone, in which
// case ErrMediaNotFound is returned after the cleanup.
func (s *Store) DeleteMedia(ctx context.Context, accountID, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := ValidateMediaName(name); err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	var templates domain.Templates
	if _, err := s.readDoc(ctx, accountID, templatesFile, &templates); err != nil {
		return 0, err
	}
	templates = normalizeTemplates(templates)
	cleared := 0
	for i := range templates.PromoTemplates {
		if templates.PromoTemplates[i].MediaFile() == name {
			templates.PromoTemplates[i].Media = nil
			cleared++
		}
	}
	if cleared > 0 {
		p, err := s.path(accountID, templatesFile)
		if err != nil {
			return 0, err
		}
		if err := writeYAML(p, templates); err != nil {
			return 0, err
		}
	}

	dir, err := s.mediaDir(accountID)
	if err != nil {
		return cleared, err
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cleared, domain.ErrMediaNotFound
		}
		return cleared, err
	}
	s.logger.Info("media deleted",
		zap.String("account_id", accountID),
		zap.String("file", name),
		zap.Int("templates_cleared", cleared))
	return cleared, nil
}

// DanglingMedia lists promo template indices whose media does not resolve.
func (s *Store) DanglingMedia(ctx context.Context, accountID string) ([]int, error) {
	templates, err := s.ReadTemplates(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.danglingIn(accountID, templates), nil
}

func (s *Store) danglingIn(accountID string, templates domain.Templates) []int {
	dangling := []int{}
	dir, err := s.mediaDir(accountID)
	if err != nil {
		return dangling
	}
	for i, t := range templates.PromoTemplates {
		name := t.MediaFile()
		if name == "" {
			continue
		}
		if ValidateMediaName(name) != nil {
			dangling = append(dangling, i)
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, name)); err != nil || !info.Mode().IsRegular() {
			dangling = append(dangling, i)
		}
	}
	return dangling
}

func (s *Store) mediaDir(accountID string) (string, error) {
	return s.path(accountID, domain.MediaPrefix)
}

func (s *Store) describe(accountID, p string) (domain.MediaFile, error) {
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.MediaFile{}, domain.ErrMediaNotFound
	}
	if err != nil {
		return domain.MediaFile{}, err
	}
	if !info.Mode().IsRegular() {
		return domain.MediaFile{}, domain.ErrMediaNotFound
	}
	name := info.Name()
	kind := extKinds[strings.ToLower(filepath.Ext(name))]
	return domain.MediaFile{
		Name:       name,
		Path:       domain.MediaRef(name),
		URL:        "/api/v2/accounts/" + accountID + "/media/" + name,
		Size:       info.Size(),
		Type:       kind,
		UploadedAt: info.ModTime().UTC(),
	}, nil
}

// detectMedia sniffs the content and returns the allow-listed type it matches.
func detectMedia(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for mt := range allowedMedia {
		if detected.Is(mt) {
			return mt, true
		}
	}
	return "", false
}

func normalizeType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(declared)
	}
	switch mt {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "application/octet-stream":
		// generic multipart default; sniff the content instead
		return ""
	}
	return mt
}
