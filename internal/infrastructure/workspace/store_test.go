package workspace

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/botfleet/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	store, err := New(Options{
		Root:      filepath.Join(base, "accounts"),
		BackupDir: filepath.Join(base, "backups"),
	}, nil)
	require.NoError(t, err)
	return store
}

func seedTemplates(t *testing.T, store *Store, id string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx, id))
	tpl := domain.Templates{}
	for _, text := range texts {
		tpl.PromoTemplates = append(tpl.PromoTemplates, domain.PromoTemplate{Text: text})
	}
	require.NoError(t, store.WriteTemplates(ctx, id, tpl))
}

func strPtr(s string) *string { return &s }

func TestInitScaffold(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Init(context.Background(), "acc1"))
	require.True(t, store.Exists("acc1"))

	dir, err := store.Dir("acc1")
	require.NoError(t, err)
	for _, rel := range []string{"config/settings.yaml", "config/templates.yaml", "config/keywords.yaml", "media/promo", "data/logs"} {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
	}

	settings, err := store.ReadSettings(context.Background(), "acc1")
	require.NoError(t, err)
	require.Equal(t, "08:00", settings.Schedule.Slots["morning"].Time)
}

func TestSettingsFullReplace(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))

	next := domain.Settings{Business: domain.BusinessSettings{Product: "Soap", WANumber: "628123"}}
	require.NoError(t, store.WriteSettings(ctx, "acc1", next))

	got, err := store.ReadSettings(ctx, "acc1")
	require.NoError(t, err)
	require.Equal(t, "Soap", got.Business.Product)
	require.Empty(t, got.Schedule.Slots, "write replaces the whole document")
}

func TestSettingsRemovedSlotStaysRemoved(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))

	next := DefaultSettings()
	delete(next.Schedule.Slots, "evening")
	require.NoError(t, store.WriteSettings(ctx, "acc1", next))

	got, err := store.ReadSettings(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, got.Schedule.Slots, 2)
	require.NotContains(t, got.Schedule.Slots, "evening")
}

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))

	p, err := store.path("acc1", settingsFile)
	require.NoError(t, err)
	require.NoError(t, os.Remove(p))

	got, err := store.ReadSettings(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, got.Schedule.Slots, 3)
}

func TestTemplatesAcceptPlainStrings(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))

	p, err := store.path("acc1", templatesFile)
	require.NoError(t, err)
	doc := "promo_templates:\n  - plain text\n  - text: with media\n    media: media/promo/a.png\ntips: [one]\n"
	require.NoError(t, os.WriteFile(p, []byte(doc), 0o644))

	tpl, err := store.ReadTemplates(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, tpl.PromoTemplates, 2)
	require.Equal(t, "plain text", tpl.PromoTemplates[0].Text)
	require.Empty(t, tpl.PromoTemplates[0].MediaFile())
	require.Equal(t, "a.png", tpl.PromoTemplates[1].MediaFile())
	require.Equal(t, []string{}, tpl.ValueTemplates)
}

func TestMalformedDocument(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))
	p, err := store.path("acc1", keywordsFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, []byte("greeting: [unclosed"), 0o644))

	_, err = store.ReadKeywords(ctx, "acc1")
	require.ErrorIs(t, err, domain.ErrInvalidDocument)
}

func TestAssignMediaOutOfRangeLeavesTemplates(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedTemplates(t, store, "acc1", "a", "b")

	before, err := store.ReadTemplates(ctx, "acc1")
	require.NoError(t, err)

	_, err = store.AssignMedia(ctx, "acc1", 2, strPtr("x.png"))
	require.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	_, err = store.AssignMedia(ctx, "acc1", -1, nil)
	require.ErrorIs(t, err, domain.ErrIndexOutOfRange)

	after, err := store.ReadTemplates(ctx, "acc1")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestAssignMediaToleratesMissingFile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedTemplates(t, store, "acc1", "a", "b")

	tpl, err := store.AssignMedia(ctx, "acc1", 1, strPtr("ghost.png"))
	require.NoError(t, err)
	require.Equal(t, "media/promo/ghost.png", *tpl.PromoTemplates[1].Media)

	dangling, err := store.DanglingMedia(ctx, "acc1")
	require.NoError(t, err)
	require.Equal(t, []int{1}, dangling)

	tpl, err = store.AssignMedia(ctx, "acc1", 1, nil)
	require.NoError(t, err)
	require.Nil(t, tpl.PromoTemplates[1].Media)
}

func TestAssignMediaRejectsTraversal(t *testing.T) {
	store := newStore(t)
	seedTemplates(t, store, "acc1", "a")
	_, err := store.AssignMedia(context.Background(), "acc1", 0, strPtr("..\\..\\secret"))
	require.ErrorIs(t, err, domain.ErrInvalidFilename)
}

func TestUploadMediaLimits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))

	big := bytes.NewReader(make([]byte, 20<<20))
	_, err := store.UploadMedia(ctx, "acc1", big, "image/png")
	require.ErrorIs(t, err, domain.ErrFileTooLarge)

	exe := append([]byte("MZ\x90\x00"), make([]byte, 64)...)
	_, err = store.UploadMedia(ctx, "acc1", bytes.NewReader(exe), "application/x-msdownload")
	require.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = store.UploadMedia(ctx, "acc1", bytes.NewReader(exe), "")
	require.ErrorIs(t, err, domain.ErrUnsupportedType)

	files, err := store.ListMedia(ctx, "acc1")
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestUploadMediaDeclaredTypeMustMatchContent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))

	exe := append([]byte("MZ\x90\x00"), make([]byte, 64)...)
	_, err := store.UploadMedia(ctx, "acc1", bytes.NewReader(exe), "image/png")
	require.ErrorIs(t, err, domain.ErrUnsupportedType)

	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	_, err = store.UploadMedia(ctx, "acc1", bytes.NewReader(gif), "image/png")
	require.ErrorIs(t, err, domain.ErrUnsupportedType)

	files, err := store.ListMedia(ctx, "acc1")
	require.NoError(t, err)
	require.Empty(t, files)

	mf, err := store.UploadMedia(ctx, "acc1", bytes.NewReader(gif), "image/gif")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(mf.Name, ".gif"))
}

func TestUploadMediaContentAddressed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))

	first, err := store.UploadMedia(ctx, "acc1", bytes.NewReader(pngHeader), "image/png; charset=binary")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(first.Name, ".png"))
	require.Equal(t, domain.MediaImage, first.Type)
	require.Equal(t, "media/promo/"+first.Name, first.Path)

	second, err := store.UploadMedia(ctx, "acc1", bytes.NewReader(pngHeader), "")
	require.NoError(t, err)
	require.Equal(t, first.Name, second.Name)

	files, err := store.ListMedia(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, files, 1)

	p, mf, err := store.MediaPath(ctx, "acc1", first.Name)
	require.NoError(t, err)
	require.Equal(t, int64(len(pngHeader)), mf.Size)
	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, pngHeader, raw)
}

func TestDeleteMediaCascades(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedTemplates(t, store, "acc1", "a", "b", "c")

	mf, err := store.UploadMedia(ctx, "acc1", bytes.NewReader(pngHeader), "image/png")
	require.NoError(t, err)
	for _, idx := range []int{0, 2} {
		_, err := store.AssignMedia(ctx, "acc1", idx, strPtr(mf.Name))
		require.NoError(t, err)
	}
	_, err = store.AssignMedia(ctx, "acc1", 1, strPtr("other.png"))
	require.NoError(t, err)

	cleared, err := store.DeleteMedia(ctx, "acc1", mf.Name)
	require.NoError(t, err)
	require.Equal(t, 2, cleared)

	tpl, err := store.ReadTemplates(ctx, "acc1")
	require.NoError(t, err)
	for _, pt := range tpl.PromoTemplates {
		require.NotEqual(t, mf.Name, pt.MediaFile())
	}
	require.Equal(t, "other.png", tpl.PromoTemplates[1].MediaFile())

	_, _, err = store.MediaPath(ctx, "acc1", mf.Name)
	require.ErrorIs(t, err, domain.ErrMediaNotFound)

	_, err = store.DeleteMedia(ctx, "acc1", "other.png")
	require.ErrorIs(t, err, domain.ErrMediaNotFound)
	dangling, err := store.DanglingMedia(ctx, "acc1")
	require.NoError(t, err)
	require.Empty(t, dangling)
}

func TestCookies(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Init(ctx, "acc1"))
	require.False(t, store.CookiesExist("acc1"))

	_, err := store.ReadCookies(ctx, "acc1")
	require.ErrorIs(t, err, domain.ErrMissingCredentials)

	require.ErrorIs(t, store.WriteCookies(ctx, "acc1", domain.CookieJar{CT0: "x"}), domain.ErrInvalidCookies)
	require.NoError(t, store.WriteCookies(ctx, "acc1", domain.CookieJar{CT0: "x", AuthToken: "y"}))
	require.True(t, store.CookiesExist("acc1"))

	p, err := store.path("acc1", cookiesFile)
	require.NoError(t, err)
	info, err := os.Stat(p)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	jar, err := store.ReadCookies(ctx, "acc1")
	require.NoError(t, err)
	require.Equal(t, "y", jar.AuthToken)
}

func TestBackupAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedTemplates(t, store, "acc1", "hello")

	archive, err := store.Backup(ctx, "acc1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filepath.Base(archive), "acc1-"))
	require.True(t, strings.HasSuffix(archive, ".tar.gz"))

	require.NoError(t, store.Remove(ctx, "acc1"))
	require.False(t, store.Exists("acc1"))

	f, err := os.Open(archive)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	require.Contains(t, names, "acc1/config/templates.yaml")

	second, err := store.Backup(ctx, "acc1")
	require.NoError(t, err)
	require.NotEqual(t, archive, second)
}

func TestDirRejectsUnsafeIDs(t *testing.T) {
	store := newStore(t)
	for _, id := range []string{"", "..", "../x", "a/b", ".hidden", "a b"} {
		_, err := store.Dir(id)
		require.ErrorIs(t, err, domain.ErrInvalidID, id)
	}
}

func TestValidateMediaName(t *testing.T) {
	require.NoError(t, ValidateMediaName("abc123.png"))
	for _, name := range []string{"", "..", "a/b.png", "../x.png", ".hidden.png", "a..b.png"} {
		require.ErrorIs(t, ValidateMediaName(name), domain.ErrInvalidFilename, name)
	}
}
