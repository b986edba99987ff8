// Package history stores one account's activity, tweets and conversions in a
// SQLite file inside its workspace.
package history

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultLimit = 50
	maxLimit     = 500
)

// DB is the history store of one account.
type DB struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite file at path and applies the
// embedded migrations. WAL and a busy timeout let the worker process and the
// control plane share the file.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := runMigrations(ctx, gdb); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &DB{db: gdb}, nil
}

func runMigrations(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Close releases the underlying connection.
func (h *DB) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (h *DB) LogActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	if entry == nil {
		return domain.ErrInvalidPayload
	}
	m := ActivityModel{
		ActivityType: entry.ActivityType,
		Details:      entry.Details,
		Success:      entry.Success,
		Error:        entry.Error,
		CreatedAt:    stamp(entry.CreatedAt),
	}
	if err := h.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	*entry = m.toDomain()
	return nil
}

func (h *DB) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	rows := make([]ActivityModel, 0)
	if err := h.db.WithContext(ctx).Order("id DESC").Limit(clampLimit(limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ActivityEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (h *DB) AddTweet(ctx context.Context, tweet *domain.TweetRecord) error {
	if tweet == nil || tweet.Text == "" {
		return domain.ErrInvalidPayload
	}
	m := TweetModel{
		TweetID:   tweet.TweetID,
		Text:      tweet.Text,
		TweetType: tweet.TweetType,
		Views:     tweet.Views,
		Likes:     tweet.Likes,
		Retweets:  tweet.Retweets,
		Replies:   tweet.Replies,
		CreatedAt: stamp(tweet.CreatedAt),
	}
	if err := h.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	*tweet = m.toDomain()
	return nil
}

func (h *DB) RecentTweets(ctx context.Context, limit int) ([]domain.TweetRecord, error) {
	rows := make([]TweetModel, 0)
	if err := h.db.WithContext(ctx).Order("id DESC").Limit(clampLimit(limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TweetRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (h *DB) AddConversion(ctx context.Context, c *domain.Conversion) error {
	if c == nil || c.WAMessages < 0 || c.ConfirmedOrders < 0 || c.Revenue < 0 {
		return domain.ErrInvalidPayload
	}
	m := ConversionModel{
		Source:          c.Source,
		WAMessages:      c.WAMessages,
		ConfirmedOrders: c.ConfirmedOrders,
		Revenue:         c.Revenue,
		Notes:           c.Notes,
		CreatedAt:       stamp(c.CreatedAt),
	}
	if err := h.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	*c = m.toDomain()
	return nil
}

// Conversions returns conversions recorded during the last days days.
func (h *DB) Conversions(ctx context.Context, days int) ([]domain.Conversion, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows := make([]ConversionModel, 0)
	if err := h.db.WithContext(ctx).Where("created_at >= ?", since).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Conversion, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// Stats summarizes today's activity, tweet totals and the 7-day conversions.
func (h *DB) Stats(ctx context.Context) (*domain.Stats, error) {
	db := h.db.WithContext(ctx)
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var grouped []struct {
		ActivityType string
		N            int
	}
	if err := db.Model(&ActivityModel{}).
		Select("activity_type, count(*) AS n").
		Where("created_at >= ?", today).
		Group("activity_type").
		Scan(&grouped).Error; err != nil {
		return nil, err
	}
	stats := &domain.Stats{TodayActivity: make(map[string]int, len(grouped))}
	for _, g := range grouped {
		stats.TodayActivity[g.ActivityType] = g.N
	}

	var totals struct {
		Total int64
		Views int64
		Likes int64
	}
	if err := db.Model(&TweetModel{}).
		Select("count(*) AS total, coalesce(sum(views), 0) AS views, coalesce(sum(likes), 0) AS likes").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	stats.TotalTweets = totals.Total
	stats.TotalViews = totals.Views
	stats.TotalLikes = totals.Likes

	conversions, err := h.Conversions(ctx, 7)
	if err != nil {
		return nil, err
	}
	stats.Conversions.Days = 7
	for _, c := range conversions {
		stats.Conversions.WAMessages += c.WAMessages
		stats.Conversions.ConfirmedOrders += c.ConfirmedOrders
		stats.Conversions.Revenue += c.Revenue
	}

	var last ActivityModel
	res := db.Order("id DESC").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		t := last.CreatedAt
		stats.LastActivity = &t
	}
	return stats, nil
}

// stored times are UTC so string comparison in SQLite orders them correctly
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

var _ repository.HistoryRepository = (*DB)(nil)
