package repository

import (
	"context"

	"github.com/fastygo/botfleet/domain"
)

// HistoryRepository is the per-account activity, tweet and conversion history.
type HistoryRepository interface {
	LogActivity(ctx context.Context, entry *domain.ActivityEntry) error
	RecentActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error)
	AddTweet(ctx context.Context, tweet *domain.TweetRecord) error
	RecentTweets(ctx context.Context, limit int) ([]domain.TweetRecord, error)
	AddConversion(ctx context.Context, conversion *domain.Conversion) error
	Conversions(ctx context.Context, days int) ([]domain.Conversion, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}
