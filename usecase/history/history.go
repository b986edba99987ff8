// Package history serves the per-account activity, tweet and conversion
// history kept inside each workspace.
package history

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/repository"
)

type Source interface {
	For(ctx context.Context, accountID string) (repository.HistoryRepository, error)
}

// ConversionReport lists conversions of the last Days days with their totals.
type ConversionReport struct {
	Conversions []domain.Conversion      `json:"conversions"`
	Summary     domain.ConversionSummary `json:"summary"`
}

type UseCase struct {
	accounts repository.AccountReader
	source   Source
	logger   *zap.Logger
}

func New(accounts repository.AccountReader, source Source, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{accounts: accounts, source: source, logger: logger}
}

func (uc *UseCase) Stats(ctx context.Context, accountID string) (*domain.Stats, error) {
	repo, err := uc.open(ctx, "stats", accountID)
	if err != nil {
		return nil, err
	}
	stats, err := repo.Stats(ctx)
	if err != nil {
		return nil, domain.OpError("stats", accountID, err)
	}
	return stats, nil
}

func (uc *UseCase) Activity(ctx context.Context, accountID string, limit int) ([]domain.ActivityEntry, error) {
	repo, err := uc.open(ctx, "logs", accountID)
	if err != nil {
		return nil, err
	}
	entries, err := repo.RecentActivity(ctx, limit)
	if err != nil {
		return nil, domain.OpError("logs", accountID, err)
	}
	return entries, nil
}

func (uc *UseCase) Tweets(ctx context.Context, accountID string, limit int) ([]domain.TweetRecord, error) {
	repo, err := uc.open(ctx, "tweets", accountID)
	if err != nil {
		return nil, err
	}
	tweets, err := repo.RecentTweets(ctx, limit)
	if err != nil {
		return nil, domain.OpError("tweets", accountID, err)
	}
	return tweets, nil
}

func (uc *UseCase) Conversions(ctx context.Context, accountID string, days int) (ConversionReport, error) {
	if days <= 0 {
		days = 7
	}
	repo, err := uc.open(ctx, "conversions", accountID)
	if err != nil {
		return ConversionReport{}, err
	}
	conversions, err := repo.Conversions(ctx, days)
	if err != nil {
		return ConversionReport{}, domain.OpError("conversions", accountID, err)
	}
	report := ConversionReport{Conversions: conversions, Summary: domain.ConversionSummary{Days: days}}
	for _, c := range conversions {
		report.Summary.WAMessages += c.WAMessages
		report.Summary.ConfirmedOrders += c.ConfirmedOrders
		report.Summary.Revenue += c.Revenue
	}
	return report, nil
}

func (uc *UseCase) AddConversion(ctx context.Context, accountID string, c domain.Conversion) (domain.Conversion, error) {
	repo, err := uc.open(ctx, "add-conversion", accountID)
	if err != nil {
		return domain.Conversion{}, err
	}
	if err := repo.AddConversion(ctx, &c); err != nil {
		return domain.Conversion{}, domain.OpError("add-conversion", accountID, err)
	}
	uc.logger.Info("conversion recorded", zap.String("account_id", accountID), zap.String("source", c.Source))
	return c, nil
}

func (uc *UseCase) open(ctx context.Context, op, accountID string) (repository.HistoryRepository, error) {
	if _, err := uc.accounts.Get(ctx, accountID); err != nil {
		return nil, domain.OpError(op, accountID, err)
	}
	repo, err := uc.source.For(ctx, accountID)
	if err != nil {
		return nil, domain.OpError(op, accountID, err)
	}
	return repo, nil
}
