package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastygo/botfleet/domain"
	historydb "github.com/fastygo/botfleet/internal/infrastructure/history"
	"github.com/fastygo/botfleet/internal/infrastructure/registry"
)

func newUseCase(t *testing.T) *UseCase {
	t.Helper()
	base := t.TempDir()
	accounts, err := registry.Open(filepath.Join(base, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = accounts.Close() })
	require.NoError(t, accounts.Create(context.Background(), &domain.Account{ID: "acc1"}))

	source := historydb.NewRegistry(func(id string) (string, error) {
		return filepath.Join(base, id+"-history.db"), nil
	}, nil)
	t.Cleanup(func() { _ = source.CloseAll(context.Background()) })
	return New(accounts, source, nil)
}

func TestConversionsSummary(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()

	_, err := uc.AddConversion(ctx, "acc1", domain.Conversion{Source: "promo", WAMessages: 3, ConfirmedOrders: 1, Revenue: 50})
	require.NoError(t, err)
	_, err = uc.AddConversion(ctx, "acc1", domain.Conversion{Source: "tips", WAMessages: 2, Revenue: 10.5})
	require.NoError(t, err)

	report, err := uc.Conversions(ctx, "acc1", 0)
	require.NoError(t, err)
	require.Len(t, report.Conversions, 2)
	require.Equal(t, 7, report.Summary.Days)
	require.Equal(t, 5, report.Summary.WAMessages)
	require.Equal(t, 1, report.Summary.ConfirmedOrders)
	require.InDelta(t, 60.5, report.Summary.Revenue, 0.001)

	_, err = uc.AddConversion(ctx, "acc1", domain.Conversion{WAMessages: -1})
	require.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestHistoryRequiresAccount(t *testing.T) {
	uc := newUseCase(t)
	_, err := uc.Stats(context.Background(), "ghost")
	require.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestActivityAndStats(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()

	entries, err := uc.Activity(ctx, "acc1", 10)
	require.NoError(t, err)
	require.Empty(t, entries)

	stats, err := uc.Stats(ctx, "acc1")
	require.NoError(t, err)
	require.Zero(t, stats.TotalTweets)

	tweets, err := uc.Tweets(ctx, "acc1", 10)
	require.NoError(t, err)
	require.Empty(t, tweets)
}
