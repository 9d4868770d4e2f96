package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgastron/mvgtms-sub000/internal/domain/pricing"
)

func TestGormPriceListRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPriceListRepository(newTestDatabase(t).DB)

	list := &pricing.PriceList{
		Name: "Standard",
		Zones: []pricing.PriceZone{
			{Name: "CABA", Pattern: "1000-1499", Price: decimal.NewFromInt(3500)},
			{Name: "GBA", Pattern: "1600-1899", Price: decimal.NewFromInt(5200)},
		},
	}
	require.NoError(t, repo.Save(ctx, list))

	t.Run("zones keep their order", func(t *testing.T) {
		got, err := repo.FindByID(ctx, list.ID)
		require.NoError(t, err)
		require.Len(t, got.Zones, 2)
		assert.Equal(t, "CABA", got.Zones[0].Name)
		assert.True(t, got.Zones[1].Price.Equal(decimal.NewFromInt(5200)))

		zone, ok := got.Match("1043")
		require.True(t, ok)
		assert.Equal(t, "CABA", zone.Name)
	})

	t.Run("save replaces zones", func(t *testing.T) {
		delegate := uuid.New()
		list.DelegateToID = &delegate
		list.Zones = []pricing.PriceZone{{Name: "Interior", Pattern: "5000-9999", Price: decimal.NewFromInt(9000)}}
		require.NoError(t, repo.Save(ctx, list))

		got, err := repo.FindByID(ctx, list.ID)
		require.NoError(t, err)
		require.Len(t, got.Zones, 1)
		assert.Equal(t, "Interior", got.Zones[0].Name)
		require.NotNil(t, got.DelegateToID)
		assert.Equal(t, delegate, *got.DelegateToID)
	})

	t.Run("invalid pattern rejected", func(t *testing.T) {
		bad := &pricing.PriceList{Name: "Bad", Zones: []pricing.PriceZone{{Name: "X", Pattern: "abc"}}}
		assert.ErrorIs(t, repo.Save(ctx, bad), pricing.ErrInvalidPattern)
	})

	t.Run("unknown list", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, pricing.ErrPriceListNotFound)
	})
}
