package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

func TestGormClientRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormClientRepository(newTestDatabase(t).DB)

	acme := &integration.Client{
		Code: "C01",
		Name: "Acme",
		Links: []integration.ProviderLink{{
			Provider:          shipment.ProviderTiendanube,
			ExternalAccountID: "store-9",
			Credential:        integration.Credential{AccessToken: "tn-token"},
		}},
	}
	zeta := &integration.Client{Code: "C02", Name: "Zeta"}
	require.NoError(t, repo.Create(ctx, acme))
	require.NoError(t, repo.Create(ctx, zeta))
	require.NotEqual(t, uuid.Nil, acme.ID)

	t.Run("FindByID loads links", func(t *testing.T) {
		got, err := repo.FindByID(ctx, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, "C01 - Acme", got.Reference())
		link := got.Link(shipment.ProviderTiendanube)
		require.NotNil(t, link)
		assert.Equal(t, "store-9", link.ExternalAccountID)
		assert.Equal(t, "tn-token", link.Credential.AccessToken)
	})

	t.Run("FindByID unknown", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, integration.ErrClientNotFound)
	})

	t.Run("SaveLink upserts per provider", func(t *testing.T) {
		require.NoError(t, repo.SaveLink(ctx, &integration.ProviderLink{
			ClientID:          zeta.ID,
			Provider:          shipment.ProviderMercadoLibre,
			ExternalAccountID: "seller-1",
		}))
		require.NoError(t, repo.SaveLink(ctx, &integration.ProviderLink{
			ClientID:          zeta.ID,
			Provider:          shipment.ProviderMercadoLibre,
			ExternalAccountID: "seller-2",
		}))

		got, err := repo.FindByID(ctx, zeta.ID)
		require.NoError(t, err)
		require.Len(t, got.Links, 1)
		assert.Equal(t, "seller-2", got.Links[0].ExternalAccountID)
	})

	t.Run("ListLinkedTo", func(t *testing.T) {
		linked, err := repo.ListLinkedTo(ctx, shipment.ProviderMercadoLibre)
		require.NoError(t, err)
		require.Len(t, linked, 1)
		assert.Equal(t, zeta.ID, linked[0].ID)
		assert.NotNil(t, linked[0].Link(shipment.ProviderMercadoLibre))

		linked, err = repo.ListLinkedTo(ctx, shipment.ProviderVTEX)
		require.NoError(t, err)
		assert.Empty(t, linked)
	})

	t.Run("UpdateCredential", func(t *testing.T) {
		expires := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		err := repo.UpdateCredential(ctx, zeta.ID, shipment.ProviderMercadoLibre, integration.Credential{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresAt:    &expires,
		})
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, zeta.ID)
		require.NoError(t, err)
		cred := got.Link(shipment.ProviderMercadoLibre).Credential
		assert.Equal(t, "new-access", cred.AccessToken)
		assert.Equal(t, "new-refresh", cred.RefreshToken)
		require.NotNil(t, cred.ExpiresAt)
		assert.True(t, cred.ExpiresAt.Equal(expires))
	})

	t.Run("UpdateLastSynced", func(t *testing.T) {
		at := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
		require.NoError(t, repo.UpdateLastSynced(ctx, acme.ID, shipment.ProviderTiendanube, at))

		got, err := repo.FindByID(ctx, acme.ID)
		require.NoError(t, err)
		synced := got.Link(shipment.ProviderTiendanube).LastSyncedAt
		require.NotNil(t, synced)
		assert.True(t, synced.Equal(at))
	})

	t.Run("updates on a missing link", func(t *testing.T) {
		err := repo.UpdateLastSynced(ctx, acme.ID, shipment.ProviderShopify, time.Now())
		assert.ErrorIs(t, err, integration.ErrLinkNotFound)
	})
}
