package ecommerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

func TestRegistry(t *testing.T) {
	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"mercadolibre": testProviderConfig("http://ml"),
		"tiendanube":   {AuthURL: "http://tn"},
		"shopify":      testProviderConfig("http://shop"),
		"vtex":         {APIBaseURL: "https://{account}.example"},
		"unknown":      {},
	}}
	r := NewRegistry(cfg, zap.NewNop())

	assert.Equal(t, []shipment.Provider{
		shipment.ProviderMercadoLibre,
		shipment.ProviderShopify,
		shipment.ProviderTiendanube,
		shipment.ProviderVTEX,
	}, r.Providers())

	t.Run("adapters", func(t *testing.T) {
		a, err := r.Adapter(shipment.ProviderTiendanube)
		require.NoError(t, err)
		assert.Equal(t, shipment.ProviderTiendanube, a.Provider())

		_, err = r.Adapter(shipment.ProviderManual)
		assert.ErrorIs(t, err, integration.ErrUnsupportedProvider)
	})

	t.Run("capabilities", func(t *testing.T) {
		_, err := r.LiveTracker(shipment.ProviderMercadoLibre)
		assert.NoError(t, err)
		_, err = r.LiveTracker(shipment.ProviderShopify)
		assert.ErrorIs(t, err, integration.ErrUnsupportedProvider)

		_, err = r.OrderSource(shipment.ProviderVTEX)
		assert.NoError(t, err)
		_, err = r.OrderSource(shipment.ProviderMercadoLibre)
		assert.ErrorIs(t, err, integration.ErrUnsupportedProvider)
	})

	t.Run("oauth", func(t *testing.T) {
		o, err := r.OAuth(shipment.ProviderShopify)
		require.NoError(t, err)
		_, ok := o.(integration.CallbackVerifier)
		assert.True(t, ok)

		_, err = r.OAuth(shipment.ProviderTiendanube)
		assert.ErrorIs(t, err, integration.ErrProviderUnconfigured)

		_, err = r.OAuth(shipment.ProviderVTEX)
		assert.ErrorIs(t, err, integration.ErrUnsupportedProvider)
	})
}
