package ecommerce

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

// Registry holds one adapter per integrated platform. Adapters are always
// registered so stored payloads can be normalized; calls that need the
// OAuth application fail with integration.ErrProviderUnconfigured until
// its credentials are set.
type Registry struct {
	cfg      *config.Config
	adapters map[shipment.Provider]integration.Adapter
}

// NewRegistry builds the adapters of every provider known to cfg.
func NewRegistry(cfg *config.Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{cfg: cfg, adapters: make(map[shipment.Provider]integration.Adapter)}
	for code, pc := range cfg.Providers {
		p := shipment.Provider(code)
		switch p {
		case shipment.ProviderMercadoLibre:
			r.adapters[p] = NewMercadoLibreAdapter(pc, logger)
		case shipment.ProviderTiendanube:
			r.adapters[p] = NewTiendanubeAdapter(pc, logger)
		case shipment.ProviderShopify:
			r.adapters[p] = NewShopifyAdapter(pc, logger)
		case shipment.ProviderVTEX:
			r.adapters[p] = NewVTEXAdapter(pc, logger)
		default:
			logger.Warn("Ignoring configuration of unknown provider", zap.String("provider", code))
			continue
		}
		logger.Info("Provider adapter registered",
			zap.String("provider", code),
			zap.Bool("oauth_configured", pc.IsConfigured()),
		)
	}
	return r
}

// Adapter returns the normalizer of provider
func (r *Registry) Adapter(provider shipment.Provider) (integration.Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrUnsupportedProvider, provider)
	}
	return a, nil
}

// OrderSource returns the adapter of a provider that lists orders
func (r *Registry) OrderSource(provider shipment.Provider) (integration.OrderSource, error) {
	a, err := r.Adapter(provider)
	if err != nil {
		return nil, err
	}
	src, ok := a.(integration.OrderSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not list orders", integration.ErrUnsupportedProvider, provider)
	}
	return src, nil
}

// LiveTracker returns the adapter of a live-tracked provider
func (r *Registry) LiveTracker(provider shipment.Provider) (integration.LiveTracker, error) {
	a, err := r.Adapter(provider)
	if err != nil {
		return nil, err
	}
	t, ok := a.(integration.LiveTracker)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not live-tracked", integration.ErrUnsupportedProvider, provider)
	}
	return t, nil
}

// OAuth returns the OAuth side of a provider whose application is configured
func (r *Registry) OAuth(provider shipment.Provider) (integration.OAuthProvider, error) {
	a, err := r.Adapter(provider)
	if err != nil {
		return nil, err
	}
	o, ok := a.(integration.OAuthProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no OAuth flow", integration.ErrUnsupportedProvider, provider)
	}
	if _, err := r.cfg.Provider(provider); err != nil {
		return nil, err
	}
	return o, nil
}

// Providers lists the registered providers in a stable order
func (r *Registry) Providers() []shipment.Provider {
	out := make([]shipment.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ integration.AdapterRegistry = (*Registry)(nil)
