package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

const (
	defaultProviderTimeout = 20 * time.Second
	minProviderTimeout     = 10 * time.Second
	maxProviderTimeout     = 30 * time.Second
)

// ProviderConfig holds the OAuth application and API settings of one
// integrated platform. Secrets come from the environment or the config file
// only; nothing here has a built-in credential.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	// APIVersion is the versioned path segment some platforms require.
	APIVersion string
	Timeout    time.Duration
	// RateLimit is the sustained outbound requests per second.
	RateLimit float64
	RateBurst int
}

// IsConfigured reports whether the OAuth application credentials are set.
func (p ProviderConfig) IsConfigured() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

func (p ProviderConfig) withDefaults() ProviderConfig {
	switch {
	case p.Timeout == 0:
		p.Timeout = defaultProviderTimeout
	case p.Timeout < minProviderTimeout:
		p.Timeout = minProviderTimeout
	case p.Timeout > maxProviderTimeout:
		p.Timeout = maxProviderTimeout
	}
	if p.RateLimit <= 0 {
		p.RateLimit = 5
	}
	if p.RateBurst <= 0 {
		p.RateBurst = int(p.RateLimit)
		if p.RateBurst < 1 {
			p.RateBurst = 1
		}
	}
	return p
}

// publicEndpoints are the documented, non-secret endpoints of each platform.
// Shopify endpoints are per shop and carry a {shop} placeholder.
var publicEndpoints = map[shipment.Provider]ProviderConfig{
	shipment.ProviderMercadoLibre: {
		AuthURL:    "https://auth.mercadolibre.com.ar/authorization",
		TokenURL:   "https://api.mercadolibre.com/oauth/token",
		APIBaseURL: "https://api.mercadolibre.com",
		Scopes:     []string{"offline_access", "read"},
	},
	shipment.ProviderTiendanube: {
		AuthURL:    "https://www.tiendanube.com/apps/{client_id}/authorize",
		TokenURL:   "https://www.tiendanube.com/apps/authorize/token",
		APIBaseURL: "https://api.tiendanube.com/v1",
		Scopes:     []string{"read_orders"},
	},
	shipment.ProviderShopify: {
		AuthURL:    "https://{shop}/admin/oauth/authorize",
		TokenURL:   "https://{shop}/admin/oauth/access_token",
		APIBaseURL: "https://{shop}/admin/api",
		APIVersion: "2024-01",
		Scopes:     []string{"read_orders", "read_customers"},
	},
	shipment.ProviderVTEX: {
		APIBaseURL: "https://{account}.vtexcommercestable.com.br",
		Scopes:     []string{"orders:read"},
	},
}

// loadProviders reads providers.<code>.* for every integrated platform. With
// the TMS_ prefix each key is overridable from the environment, e.g.
// TMS_PROVIDERS_MERCADOLIBRE_CLIENT_SECRET.
func loadProviders(v *viper.Viper) map[string]ProviderConfig {
	out := make(map[string]ProviderConfig)
	for _, p := range shipment.AllProviders() {
		if !p.IsExternal() {
			continue
		}
		key := func(field string) string { return "providers." + p.String() + "." + field }
		base := publicEndpoints[p]

		cfg := ProviderConfig{
			ClientID:     v.GetString(key("client_id")),
			ClientSecret: v.GetString(key("client_secret")),
			RedirectURI:  v.GetString(key("redirect_uri")),
			Scopes:       v.GetStringSlice(key("scopes")),
			AuthURL:      orDefault(v.GetString(key("auth_url")), base.AuthURL),
			TokenURL:     orDefault(v.GetString(key("token_url")), base.TokenURL),
			APIBaseURL:   orDefault(v.GetString(key("api_base_url")), base.APIBaseURL),
			APIVersion:   orDefault(v.GetString(key("api_version")), base.APIVersion),
			Timeout:      v.GetDuration(key("timeout")),
			RateLimit:    v.GetFloat64(key("rate_limit")),
			RateBurst:    v.GetInt(key("rate_burst")),
		}
		if len(cfg.Scopes) == 0 {
			cfg.Scopes = base.Scopes
		}
		out[p.String()] = cfg
	}
	return out
}

// Provider resolves the settings of a provider: environment first, then the
// config file. A provider without OAuth application credentials returns
// integration.ErrProviderUnconfigured.
func (c *Config) Provider(p shipment.Provider) (ProviderConfig, error) {
	cfg, ok := c.Providers[p.String()]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %s", integration.ErrUnsupportedProvider, p)
	}
	if !cfg.IsConfigured() {
		return ProviderConfig{}, fmt.Errorf("%w: %s (set TMS_PROVIDERS_%s_CLIENT_ID and _CLIENT_SECRET)",
			integration.ErrProviderUnconfigured, p, strings.ToUpper(p.String()))
	}
	return cfg, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
