package shipment

// Provider identifies where a shipment originated.
type Provider string

const (
	ProviderManual       Provider = "manual"
	ProviderMercadoLibre Provider = "mercadolibre"
	ProviderTiendanube   Provider = "tiendanube"
	ProviderShopify      Provider = "shopify"
	ProviderVTEX         Provider = "vtex"
)

// AllProviders returns every known source, the dispatch desk included.
func AllProviders() []Provider {
	return []Provider{ProviderManual, ProviderMercadoLibre, ProviderTiendanube, ProviderShopify, ProviderVTEX}
}

// IsValid checks if the provider is known
func (p Provider) IsValid() bool {
	switch p {
	case ProviderManual, ProviderMercadoLibre, ProviderTiendanube, ProviderShopify, ProviderVTEX:
		return true
	}
	return false
}

// String returns the string representation of Provider
func (p Provider) String() string {
	return string(p)
}

// IsLiveTracked reports whether the provider pushes live delivery status that
// can be polled by shipment id. Such shipments are owned by status sync.
func (p Provider) IsLiveTracked() bool {
	return p == ProviderMercadoLibre
}

// IsExternal reports whether orders come from an integrated platform.
func (p Provider) IsExternal() bool {
	return p.IsValid() && p != ProviderManual
}

// TrackingPrefix is the prefix of synthetic tracking codes for this source.
func (p Provider) TrackingPrefix() string {
	switch p {
	case ProviderMercadoLibre:
		return "ML"
	case ProviderTiendanube:
		return "TN"
	case ProviderShopify:
		return "SH"
	case ProviderVTEX:
		return "VT"
	default:
		return "MN"
	}
}
