package models

// All lists every model, in dependency order, for schema creation in tests
// and AutoMigrate development setups.
func All() []any {
	return []any{
		&PriceListModel{},
		&PriceZoneModel{},
		&ClientModel{},
		&ProviderLinkModel{},
		&ShipmentModel{},
		&ShipmentHistoryModel{},
	}
}
