package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// newTestDatabase opens a migrated in-memory sqlite database. A single
// connection keeps every query on the same memory database.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := Open(sqlite.Open("file::memory:"), nil)
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := Open(postgresDialector(mockDB), nil)
	require.NoError(t, err)

	return db, mock, mockDB
}

func postgresDialector(conn *sql.DB) gorm.Dialector {
	return postgres.New(postgres.Config{
		Conn:       conn,
		DriverName: "postgres",
	})
}

type shipmentOpts struct {
	clientID  uuid.UUID
	clientRef string
	recipient string
	orderNo   string
	saleAt    time.Time
	provider  shipment.Provider
	dedupKey  string
}

func newShipment(t *testing.T, opts shipmentOpts) *shipment.Shipment {
	t.Helper()
	if opts.clientID == uuid.Nil {
		opts.clientID = uuid.New()
	}
	if opts.clientRef == "" {
		opts.clientRef = "C01 - Acme"
	}
	if opts.recipient == "" {
		opts.recipient = "Jane Doe"
	}
	if opts.saleAt.IsZero() {
		opts.saleAt = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	}
	if opts.provider == "" {
		opts.provider = shipment.ProviderTiendanube
	}

	draft := &shipment.Draft{
		Provider:          opts.provider,
		ClientID:          opts.clientID,
		ClientRef:         opts.clientRef,
		ExternalReference: "ext-" + uuid.NewString()[:8],
		OrderNumber:       opts.orderNo,
		Recipient: shipment.Recipient{
			Name:       opts.recipient,
			Address:    "Av. Corrientes 1234",
			Locality:   "CABA",
			PostalCode: "1043",
		},
		DeclaredValue: decimal.NewFromInt(15000),
		WeightKg:      decimal.RequireFromString("1.5"),
		SaleAt:        opts.saleAt,
	}
	switch {
	case opts.provider == shipment.ProviderManual:
		draft.Kind = shipment.DraftKindManual
	case opts.provider.IsLiveTracked():
		draft.Kind = shipment.DraftKindLiveTracked
		draft.Live = &shipment.LiveDetails{ShipmentID: "ml-" + uuid.NewString()[:8]}
	default:
		draft.Kind = shipment.DraftKindSnapshot
		draft.Snapshot = &shipment.SnapshotDetails{StoreID: "store-1"}
	}

	s, err := shipment.NewShipment(shipment.NewShipmentParams{
		Draft:         draft,
		TrackingToken: shipment.NewTrackingToken(),
		SearchCode:    shipment.NewSearchCodeGenerator().Next(uuid.NewString()),
		DedupKey:      opts.dedupKey,
	})
	require.NoError(t, err)
	return s
}
