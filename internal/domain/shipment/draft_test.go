package shipment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Draft)
		wantErr bool
	}{
		{"valid snapshot", func(d *Draft) {}, false},
		{"snapshot without details", func(d *Draft) { d.Snapshot = nil }, true},
		{"snapshot with live details", func(d *Draft) { d.Live = &LiveDetails{ShipmentID: "1"} }, true},
		{"snapshot from live provider", func(d *Draft) { d.Provider = ProviderMercadoLibre }, true},
		{"unknown provider", func(d *Draft) { d.Provider = "amazon" }, true},
		{"missing client", func(d *Draft) { d.ClientID = uuid.Nil }, true},
		{"missing client ref", func(d *Draft) { d.ClientRef = "" }, true},
		{"bad provisional status", func(d *Draft) { d.ProvisionalStatus = "LOST" }, true},
		{"unknown kind", func(d *Draft) { d.Kind = "OTHER" }, true},
		{"manual with details", func(d *Draft) {
			d.Kind = DraftKindManual
			d.Provider = ProviderManual
		}, true},
		{"manual", func(d *Draft) {
			d.Kind = DraftKindManual
			d.Provider = ProviderManual
			d.Snapshot = nil
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newSnapshotDraft()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDraft)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("live draft needs shipment id", func(t *testing.T) {
		d := newLiveDraft()
		require.NoError(t, d.Validate())
		d.Live.ShipmentID = ""
		assert.ErrorIs(t, d.Validate(), ErrInvalidDraft)
	})
}

func TestDraft_TrackingCode(t *testing.T) {
	d := newSnapshotDraft()
	assert.Equal(t, "TN-1042", d.TrackingCode())

	d.Provider = ProviderShopify
	assert.Equal(t, "SH-1042", d.TrackingCode())

	d.OrderNumber = PendingPlaceholder
	assert.Empty(t, d.TrackingCode())

	live := newLiveDraft()
	live.OrderNumber = "2000001"
	assert.Equal(t, "ML-2000001", live.TrackingCode())
	assert.Equal(t, "41234567890", live.ExternalShipmentID())
}

func TestOrPending(t *testing.T) {
	assert.Equal(t, PendingPlaceholder, OrPending("  "))
	assert.Equal(t, "Calle 1", OrPending(" Calle 1 "))
}

func TestCodes(t *testing.T) {
	t.Run("tracking token", func(t *testing.T) {
		a, b := NewTrackingToken(), NewTrackingToken()
		assert.Len(t, a, TrackingTokenLength)
		assert.NotEqual(t, a, b)
		assert.NotContains(t, a, "-")
	})

	t.Run("search code unique per call", func(t *testing.T) {
		gen := NewSearchCodeGenerator()
		seen := make(map[string]bool)
		for i := 0; i < 500; i++ {
			code := gen.Next("same-seed")
			require.Len(t, code, SearchCodeLength)
			require.Regexp(t, "^[0-9A-Z]+$", code)
			require.False(t, seen[code], "duplicate code %s", code)
			seen[code] = true
		}
	})
}

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusAwaitingPickup:     {StatusCollected},
		StatusCollected:          {StatusEnRouteToRecipient, StatusCancelled, StatusReturnedToClient},
		StatusEnRouteToRecipient: {StatusDelivered, StatusCancelled, StatusRejectedByRecipient, StatusReturnedToClient},
		StatusReturnedToClient:   {StatusCollected},
	}
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	for _, s := range TerminalStatuses() {
		assert.True(t, s.IsTerminal())
	}
	assert.False(t, Status("LOST").IsValid())
}

func TestStatus_RegressesTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCollected, StatusAwaitingPickup, true},
		{StatusEnRouteToRecipient, StatusCollected, true},
		{StatusEnRouteToRecipient, StatusAwaitingPickup, true},
		{StatusAwaitingPickup, StatusCollected, false},
		{StatusAwaitingPickup, StatusDelivered, false},
		{StatusCollected, StatusCancelled, false},
		{StatusCollected, StatusReturnedToClient, false},
		{StatusEnRouteToRecipient, StatusReturnedToClient, false},
		{StatusReturnedToClient, StatusAwaitingPickup, true},
		{StatusReturnedToClient, StatusCollected, false},
		{StatusReturnedToClient, StatusEnRouteToRecipient, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.RegressesTo(tt.to))
		})
	}
}

func TestProvider(t *testing.T) {
	assert.True(t, ProviderMercadoLibre.IsLiveTracked())
	assert.False(t, ProviderTiendanube.IsLiveTracked())
	assert.False(t, ProviderManual.IsExternal())
	assert.True(t, ProviderVTEX.IsExternal())
	assert.Equal(t, "MN", ProviderManual.TrackingPrefix())
}
