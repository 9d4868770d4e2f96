package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneTable_Resolve(t *testing.T) {
	table, err := NewZoneTable(nil)
	require.NoError(t, err)

	tests := []struct {
		postalCode string
		want       string
	}{
		{"1005", "CABA"},
		{"C1005AAB", "CABA"},
		{"1499", "CABA"},
		{"1636", "GBA Norte"},
		{"1704", "GBA Oeste"},
		{"1870", "GBA Sur"},
		{"1500", "unzoned"},
		{"5000", "unzoned"},
		{"pending", "unzoned"},
		{"", "unzoned"},
	}
	for _, tt := range tests {
		t.Run(tt.postalCode, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Resolve(tt.postalCode))
		})
	}
}

func TestNewZoneTable_Invalid(t *testing.T) {
	_, err := NewZoneTable([]ZoneRange{{Name: "X", From: 10, To: 1}})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = NewZoneTable([]ZoneRange{{From: 1, To: 10}})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestPriceZone_Matches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		code    string
		want    bool
	}{
		{"range inside", "1000-1499", "1005", true},
		{"range edge", "1000-1499", "1499", true},
		{"range outside", "1000-1499", "1500", false},
		{"range with spaces", " 1600 - 1669 ", "1650", true},
		{"list hit", "1636, 1640,1642", "1640", true},
		{"list miss", "1636,1640", "1641", false},
		{"single code", "5000", "5000", true},
		{"empty code", "5000", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceZone{Pattern: tt.pattern}.Matches(tt.code))
		})
	}
}

func TestPriceList_MatchFirstWins(t *testing.T) {
	list := &PriceList{Zones: []PriceZone{
		{Name: "A", Pattern: "1000-1499", Price: decimal.NewFromInt(100)},
		{Name: "B", Pattern: "1005", Price: decimal.NewFromInt(200)},
	}}

	z, ok := list.Match("C1005AAB")
	require.True(t, ok)
	assert.Equal(t, "A", z.Name)

	_, ok = list.Match("9999")
	assert.False(t, ok)
}

func TestValidatePattern(t *testing.T) {
	assert.NoError(t, ValidatePattern("1000-1499"))
	assert.NoError(t, ValidatePattern("1000,1001"))
	assert.NoError(t, ValidatePattern("1000"))
	assert.Error(t, ValidatePattern(""))
	assert.Error(t, ValidatePattern("1499-1000"))
	assert.Error(t, ValidatePattern("a,b"))
}
