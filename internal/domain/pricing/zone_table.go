package pricing

import (
	"fmt"
	"strconv"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// ZoneRange names an inclusive postal code range.
type ZoneRange struct {
	Name string
	From int
	To   int
}

// ZoneTable is the fixed routing table of named delivery zones. It is
// independent of any client's price list.
type ZoneTable struct {
	ranges []ZoneRange
}

// DefaultZoneRanges is the table used when configuration provides none.
func DefaultZoneRanges() []ZoneRange {
	return []ZoneRange{
		{Name: "CABA", From: 1000, To: 1499},
		{Name: "GBA Norte", From: 1600, To: 1669},
		{Name: "GBA Oeste", From: 1700, To: 1779},
		{Name: "GBA Sur", From: 1800, To: 1899},
	}
}

// NewZoneTable validates ranges. An empty slice yields the default table.
func NewZoneTable(ranges []ZoneRange) (*ZoneTable, error) {
	if len(ranges) == 0 {
		ranges = DefaultZoneRanges()
	}
	for _, r := range ranges {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: zone range without name", ErrInvalidPattern)
		}
		if r.To < r.From {
			return nil, fmt.Errorf("%w: zone %s ends before it starts", ErrInvalidPattern, r.Name)
		}
	}
	return &ZoneTable{ranges: append([]ZoneRange(nil), ranges...)}, nil
}

// Resolve returns the first zone containing postalCode, or "unzoned".
func (t *ZoneTable) Resolve(postalCode string) string {
	n, err := strconv.Atoi(DigitsOnly(postalCode))
	if err != nil {
		return shipment.UnzonedName
	}
	for _, r := range t.ranges {
		if n >= r.From && n <= r.To {
			return r.Name
		}
	}
	return shipment.UnzonedName
}

// Ranges returns a copy of the table.
func (t *ZoneTable) Ranges() []ZoneRange {
	return append([]ZoneRange(nil), t.ranges...)
}
