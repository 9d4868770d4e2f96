package shipment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatchesFuzzy(t *testing.T) {
	base := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	s := &Shipment{ClientRef: "C1 - Acme", Recipient: Recipient{Name: "Jane Doe"}, SaleAt: base}
	window := 2 * time.Minute

	tests := []struct {
		name      string
		clientRef string
		recipient string
		saleAt    time.Time
		want      bool
	}{
		{"same order", "C1 - Acme", "Jane Doe", base, true},
		{"119 seconds later", "C1 - Acme", "Jane Doe", base.Add(119 * time.Second), true},
		{"119 seconds earlier", "C1 - Acme", "Jane Doe", base.Add(-119 * time.Second), true},
		{"window edge", "C1 - Acme", "Jane Doe", base.Add(window), true},
		{"121 seconds later", "C1 - Acme", "Jane Doe", base.Add(121 * time.Second), false},
		{"case and spaces folded", "C1 - Acme", "  JANE doe ", base, true},
		{"other client", "C2 - Other", "Jane Doe", base, false},
		{"other recipient", "C1 - Acme", "John Doe", base, false},
		{"zero sale time", "C1 - Acme", "Jane Doe", time.Time{}, false},
		{"other timezone same instant", "C1 - Acme", "Jane Doe", base.In(time.FixedZone("ART", -3*3600)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MatchesFuzzy(tt.clientRef, tt.recipient, tt.saleAt, window))
		})
	}

	t.Run("deleted never matches", func(t *testing.T) {
		deleted := *s
		deleted.Deleted = true
		assert.False(t, deleted.MatchesFuzzy("C1 - Acme", "Jane Doe", base, window))
	})
}

func TestDedupKey(t *testing.T) {
	base := time.Date(2024, 3, 1, 13, 0, 30, 0, time.UTC)

	a := DedupKey("C1 - Acme", "Jane Doe", base, 4*time.Minute)
	b := DedupKey("C1 - Acme", " jane DOE", base.Add(time.Minute), 4*time.Minute)
	assert.Equal(t, a, b)

	c := DedupKey("C1 - Acme", "Jane Doe", base.Add(5*time.Minute), 4*time.Minute)
	assert.NotEqual(t, a, c)

	d := DedupKey("C2 - Other", "Jane Doe", base, 4*time.Minute)
	assert.NotEqual(t, a, d)

	assert.Equal(t, a, DedupKey("C1 - Acme", "Jane Doe", base, 0), "zero bucket defaults to four minutes")
}
