// Package pricing resolves postal codes to delivery zones and costs.
package pricing

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
)

var (
	ErrPriceListNotFound = shared.NewDomainError(shared.CodeNotFound, "price list not found")
	ErrInvalidPattern    = shared.NewDomainError(shared.CodeValidation, "invalid postal code pattern")
)

// PriceList is a client's tariff. A list may delegate its zones to another
// shared list; only one level of delegation is followed.
type PriceList struct {
	ID           uuid.UUID
	Name         string
	DelegateToID *uuid.UUID
	Zones        []PriceZone
}

// PriceZone prices the postal codes matched by Pattern.
type PriceZone struct {
	Name    string
	Pattern string
	Price   decimal.Decimal
}

// Matches reports whether the digits-only postal code falls in the zone.
// Pattern is a numeric range "A-B", or a comma separated list of codes
// (a single code being a list of one).
func (z PriceZone) Matches(code string) bool {
	if code == "" {
		return false
	}
	pattern := strings.TrimSpace(z.Pattern)
	if lo, hi, ok := parseRange(pattern); ok {
		n, err := strconv.Atoi(code)
		return err == nil && n >= lo && n <= hi
	}
	for _, item := range strings.Split(pattern, ",") {
		if DigitsOnly(item) == code {
			return true
		}
	}
	return false
}

// Match returns the first zone matching postalCode.
func (l *PriceList) Match(postalCode string) (PriceZone, bool) {
	code := DigitsOnly(postalCode)
	for _, z := range l.Zones {
		if z.Matches(code) {
			return z, true
		}
	}
	return PriceZone{}, false
}

// ValidatePattern checks a zone pattern is a range or a code list.
func ValidatePattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return ErrInvalidPattern
	}
	if strings.Contains(pattern, "-") && !strings.Contains(pattern, ",") {
		if _, _, ok := parseRange(pattern); !ok {
			return ErrInvalidPattern
		}
		return nil
	}
	for _, item := range strings.Split(pattern, ",") {
		if DigitsOnly(item) == "" {
			return ErrInvalidPattern
		}
	}
	return nil
}

// DigitsOnly strips every non-digit rune, so "C1005AAB" becomes "1005".
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseRange(pattern string) (int, int, bool) {
	if strings.Contains(pattern, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(pattern, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// PriceListRepository reads price lists.
type PriceListRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PriceList, error)
	Save(ctx context.Context, list *PriceList) error
}
