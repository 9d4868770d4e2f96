package ecommerce

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// firstNonEmpty returns the first candidate that is not blank after trimming.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if v := strings.TrimSpace(c); v != "" {
			return v
		}
	}
	return ""
}

// firstOf evaluates accessors in priority order and returns the first
// non-blank value. Accessors must be nil-safe over their payload.
func firstOf[T any](payload *T, accessors ...func(*T) string) string {
	for _, get := range accessors {
		if v := strings.TrimSpace(get(payload)); v != "" {
			return v
		}
	}
	return ""
}

// joinNonEmpty joins the non-blank parts with sep.
func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}

// parseDecimal parses a numeric string, returning zero when it is not one.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseTime accepts RFC 3339 and the offset-without-colon variant some
// platforms emit. Zero when neither parses.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// flexString decodes a JSON string or number into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// statusTable maps a provider vocabulary to canonical statuses. Unknown
// values default to AwaitingPickup.
type statusTable map[string]shipment.Status

func (t statusTable) resolve(raw string) shipment.Status {
	if s, ok := t[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return shipment.StatusAwaitingPickup
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
