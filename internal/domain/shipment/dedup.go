package shipment

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// NormalizeRecipientName trims and case-folds name, the comparison used by
// the fuzzy dedup path and the dedup key.
func NormalizeRecipientName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// DedupKey is the store-level uniqueness key of an ingested order: client,
// normalized recipient and the sale time truncated to bucket. Two identical
// payloads always collide on it, which closes the read-then-write race of
// concurrent ingestion passes.
func DedupKey(clientRef, recipientName string, saleAt time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = 4 * time.Minute
	}
	slot := saleAt.UTC().Truncate(bucket).Unix()
	return clientRef + "|" + NormalizeRecipientName(recipientName) + "|" + strconv.FormatInt(slot, 10)
}

// MatchesFuzzy reports whether s is the same commercial order as a draft with
// the given client, recipient and sale time: equal client string, recipient
// equal after trim and case fold, and sale times at most window apart.
func (s *Shipment) MatchesFuzzy(clientRef, recipientName string, saleAt time.Time, window time.Duration) bool {
	if s.Deleted || saleAt.IsZero() || s.SaleAt.IsZero() {
		return false
	}
	if s.ClientRef != clientRef {
		return false
	}
	if NormalizeRecipientName(s.Recipient.Name) != NormalizeRecipientName(recipientName) {
		return false
	}
	delta := s.SaleAt.Sub(saleAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}
