package shipment

import (
	"crypto/sha256"
	"math/big"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// TrackingTokenLength is the length of the opaque public tracking token.
	TrackingTokenLength = 32
	// SearchCodeLength is the length of the operator-facing search code.
	SearchCodeLength = 16
	// UnzonedName is the zone of shipments whose postal code matches no range.
	UnzonedName = "unzoned"
)

// NewTrackingToken returns a random 32 character hex token. It is derived
// from a v4 UUID and carries no internal identifier.
func NewTrackingToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SearchCodeGenerator derives 16 character alphanumeric codes by hashing a
// seed with a monotonic salt. Callers retry with Next on collision; every
// call yields a different code for the same seed.
type SearchCodeGenerator struct {
	salt atomic.Uint64
}

// NewSearchCodeGenerator starts the salt at the current time so restarts do
// not replay earlier sequences.
func NewSearchCodeGenerator() *SearchCodeGenerator {
	g := &SearchCodeGenerator{}
	g.salt.Store(uint64(time.Now().UnixNano()))
	return g
}

// Next returns the next code for seed.
func (g *SearchCodeGenerator) Next(seed string) string {
	salt := g.salt.Add(1)
	sum := sha256.Sum256([]byte(seed + ":" + strconv.FormatUint(salt, 10)))
	code := strings.ToUpper(new(big.Int).SetBytes(sum[:]).Text(36))
	for len(code) < SearchCodeLength {
		code = "0" + code
	}
	return code[:SearchCodeLength]
}
