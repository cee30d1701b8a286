package storage

import (
	"fmt"
)

// Settlement key schema for Pebble storage
// Uses different prefixes than consensus keys to avoid collisions:
//
// Consensus keys:
//   b:<hash>     → Block
//   c:<view>     → Certificate
//   cm           → Committed hash
//
// Settlement keys:
//   settle:<venue>:<timestamp>:<offerID> → SettlementRecord

const prefixSettlement = "settle:"

// settlementKey returns the key for a settlement record.
// Timestamp and offer id are zero-padded for lexicographic sorting.
func settlementKey(venue string, timestamp, offerID int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%016d", prefixSettlement, venue, timestamp, offerID))
}

// settlementPrefix returns the prefix for all settlements of a venue
func settlementPrefix(venue string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixSettlement, venue))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
