package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/username/divledger/src/models"
)

// DefaultHashFields is the current hash-field generation. The field list
// feeding the digest is explicit, versioned configuration: a profile that
// predates or postdates this generation pins its own `hash_fields` so two
// generations never silently produce incompatible hashes for the same
// logical row.
var DefaultHashFields = []string{
	"broker", "broker_account", "symbol", "pay_date", "net_amount",
	"source_file", "line_no",
}

const hashDelimiter = "|"

// RowHash computes the deterministic dedup key for one row: the listed
// fields rendered in their stable text form, joined with a fixed
// delimiter, SHA-256 hashed, hex encoded. Reingesting the same file byte
// for byte yields identical hashes.
func RowHash(row *models.CanonicalRow, fields []string) string {
	if len(fields) == 0 {
		fields = DefaultHashFields
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = row.FieldString(f)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, hashDelimiter)))
	return hex.EncodeToString(sum[:])
}
