// Package signature implements the shared-secret hash exchanged with the
// hosted-payment-page provider. The gateway concatenates the exact same
// fields in the exact same order; any change here breaks interoperability.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the gateway's transaction timestamp format.
const TimestampLayout = "2006:01:02-15:04:05"

// Compute returns the lowercase hex SHA-256 over the canonical
// concatenation merchant+timestamp+amount+currency+secret.
func Compute(merchant, timestamp, amount, currency, secret string) string {
	sum := sha256.Sum256([]byte(merchant + timestamp + amount + currency + secret))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature and compares it in constant time.
func Verify(provided, merchant, timestamp, amount, currency, secret string) bool {
	expected := Compute(merchant, timestamp, amount, currency, secret)
	provided = strings.ToLower(strings.TrimSpace(provided))
	return hmac.Equal([]byte(provided), []byte(expected))
}

// FormatAmount renders a whole-unit amount the way the gateway signs it.
func FormatAmount(amount int64) string {
	return fmt.Sprintf("%d.00", amount)
}

// FormatTimestamp renders a transaction timestamp the way the gateway signs it.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a gateway transaction timestamp.
func ParseTimestamp(value string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, strings.TrimSpace(value), time.Local)
}
