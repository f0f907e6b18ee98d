// Package reference generates the customer-facing identifiers used on
// tickets and in payment requests.
package reference

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	bookingPrefix = "NKP"
	suffixLength  = 6
	alphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewBookingReference returns a reference of the form NKP followed by six
// random uppercase alphanumeric characters, e.g. NKPA3F9Q2. Collisions are
// possible and the caller must retry on a unique constraint violation.
func NewBookingReference() (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate booking reference: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return bookingPrefix + string(buf), nil
}

// NewTrxID returns the outbound payment reference sent to the gateway,
// BUS followed by the current timestamp down to the second.
func NewTrxID(now time.Time) string {
	return "BUS" + now.Format("20060102150405")
}
