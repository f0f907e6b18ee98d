package reference

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingReference(t *testing.T) {
	pattern := regexp.MustCompile(`^NKP[A-Z0-9]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref, err := NewBookingReference()
		require.NoError(t, err)
		assert.Regexp(t, pattern, ref)
		seen[ref] = true
	}

	// 100 draws from a 36^6 space should not all collide
	assert.Greater(t, len(seen), 90)
}

func TestNewTrxID(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	assert.Equal(t, "BUS20260314092653", NewTrxID(now))
}
