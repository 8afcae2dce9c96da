package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	got := Compute("STORE1", "2024:01:01-12:00:00", "3000.00", "HUF", "s3cr3t")
	assert.Equal(t, "a940a561f27319c7bd1b08c5f31f4dae10970900c30ab025c847e4930d50a572", got)
}

func TestVerify(t *testing.T) {
	sig := Compute("STORE1", "2024:01:01-12:00:00", "3000.00", "HUF", "s3cr3t")

	t.Run("accepts matching signature", func(t *testing.T) {
		assert.True(t, Verify(sig, "STORE1", "2024:01:01-12:00:00", "3000.00", "HUF", "s3cr3t"))
	})

	t.Run("accepts uppercase hex and surrounding whitespace", func(t *testing.T) {
		assert.True(t, Verify("  "+upper(sig)+"\n", "STORE1", "2024:01:01-12:00:00", "3000.00", "HUF", "s3cr3t"))
	})

	t.Run("rejects a single flipped character", func(t *testing.T) {
		tampered := []byte(sig)
		if tampered[0] == 'a' {
			tampered[0] = 'b'
		} else {
			tampered[0] = 'a'
		}
		assert.False(t, Verify(string(tampered), "STORE1", "2024:01:01-12:00:00", "3000.00", "HUF", "s3cr3t"))
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		assert.False(t, Verify(sig, "STORE1", "2024:01:01-12:00:00", "3000.00", "HUF", "wrong"))
	})

	t.Run("rejects amount drift", func(t *testing.T) {
		assert.False(t, Verify(sig, "STORE1", "2024:01:01-12:00:00", "3001.00", "HUF", "s3cr3t"))
	})

	t.Run("rejects empty signature", func(t *testing.T) {
		assert.False(t, Verify("", "STORE1", "2024:01:01-12:00:00", "3000.00", "HUF", "s3cr3t"))
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "3000.00", FormatAmount(3000))
	assert.Equal(t, "0.00", FormatAmount(0))
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	formatted := FormatTimestamp(ts)
	assert.Equal(t, "2024:01:01-12:00:00", formatted)

	parsed, err := ParseTimestamp(formatted)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func upper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}
