package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAreOrderedAndNonEmpty(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for i, name := range names {
		if i > 0 {
			assert.Less(t, names[i-1], name)
		}
		body, err := files.ReadFile(name)
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(body)), name)
	}
}

func TestSlotPricesHaveDefaultPartition(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)

	var all strings.Builder
	for _, name := range names {
		body, err := files.ReadFile(name)
		require.NoError(t, err)
		all.Write(body)
	}
	assert.Contains(t, all.String(), "PARTITION BY RANGE (slot_start)")
	assert.Contains(t, all.String(), "PARTITION OF reservation_slot_prices DEFAULT")
}
