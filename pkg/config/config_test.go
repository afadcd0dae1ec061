package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Minute, c.PendingTimeout())
	assert.Equal(t, 5, c.CompensationMaxRetries)
	assert.Equal(t, 1000, c.CompensationQueueCapacity)
	assert.Equal(t, "memory", c.CompensationQueueBackend)
	assert.Equal(t, 30*time.Second, c.CompensationInterval)
	assert.Equal(t, 3, c.PartitionMonthsAhead)
	assert.Equal(t, []string{"localhost:9092"}, c.KafkaBrokers)
}

func TestLoadFromEnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("ROOM_TOPIC=rooms-from-file\nPENDING_TIMEOUT_MINUTES=15\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ROOM_TOPIC") })
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PENDING_TIMEOUT_MINUTES", "30")
	t.Setenv("COMPENSATION_QUEUE_BACKEND", "redis")

	c, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "rooms-from-file", c.RoomTopic)
	assert.Equal(t, 30*time.Minute, c.PendingTimeout(), "process env wins over .env")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, "redis", c.CompensationQueueBackend)
}

func TestLoadRejectsUnknownQueueBackend(t *testing.T) {
	t.Setenv("COMPENSATION_QUEUE_BACKEND", "kafka")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "COMPENSATION_QUEUE_BACKEND")
}
