package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventbus-fabric/eventbus/internal/wal"
)

func TestConnStringFormatsAllFields(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     5432,
		User:     "eventbus",
		Password: "s3cret",
		Database: "eventbus_mirror",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5432 user=eventbus password=s3cret dbname=eventbus_mirror sslmode=require",
		cfg.connString(),
	)
}

func TestStateCodeCoversEveryWALState(t *testing.T) {
	for _, s := range []wal.State{wal.StatePending, wal.StateInFlight, wal.StateDelivered, wal.StateDeadLetter} {
		_, ok := stateCode[s]
		assert.True(t, ok, "no events.state encoding for %q", s)
	}
}

func TestNullIfZero(t *testing.T) {
	assert.Nil(t, nullIfZero(0))
	got := nullIfZero(42)
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(42), *got)
	}
}
