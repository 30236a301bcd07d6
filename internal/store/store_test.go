package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyIsDerivedOncePIDAndStartedAtAreSet(t *testing.T) {
	started := time.Unix(1700000000, 0).UTC()
	r := Record{Name: "demo", PID: 1234, StartedAt: started}
	key := r.Key()
	require.Equal(t, UniqueKey(1234, started), key)
	// Subsequent calls reuse the already-computed key even if PID changes.
	r.PID = 9999
	require.Equal(t, key, r.Key())
}
