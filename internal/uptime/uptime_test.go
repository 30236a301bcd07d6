package uptime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{1 * time.Second, "1 second"},
		{6 * time.Second, "6 seconds"},
		{80 * time.Second, "1 minute"},
		{3 * time.Hour, "3 hours"},
		{7 * 24 * time.Hour, "7 days"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Format(c.d))
	}
}

func TestScheduleRuns(t *testing.T) {
	var ran atomic.Bool
	Schedule(10*time.Millisecond, func() { ran.Store(true) })
	time.Sleep(50 * time.Millisecond)
	require.True(t, ran.Load())
}

func TestScheduleCancel(t *testing.T) {
	var ran atomic.Bool
	task := Schedule(30*time.Millisecond, func() { ran.Store(true) })
	task.Cancel()
	time.Sleep(60 * time.Millisecond)
	require.False(t, ran.Load())
}
