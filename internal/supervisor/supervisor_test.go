package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnAndOutputIsObservedBySubscriber(t *testing.T) {
	info := StartInfo{Program: "/bin/echo", Args: []string{"hello"}, Cwd: "/"}

	var exited sync.WaitGroup
	exited.Add(1)
	var exitCode int
	p, err := Spawn(info, 0, nil, func(pid, code int) {
		exitCode = code
		exited.Done()
	}, nil)
	require.NoError(t, err)
	require.Greater(t, p.PID(), 0)

	ch := make(OutputSink, 8)
	tok := p.AttachOutput(ch)
	defer tok.Close()

	var got []byte
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case b := <-ch:
			got = append(got, b...)
			if len(got) > 0 {
				break loop
			}
		case <-deadline:
			break loop
		}
	}
	require.Contains(t, string(got), "hello")

	exited.Wait()
	require.Equal(t, 0, exitCode)
}

func TestKillTerminatesRunningProcess(t *testing.T) {
	info := StartInfo{Program: "/bin/sleep", Args: []string{"30"}, Cwd: "/"}
	p, err := Spawn(info, 0, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := p.Kill(ctx)
	require.NoError(t, err)
	require.NotEqual(t, 0, code)
}

func TestKillIsIdempotentAndConcurrencySafe(t *testing.T) {
	info := StartInfo{Program: "/bin/sleep", Args: []string{"30"}, Cwd: "/"}
	p, err := Spawn(info, 0, nil, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			code, err := p.Kill(ctx)
			require.NoError(t, err)
			codes[idx] = code
		}(i)
	}
	wg.Wait()
	for _, c := range codes {
		require.Equal(t, codes[0], c)
	}
}

func TestSnapshotReflectsRecentOutput(t *testing.T) {
	info := StartInfo{Program: "/bin/echo", Args: []string{"snapshot-me"}, Cwd: "/"}
	var done sync.WaitGroup
	done.Add(1)
	p, err := Spawn(info, 0, nil, func(int, int) { done.Done() }, nil)
	require.NoError(t, err)
	done.Wait()
	require.Contains(t, string(p.Snapshot()), "snapshot-me")
}
