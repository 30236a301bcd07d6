package ring

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendWithinCapacity(t *testing.T) {
	r := New(16)
	r.Append([]byte("hello "))
	r.Append([]byte("world"))
	require.Equal(t, "hello world", string(r.Bytes()))
}

func TestAppendOversizedInputReplacesBuffer(t *testing.T) {
	r := New(4)
	r.Append([]byte("abcdefgh"))
	require.Equal(t, "efgh", string(r.Bytes()))
}

func TestAppendEvictsWholeLines(t *testing.T) {
	r := New(10)
	r.Append([]byte("12345\n"))
	r.Append([]byte("abcd"))
	// "12345\nabcd" is exactly 10 bytes, fits without eviction.
	require.Equal(t, "12345\nabcd", string(r.Bytes()))

	r.Append([]byte("Z"))
	// Forces eviction of the "12345\n" line to make room for one more byte.
	require.Equal(t, "abcdZ", string(r.Bytes()))
	require.Equal(t, uint64(1), r.Evictions())
}

func TestAppendDropsWholeBufferWhenNoNewline(t *testing.T) {
	r := New(5)
	r.Append([]byte("abcde"))
	r.Append([]byte("f"))
	require.Equal(t, "f", string(r.Bytes()))
}

func TestLenNeverExceedsCapacity(t *testing.T) {
	r := New(8)
	for i := 0; i < 100; i++ {
		r.Append([]byte(strings.Repeat("x", i%5+1) + "\n"))
		require.LessOrEqual(t, r.Len(), 8)
	}
}

func TestWithReadLockSeesConsistentSnapshot(t *testing.T) {
	r := New(16)
	r.Append([]byte("snap"))
	var seen string
	r.WithReadLock(func(snapshot []byte) {
		seen = string(snapshot)
	})
	require.Equal(t, "snap", seen)
}

func TestWithWriteLockAppendsAndRunsCallback(t *testing.T) {
	r := New(16)
	var called bool
	evictions := r.WithWriteLock([]byte("hi"), func() {
		called = true
		// The callback observes the append as already applied. It reads
		// r.data directly: Bytes would block on the write lock held here.
		require.Equal(t, "hi", string(r.data))
	})
	require.True(t, called)
	require.Equal(t, uint64(0), evictions)
	require.Equal(t, "hi", string(r.Bytes()))
}

func TestWithWriteLockReportsEvictionsFromThisCall(t *testing.T) {
	r := New(5)
	r.Append([]byte("abcde"))
	evictions := r.WithWriteLock([]byte("f"), func() {})
	require.Equal(t, uint64(1), evictions)
	require.Equal(t, "f", string(r.Bytes()))
}

func TestWithWriteLockExcludesConcurrentReadLock(t *testing.T) {
	r := New(16)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		r.WithWriteLock([]byte("x"), func() {
			close(started)
			<-release
		})
		close(done)
	}()

	<-started
	readStarted := make(chan struct{})
	readDone := make(chan struct{})
	go func() {
		close(readStarted)
		r.WithReadLock(func(snapshot []byte) {})
		close(readDone)
	}()
	<-readStarted

	select {
	case <-readDone:
		t.Fatal("WithReadLock should not proceed while WithWriteLock's callback is running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done
	<-readDone
}
