package subscribe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscribeAndForEach(t *testing.T) {
	l := NewList[int]()
	l.Subscribe(1)
	l.Subscribe(2)
	l.Subscribe(3)

	var sum int
	l.ForEach(func(v int) { sum += v })
	require.Equal(t, 6, sum)
	require.Equal(t, 3, l.Len())
}

func TestTokenCloseRemovesEntry(t *testing.T) {
	l := NewList[string]()
	tok := l.Subscribe("a")
	l.Subscribe("b")
	require.Equal(t, 2, l.Len())

	tok.Close()
	require.Equal(t, 1, l.Len())

	var seen []string
	l.ForEach(func(v string) { seen = append(seen, v) })
	require.Equal(t, []string{"b"}, seen)
}

func TestTokenCloseIsIdempotent(t *testing.T) {
	l := NewList[int]()
	tok := l.Subscribe(42)
	tok.Close()
	tok.Close()
	require.Equal(t, 0, l.Len())
}

func TestConcurrentSubscribeAndForEach(t *testing.T) {
	l := NewList[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tok := l.Subscribe(n)
			l.ForEach(func(int) {})
			tok.Close()
		}(i)
	}
	wg.Wait()
	require.Equal(t, 0, l.Len())
}
