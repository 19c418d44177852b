package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	t.Run("ComputesOnce", func(t *testing.T) {
		var calls atomic.Int32
		v := NewValue(func(context.Context) (string, error) {
			calls.Add(1)
			return "session", nil
		})

		for range 3 {
			got, err := v.Get(t.Context())
			require.NoError(t, err)
			assert.Equal(t, "session", got)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("SharesInFlightCall", func(t *testing.T) {
		var calls atomic.Int32
		release := make(chan struct{})
		v := NewValue(func(context.Context) (int, error) {
			calls.Add(1)
			<-release
			return 42, nil
		})

		var wg sync.WaitGroup
		results := make([]int, 5)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := v.Get(context.Background())
				assert.NoError(t, err)
				results[i] = got
			}()
		}
		close(release)
		wg.Wait()

		assert.Equal(t, []int{42, 42, 42, 42, 42}, results)
		assert.LessOrEqual(t, calls.Load(), int32(5))
		got, err := v.Get(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("ErrorsAreNotCached", func(t *testing.T) {
		fail := true
		v := NewValue(func(context.Context) (string, error) {
			if fail {
				return "", errors.New("boom")
			}
			return "ok", nil
		})

		_, err := v.Get(t.Context())
		require.Error(t, err)

		fail = false
		got, err := v.Get(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})

	t.Run("Reset", func(t *testing.T) {
		var calls atomic.Int32
		v := NewValue(func(context.Context) (int32, error) {
			return calls.Add(1), nil
		})

		first, err := v.Get(t.Context())
		require.NoError(t, err)
		v.Reset()
		second, err := v.Get(t.Context())
		require.NoError(t, err)
		assert.Equal(t, int32(1), first)
		assert.Equal(t, int32(2), second)
	})
}

func TestMap(t *testing.T) {
	type key struct{ year, day int }

	var calls atomic.Int32
	m := NewMap(func(_ context.Context, k key) (int, error) {
		calls.Add(1)
		if k.day == 0 {
			return 0, errors.New("bad day")
		}
		return k.year*100 + k.day, nil
	})

	got, err := m.Get(t.Context(), key{2021, 7})
	require.NoError(t, err)
	assert.Equal(t, 202107, got)

	got, err = m.Get(t.Context(), key{2021, 7})
	require.NoError(t, err)
	assert.Equal(t, 202107, got)
	assert.Equal(t, int32(1), calls.Load())

	got, err = m.Get(t.Context(), key{2021, 8})
	require.NoError(t, err)
	assert.Equal(t, 202108, got)
	assert.Equal(t, int32(2), calls.Load())

	_, err = m.Get(t.Context(), key{2021, 0})
	require.Error(t, err)
	_, err = m.Get(t.Context(), key{2021, 0})
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())

	m.Forget()
	_, err = m.Get(t.Context(), key{2021, 7})
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load())
}

func TestCanceledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	v := NewValue(func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return "input", ctx.Err()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := v.Get(first)
		firstErr <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		got, err := v.Get(context.Background())
		assert.NoError(t, err)
		second <- got
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, "input", <-second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForgetDuringComputation(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	m := NewMap(func(_ context.Context, day int) (string, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
			return "stale", nil
		}
		return "fresh", nil
	})

	stale := make(chan string, 1)
	go func() {
		got, err := m.Get(context.Background(), 7)
		assert.NoError(t, err)
		stale <- got
	}()
	<-started

	m.Forget()
	got, err := m.Get(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	close(release)
	assert.Equal(t, "stale", <-stale)

	got, err = m.Get(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResetDuringComputation(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	v := NewValue(func(context.Context) (int32, error) {
		n := calls.Add(1)
		if n == 1 {
			started <- struct{}{}
			<-release
		}
		return n, nil
	})

	first := make(chan int32, 1)
	go func() {
		got, err := v.Get(context.Background())
		assert.NoError(t, err)
		first <- got
	}()
	<-started

	v.Reset()
	close(release)
	assert.Equal(t, int32(1), <-first)

	_, ok := v.Peek()
	assert.False(t, ok)

	got, err := v.Get(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), got)
}
