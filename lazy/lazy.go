// Package lazy provides compute-once values.
//
// A Value runs its initializer at most once successfully. Concurrent callers
// that arrive while the initializer is running share that single in-flight
// call instead of starting their own. A failed initialization is handed to
// every caller that was waiting on it but is not remembered, so the next Get
// tries again.
//
// The shared call does not inherit the cancellation of the caller that
// started it. A caller whose context is canceled stops waiting and gets the
// context error, while the others keep waiting for the result.
package lazy

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Value holds a lazily computed T.
type Value[T any] struct {
	init  func(ctx context.Context) (T, error)
	group singleflight.Group

	mu    sync.Mutex
	gen   uint64
	done  bool
	value T
}

// NewValue returns a Value computed by init on first use.
func NewValue[T any](init func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{init: init}
}

// Get returns the cached value, computing it if needed.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	if v.done {
		value := v.value
		v.mu.Unlock()
		return value, nil
	}
	gen := v.gen
	v.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	return wait[T](ctx, &v.group, fmt.Sprint(gen), func() (any, error) {
		// A caller may have stored the value between our check and Do.
		v.mu.Lock()
		if v.done && v.gen == gen {
			value := v.value
			v.mu.Unlock()
			return value, nil
		}
		v.mu.Unlock()

		value, err := v.init(flightCtx)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		// Reset ran while computing; the result is stale.
		if v.gen == gen {
			v.value = value
			v.done = true
		}
		v.mu.Unlock()
		return value, nil
	})
}

// Peek returns the cached value without computing it.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.done
}

// Reset forgets a cached value. A computation already running when Reset is
// called still answers its own callers but is not cached.
func (v *Value[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.value = zero
	v.done = false
	v.gen++
}

// Map memoizes a function per key, with the same sharing rules as Value.
type Map[K comparable, V any] struct {
	fn    func(ctx context.Context, key K) (V, error)
	group singleflight.Group

	mu     sync.Mutex
	gen    uint64
	values map[K]V
}

// NewMap returns a Map computing missing entries with fn.
func NewMap[K comparable, V any](fn func(ctx context.Context, key K) (V, error)) *Map[K, V] {
	return &Map[K, V]{
		fn:     fn,
		values: make(map[K]V),
	}
}

// Get returns the value for key, computing it if needed.
func (m *Map[K, V]) Get(ctx context.Context, key K) (V, error) {
	m.mu.Lock()
	if value, ok := m.values[key]; ok {
		m.mu.Unlock()
		return value, nil
	}
	gen := m.gen
	m.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	return wait[V](ctx, &m.group, fmt.Sprintf("%d/%#v", gen, key), func() (any, error) {
		if value, ok := m.lookup(key, gen); ok {
			return value, nil
		}
		value, err := m.fn(flightCtx, key)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if m.gen == gen {
			m.values[key] = value
		}
		m.mu.Unlock()
		return value, nil
	})
}

// Forget drops every cached entry. Computations already running are not
// cached when they finish.
func (m *Map[K, V]) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[K]V)
	m.gen++
}

func (m *Map[K, V]) lookup(key K, gen uint64) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		var zero V
		return zero, false
	}
	value, ok := m.values[key]
	return value, ok
}

// wait joins the flight for key and returns its result, or the context error
// if ctx ends first.
func wait[T any](ctx context.Context, group *singleflight.Group, key string, fn func() (any, error)) (T, error) {
	var zero T
	select {
	case res := <-group.DoChan(key, fn):
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
