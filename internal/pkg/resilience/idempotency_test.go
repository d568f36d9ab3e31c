package resilience

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slothold/internal/pkg/clock"
)

func TestIdempotencyGuard_SecondCallReturnsCachedResult(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	guard := NewIdempotencyGuard(NewMemoryStore(clk), time.Hour)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return map[string]any{"reservation_id": 42}, nil
	}

	out, cached, err := guard.Execute(context.Background(), "sig-abc", op)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotNil(t, out)

	raw, cached, err := guard.Execute(context.Background(), "sig-abc", op)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, calls)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw.(json.RawMessage), &decoded))
	assert.EqualValues(t, 42, decoded["reservation_id"])
}

func TestIdempotencyGuard_ExpiredRecordReexecutes(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	guard := NewIdempotencyGuard(NewMemoryStore(clk), time.Hour)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	}

	_, _, err := guard.Execute(context.Background(), "key", op)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	_, cached, err := guard.Execute(context.Background(), "key", op)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyGuard_FailedOperationIsNotCached(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	guard := NewIdempotencyGuard(NewMemoryStore(clk), time.Hour)

	calls := 0
	_, _, err := guard.Execute(context.Background(), "key", func(ctx context.Context) (any, error) {
		calls++
		return nil, assert.AnError
	})
	require.Error(t, err)

	_, cached, err := guard.Execute(context.Background(), "key", func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyGuard_ConcurrentSameKeySingleExecution(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	guard := NewIdempotencyGuard(NewMemoryStore(clk), time.Hour)

	var mu sync.Mutex
	calls := 0
	op := func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return "done", nil
	}

	var wg sync.WaitGroup
	cachedResults := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, cached, err := guard.Execute(context.Background(), "same-key", op)
			assert.NoError(t, err)
			cachedResults[i] = cached
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.NotEqual(t, cachedResults[0], cachedResults[1])
}

func TestIdempotencyGuard_ForgetAllowsReexecution(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	guard := NewIdempotencyGuard(NewMemoryStore(clk), time.Hour)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	}

	_, _, err := guard.Execute(context.Background(), "key", op)
	require.NoError(t, err)

	guard.Forget(context.Background(), "key")

	_, cached, err := guard.Execute(context.Background(), "key", op)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, calls)
}

func TestLayeredStore_FallsBackAndWritesThrough(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	first := NewMemoryStore(clk)
	second := NewMemoryStore(clk)
	layered := NewLayeredStore(first, second)

	require.NoError(t, second.Set(context.Background(), "k", []byte(`"v"`), time.Hour))

	rec, err := layered.Get(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []byte(`"v"`), rec.Result)

	require.NoError(t, layered.Set(context.Background(), "k2", []byte(`1`), time.Hour))
	rec, err = first.Get(context.Background(), "k2")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	rec, err = second.Get(context.Background(), "k2")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}
