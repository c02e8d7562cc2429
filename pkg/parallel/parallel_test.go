package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequential_RangeInOrder(t *testing.T) {
	s := NewSequential()
	var order []int
	err := s.Range(context.Background(), 5, func(ctx context.Context, i int) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSequential_RangeStopsOnFirstError(t *testing.T) {
	s := NewSequential()
	boom := errors.New("boom")
	var ran int
	err := s.Range(context.Background(), 5, func(ctx context.Context, i int) error {
		ran++
		if i == 2 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, boom, err)
	assert.Equal(t, 3, ran)
}

func TestSequential_CancelableStopsDispatch(t *testing.T) {
	tok := NewCancellationToken()
	s := NewSequential().Cancelable(tok)
	var ran int32
	tok.Cancel("test")
	err := s.Range(context.Background(), 5, func(ctx context.Context, i int) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsOperationCanceled(err))
	assert.Equal(t, int32(0), ran)
}

func TestConcurrent_RangeCoversAllIndices(t *testing.T) {
	c := NewConcurrent(Config{MaxWorkers: 4})
	var count int32
	seen := make([]int32, 20)
	err := c.Range(context.Background(), 20, func(ctx context.Context, i int) error {
		atomic.AddInt32(&count, 1)
		atomic.AddInt32(&seen[i], 1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(20), count)
	for _, s := range seen {
		assert.Equal(t, int32(1), s)
	}
}

func TestConcurrent_RangePropagatesError(t *testing.T) {
	c := NewConcurrent(Config{MaxWorkers: 2})
	boom := errors.New("boom")
	err := c.Range(context.Background(), 10, func(ctx context.Context, i int) error {
		if i == 5 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
}

func TestCancellationToken_WithTimeoutFires(t *testing.T) {
	tok, release := WithTimeout(10 * time.Millisecond)
	defer release()
	<-tok.Done()
	time.Sleep(5 * time.Millisecond)
	assert.True(t, tok.Canceled())
	assert.True(t, apperrors.IsOperationCanceled(tok.Err()))
}

func TestCancellationToken_NotCanceledInitially(t *testing.T) {
	tok := NewCancellationToken()
	assert.False(t, tok.Canceled())
	assert.NoError(t, tok.Err())
}
