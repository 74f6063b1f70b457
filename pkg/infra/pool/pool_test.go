package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTasks(t *testing.T) {
	p, err := New("test", &Config{Capacity: 4, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release(time.Second)

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	assert.EqualValues(t, 20, n.Load())
	assert.EqualValues(t, 20, p.Stats().Submitted)
	assert.Equal(t, 4, p.Stats().Capacity)
}

func TestSubmitWithCanceledContext(t *testing.T) {
	p, err := New("ctx", nil)
	require.NoError(t, err)
	defer p.Release(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func() {}), context.Canceled)
}

func TestNonblockingOverload(t *testing.T) {
	p, err := New("tiny", &Config{Capacity: 1, ExpiryDuration: time.Second, Nonblocking: true})
	require.NoError(t, err)
	defer p.Release(time.Second)

	block := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-block }))
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolOverload)
	close(block)
	assert.EqualValues(t, 1, p.Stats().Rejected)
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := New("closed", nil)
	require.NoError(t, err)
	p.Release(time.Second)
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestInvalidCapacity(t *testing.T) {
	_, err := New("bad", &Config{Capacity: 0})
	assert.Error(t, err)
}
