package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uexec "github.com/joeycumines/go-uexec"
)

func TestPool_SubmitRunsOnWorker(t *testing.T) {
	p := New(nil, 1, 2, 4, WithSeparateCluster())
	defer p.Close()

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func(task *uexec.Task) {
			require.NotNil(t, task)
			n.Add(1)
		}))
	}

	deadline := time.Now().Add(2 * time.Second)
	for n.Load() != 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.EqualValues(t, 10, n.Load())
}

func TestPool_SubmitRespectsContextCancellation(t *testing.T) {
	p := New(nil, 1, 1, 1, WithSeparateCluster())
	defer p.Close()

	block := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(*uexec.Task) {
		<-block
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func(*uexec.Task) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
}

func TestPool_GroupShortCircuitsOnError(t *testing.T) {
	p := New(nil, 1, 3, 8, WithSeparateCluster())
	defer p.Close()

	sentinel := errors.New("boom")
	err := p.Group(context.Background(),
		func(*uexec.Task) error { return nil },
		func(*uexec.Task) error { return sentinel },
		func(*uexec.Task) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		},
	)
	assert.ErrorIs(t, err, sentinel)
}

func TestPool_AffinityBaseAdvisory(t *testing.T) {
	p := New(nil, 1, 1, 1, WithSeparateCluster(), WithAffinityBase(3))
	defer p.Close()
	assert.Equal(t, 3, p.AffinityBase())
}
