package agents

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetUnknownAgent(t *testing.T) {
	r := NewRegistry(5)
	_, err := r.Get("nope")
	require.Error(t, err)
	var unknown *ErrUnknownAgent
	assert.ErrorAs(t, err, &unknown)
}

func TestRegistry_ActivateRunsRegisteredAgent(t *testing.T) {
	r := NewRegistry(5)
	r.Register(&Func{
		AgentName: "echo",
		AgentCaps: []string{"echo"},
		HandleFunc: func(ctx context.Context, tc *TaskContext) (Result, error) {
			return Result{Output: "echo: " + tc.Query}, nil
		},
	})

	res, err := r.Activate(context.Background(), "echo", &TaskContext{Query: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", res.Output)
}

func TestRegistry_ConcurrencyGateBoundsParallelism(t *testing.T) {
	r := NewRegistry(2)

	var inFlight int32
	var maxObserved int32
	block := make(chan struct{})

	r.Register(&Func{
		AgentName: "slow",
		HandleFunc: func(ctx context.Context, tc *TaskContext) (Result, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxObserved)
				if n <= old || atomic.CompareAndSwapInt32(&maxObserved, old, n) {
					break
				}
			}
			<-block
			atomic.AddInt32(&inFlight, -1)
			return Result{}, nil
		},
	})

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			_, _ = r.Activate(context.Background(), "slow", &TaskContext{})
			done <- struct{}{}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxObserved), int32(2))

	close(block)
	for i := 0; i < 5; i++ {
		<-done
	}
}

func TestRegistry_InterruptStopsActivation(t *testing.T) {
	r := NewRegistry(5)
	r.Register(&Func{
		AgentName:  "noop",
		HandleFunc: func(ctx context.Context, tc *TaskContext) (Result, error) { return Result{}, nil },
	})

	r.Interrupt("noop")
	_, err := r.Activate(context.Background(), "noop", &TaskContext{})
	assert.Error(t, err)

	r.ClearInterrupt()
	_, err = r.Activate(context.Background(), "noop", &TaskContext{})
	assert.NoError(t, err)
}

func TestRegistry_ActivatePanicIsRecovered(t *testing.T) {
	r := NewRegistry(5)
	r.Register(&Func{
		AgentName: "boom",
		HandleFunc: func(ctx context.Context, tc *TaskContext) (Result, error) {
			panic("kaboom")
		},
	})

	_, err := r.Activate(context.Background(), "boom", &TaskContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
