package event

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pinged struct{ N int }
type ponged struct{ N int }

func TestDispatch_RoutesByType(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var got []int
	Subscribe(d, func(ev pinged) { got = append(got, ev.N) })

	assert.Equal(t, 1, Dispatch(d, pinged{N: 7}))
	assert.Equal(t, 0, Dispatch(d, ponged{N: 9}))
	assert.Equal(t, []int{7}, got)
	assert.Equal(t, 1, Handlers[pinged](d))
	assert.Equal(t, 0, Handlers[ponged](d))
}

func TestDispatch_PanicDoesNotStopOtherHandlers(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	called := false
	Subscribe(d, func(pinged) { panic("boom") })
	Subscribe(d, func(pinged) { called = true })

	require.NotPanics(t, func() { Dispatch(d, pinged{}) })
	assert.True(t, called)
}

func TestDispatch_NestedDispatch(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var pongs int
	Subscribe(d, func(ev pinged) { Dispatch(d, ponged{N: ev.N}) })
	Subscribe(d, func(ev ponged) { pongs += ev.N })

	Dispatch(d, pinged{N: 3})
	assert.Equal(t, 3, pongs)
}

func TestDispatch_Concurrent(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var total atomic.Int64
	Subscribe(d, func(ev pinged) { total.Add(int64(ev.N)) })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Dispatch(d, pinged{N: 1})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1600), total.Load())
}
