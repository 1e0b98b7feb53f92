package oncore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdevteam/msrsampler/pkg/linux/msr"
	"github.com/softdevteam/msrsampler/pkg/linux/msr/msrtest"
	"github.com/softdevteam/msrsampler/pkg/xlog"
)

func newSimulatedPool(t *testing.T, m *msrtest.Machine) *Pool {
	p, err := NewPool(context.Background(), xlog.NewNop(), m.NumCores(), Options{
		Open: m.Open,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, p.Close())
	})
	return p
}

func TestRunOnCoreTargetsCore(t *testing.T) {
	m := msrtest.NewMachine(4)
	p := newSimulatedPool(t, m)
	require.Equal(t, 4, p.NumCores())

	for core := 0; core < 4; core++ {
		err := p.RunOnCore(core, func(acc msr.Accessor) {
			acc.Write(msr.FixedCtr1, uint64(core+1))
		})
		require.NoError(t, err)
	}

	for core := 0; core < 4; core++ {
		journal := m.Core(core).Journal()
		require.Len(t, journal, 1)
		require.Equal(t, uint64(core+1), journal[0].Value)
	}
}

func TestRunBlocksUntilCompletion(t *testing.T) {
	type payload struct {
		in  uint64
		out uint64
	}

	m := msrtest.NewMachine(2)
	p := newSimulatedPool(t, m)
	m.Core(1).Set(msr.APerf, 7)

	arg := &payload{in: 35}
	err := Run(p, 1, func(acc msr.Accessor, arg *payload) {
		arg.out = arg.in + acc.Read(msr.APerf)
	}, arg)
	require.NoError(t, err)

	// Visible to the caller without further synchronization.
	require.Equal(t, uint64(42), arg.out)
}

func TestRunOnCoreIsSingleFlightPerCore(t *testing.T) {
	m := msrtest.NewMachine(1)
	p := newSimulatedPool(t, m)

	var (
		mu       sync.Mutex
		inflight int
		maxSeen  int
	)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.RunOnCore(0, func(acc msr.Accessor) {
				mu.Lock()
				inflight++
				maxSeen = max(maxSeen, inflight)
				mu.Unlock()

				_ = acc.Read(msr.MPerf)

				mu.Lock()
				inflight--
				mu.Unlock()
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Len(t, m.Core(0).Journal(), 16)
}

func TestRunOnCoreErrors(t *testing.T) {
	m := msrtest.NewMachine(2)
	p, err := NewPool(context.Background(), xlog.NewNop(), 2, Options{Open: m.Open})
	require.NoError(t, err)

	noop := func(msr.Accessor) {}

	require.ErrorIs(t, p.RunOnCore(2, noop), ErrNoSuchCore)
	require.ErrorIs(t, p.RunOnCore(-1, noop), ErrNoSuchCore)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.ErrorIs(t, p.RunOnCore(0, noop), ErrClosed)

	for core := 0; core < 2; core++ {
		opened, closed := m.Core(core).Handles()
		require.Equal(t, 1, opened)
		require.Equal(t, 1, closed)
	}
}

func TestNewPoolFailsOnOpenError(t *testing.T) {
	m := msrtest.NewMachine(3)
	errBroken := errors.New("broken")

	_, err := NewPool(context.Background(), xlog.NewNop(), 3, Options{
		Open: func(core int) (msr.Accessor, error) {
			if core == 2 {
				return nil, errBroken
			}
			return m.Open(core)
		},
	})
	require.ErrorIs(t, err, errBroken)

	for core := 0; core < 2; core++ {
		opened, closed := m.Core(core).Handles()
		require.Equal(t, opened, closed)
	}

	_, err = NewPool(context.Background(), xlog.NewNop(), 0, Options{Open: m.Open})
	require.Error(t, err)
}
