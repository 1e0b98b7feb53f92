package msrtest

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softdevteam/msrsampler/pkg/linux/msr"
)

func TestCoreCountsOnlyEnabledCtr1(t *testing.T) {
	m := NewMachine(1)
	acc, err := m.Open(0)
	require.NoError(t, err)

	m.Busy(10)
	require.Zero(t, acc.Read(msr.FixedCtr1))
	require.Equal(t, uint64(1000), m.Core(0).Get(msr.MPerf)-100)

	acc.Write(msr.GlobalCtrl, msr.GlobalCtrlEnFixedCtr1)
	acc.Write(msr.FixedCtrCtrl, msr.FixedCtrCtrlEn1OS)
	m.Busy(10)
	require.NotZero(t, acc.Read(msr.FixedCtr1))
}

func TestCoreJournal(t *testing.T) {
	m := NewMachine(2)
	acc, err := m.Open(1)
	require.NoError(t, err)

	acc.Write(msr.MPerf, 0)
	_ = acc.Read(msr.APerf)

	require.Equal(t, []Access{
		{Op: msr.OpWrite, Register: msr.MPerf, Value: 0},
		{Op: msr.OpRead, Register: msr.APerf, Value: 80},
	}, m.Core(1).Journal())
	require.Empty(t, m.Core(0).Journal())
}

func TestCoreUnsupported(t *testing.T) {
	m := NewMachine(1)
	m.Core(0).Unsupported(msr.GlobalCtrl, syscall.EIO)

	acc, err := m.Open(0)
	require.NoError(t, err)

	_, err = acc.ReadSafe(msr.GlobalCtrl)
	require.ErrorIs(t, err, syscall.EIO)
	require.ErrorIs(t, acc.WriteSafe(msr.GlobalCtrl, 1), syscall.EIO)
	require.Zero(t, acc.Read(msr.GlobalCtrl))
	require.Empty(t, m.Core(0).Journal())
}

func TestCounterWidthJunk(t *testing.T) {
	m := NewMachine(1, WithCounterWidth(48, ^uint64(0)))
	acc, err := m.Open(0)
	require.NoError(t, err)

	value := acc.Read(msr.FixedCtr1)
	require.Equal(t, uint64(0xffff)<<48, value)
}

func TestOpenOutOfRange(t *testing.T) {
	m := NewMachine(2)
	_, err := m.Open(2)
	require.Error(t, err)
	_, err = m.Open(-1)
	require.Error(t, err)
}
