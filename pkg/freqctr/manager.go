package freqctr

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/softdevteam/msrsampler/pkg/linux/msr"
	"github.com/softdevteam/msrsampler/pkg/linux/oncore"
	"github.com/softdevteam/msrsampler/pkg/xlog"
)

////////////////////////////////////////////////////////////////////////////////

// Capability returns the architectural performance counters version,
// see cpuid.GetPerfCounterVersion.
type Capability func() uint8

// Manager configures, resets and reads the frequency counters of the first
// n cores of the machine.
//
// Cores are always visited one at a time, in increasing order: every remote
// invocation completes before the next one is issued.
// Contexts passed to the methods only carry logging fields; a batch is never
// interrupted half way.
type Manager struct {
	logger     xlog.Logger
	dispatcher oncore.Dispatcher
	capability Capability
}

func NewManager(l xlog.Logger, d oncore.Dispatcher, capability Capability) *Manager {
	return &Manager{
		logger:     l.WithName("freqctr"),
		dispatcher: d,
		capability: capability,
	}
}

////////////////////////////////////////////////////////////////////////////////

type configureArgs struct {
	conf Configuration
	err  error
}

// configureCore runs on the target core. Every step is a checked access;
// the first failure stops the sequence.
func configureCore(acc msr.Accessor, args *configureArgs) {
	global, err := acc.ReadSafe(msr.GlobalCtrl)
	if err != nil {
		args.err = err
		return
	}

	err = acc.WriteSafe(msr.GlobalCtrl, global|msr.GlobalCtrlEnFixedCtr1)
	if err != nil {
		args.err = err
		return
	}

	ctrl, err := acc.ReadSafe(msr.FixedCtrCtrl)
	if err != nil {
		args.err = err
		return
	}

	args.err = acc.WriteSafe(msr.FixedCtrCtrl, ctrl|args.conf.FixedCtrCtrlBits())
}

// Configure enables IA32_PERF_FIXED_CTR1 on every core and makes it count
// unhalted core cycles in all rings (and on all threads of the core, where supported).
// Configure only ever sets bits, so running it again changes nothing.
//
// The first failed register access aborts the remaining cores and is
// returned as is (a *msr.AccessError). Bits already set on earlier cores stay set.
func (m *Manager) Configure(ctx context.Context, cores int) error {
	conf := NewConfiguration(m.capability())
	m.logger.Debug(ctx, "Configuring fixed-function counter",
		zap.Int("cores", cores),
		zap.Uint8("version", conf.Version),
		zap.Bool("any_thread", conf.EnableAnyThread),
	)

	for core := 0; core < cores; core++ {
		args := &configureArgs{conf: conf}
		err := oncore.Run(m.dispatcher, core, configureCore, args)
		if err != nil {
			return fmt.Errorf("failed to dispatch to core %d: %w", core, err)
		}
		if args.err != nil {
			m.logger.Error(ctx, "Failed to configure fixed-function counter",
				zap.Int("core", core),
				zap.Error(args.err),
			)
			return args.err
		}
	}

	return nil
}

////////////////////////////////////////////////////////////////////////////////

type readArgs struct {
	ctr1First bool
	sample    Sample
}

func readCore(acc msr.Accessor, args *readArgs) {
	if args.ctr1First {
		args.sample.Ctr1 = acc.Read(msr.FixedCtr1)
	}
	args.sample.APerf = acc.Read(msr.APerf)
	args.sample.MPerf = acc.Read(msr.MPerf)
	if !args.ctr1First {
		args.sample.Ctr1 = acc.Read(msr.FixedCtr1)
	}
}

// Read samples every core and hands the values to the sink.
//
// If ctr1First is set, IA32_PERF_FIXED_CTR1 is read before APERF/MPERF,
// otherwise after them. Alternating the order between calls averages out
// which counter is skewed against the others.
//
// A failed transfer aborts the batch with an error matching ErrTransferFault.
// Values of earlier cores are already in the sink, later cores are untouched.
func (m *Manager) Read(ctx context.Context, cores int, ctr1First bool, sink Sink) error {
	for core := 0; core < cores; core++ {
		args := &readArgs{ctr1First: ctr1First}
		err := oncore.Run(m.dispatcher, core, readCore, args)
		if err != nil {
			return fmt.Errorf("failed to dispatch to core %d: %w", core, err)
		}

		for _, value := range []struct {
			field Field
			value uint64
		}{
			{FieldAPerf, args.sample.APerf},
			{FieldMPerf, args.sample.MPerf},
			{FieldCtr1, args.sample.Ctr1},
		} {
			err = sink.Transfer(value.field, core, value.value)
			if err != nil {
				m.logger.Error(ctx, "Failed to transfer counter value",
					zap.Int("core", core),
					zap.Stringer("field", value.field),
					zap.Error(err),
				)
				return fmt.Errorf("%w: %s of core %d: %w", ErrTransferFault, value.field, core, err)
			}
		}
	}

	return nil
}

// ReadSamples reads every core into freshly allocated buffers.
func (m *Manager) ReadSamples(ctx context.Context, cores int, ctr1First bool) ([]Sample, error) {
	buffers := NewBuffers(cores)
	err := m.Read(ctx, cores, ctr1First, buffers)
	if err != nil {
		return nil, err
	}
	return buffers.Samples(), nil
}

////////////////////////////////////////////////////////////////////////////////

// MPERF is cleared before APERF, so APERF never exceeds MPERF until the next reset.
func resetCore(acc msr.Accessor) {
	acc.Write(msr.MPerf, 0)
	acc.Write(msr.APerf, 0)
	acc.Write(msr.FixedCtr1, 0)
}

// Reset zeroes the counters of every core. It is best effort and reports nothing.
func (m *Manager) Reset(ctx context.Context, cores int) {
	for core := 0; core < cores; core++ {
		err := m.dispatcher.RunOnCore(core, resetCore)
		if err != nil {
			m.logger.Debug(ctx, "Failed to reset counters", zap.Int("core", core), zap.Error(err))
		}
	}
}
