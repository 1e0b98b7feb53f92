package freqctr

import "fmt"

////////////////////////////////////////////////////////////////////////////////

// Sample is one reading of the counters of a single core.
//
// The three registers are read one after another without disabling
// interrupts, so a sample is not an atomic snapshot.
type Sample struct {
	APerf uint64
	MPerf uint64
	Ctr1  uint64
}

////////////////////////////////////////////////////////////////////////////////

// CounterMask keeps the meaningful bits of a fixed-function counter value.
type CounterMask struct {
	width int
	mask  uint64
}

// NewCounterMask builds the mask for a counter of the given bit width,
// as reported by cpuid.FixedCounterWidth.
func NewCounterMask(width int) (CounterMask, error) {
	if width < 0 || width > 64 {
		return CounterMask{}, fmt.Errorf("invalid counter width %d", width)
	}
	return CounterMask{width: width, mask: uint64(1)<<width - 1}, nil
}

func (m CounterMask) Width() int {
	return m.width
}

func (m CounterMask) Bits() uint64 {
	return m.mask
}

func (m CounterMask) Apply(value uint64) uint64 {
	return value & m.mask
}

// Masked returns the sample with bits above the counter width cleared from Ctr1.
func (s Sample) Masked(m CounterMask) Sample {
	s.Ctr1 = m.Apply(s.Ctr1)
	return s
}

////////////////////////////////////////////////////////////////////////////////

// Delta is the progress of the counters of one core between two samples.
type Delta struct {
	APerf uint64
	MPerf uint64
	Ctr1  uint64
}

// Diff computes after - before. Ctr1 wraps around at the counter width.
func Diff(before, after Sample, m CounterMask) Delta {
	return Delta{
		APerf: after.APerf - before.APerf,
		MPerf: after.MPerf - before.MPerf,
		Ctr1:  m.Apply(m.Apply(after.Ctr1) - m.Apply(before.Ctr1)),
	}
}

// Ratio is the effective frequency of the core relative to its nominal frequency.
func (d Delta) Ratio() float64 {
	if d.MPerf == 0 {
		return 0
	}
	return float64(d.APerf) / float64(d.MPerf)
}

////////////////////////////////////////////////////////////////////////////////

type MonotonicityError struct {
	Core    int
	Counter string
	Before  uint64
	After   uint64
}

func (e *MonotonicityError) Error() string {
	return fmt.Sprintf("%s went backwards on core %d: %d -> %d", e.Counter, e.Core, e.Before, e.After)
}

// CheckMonotonic reports the first core whose counters decreased between
// two batches read without an intervening reset.
func CheckMonotonic(before, after []Sample) error {
	if len(before) != len(after) {
		return fmt.Errorf("sample count mismatch: %d != %d", len(before), len(after))
	}

	for core := range before {
		b, a := before[core], after[core]
		switch {
		case b.APerf > a.APerf:
			return &MonotonicityError{Core: core, Counter: "aperf", Before: b.APerf, After: a.APerf}
		case b.MPerf > a.MPerf:
			return &MonotonicityError{Core: core, Counter: "mperf", Before: b.MPerf, After: a.MPerf}
		case b.Ctr1 > a.Ctr1:
			return &MonotonicityError{Core: core, Counter: "ctr1", Before: b.Ctr1, After: a.Ctr1}
		}
	}
	return nil
}
