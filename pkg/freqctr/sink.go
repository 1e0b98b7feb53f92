package freqctr

import (
	"errors"
	"fmt"
)

var ErrTransferFault = errors.New("transfer fault")

type Field int

const (
	FieldAPerf Field = iota
	FieldMPerf
	FieldCtr1
)

func (f Field) String() string {
	switch f {
	case FieldAPerf:
		return "aperf"
	case FieldMPerf:
		return "mperf"
	case FieldCtr1:
		return "ctr1"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Sink receives the values captured on a core, one value at a time.
// Every transfer is checked on its own; a failed transfer aborts the batch.
type Sink interface {
	Transfer(field Field, core int, value uint64) error
}

////////////////////////////////////////////////////////////////////////////////

// Buffers are caller-allocated output arrays, one slot per core.
type Buffers struct {
	APerfs []uint64
	MPerfs []uint64
	Ctr1s  []uint64
}

var _ Sink = (*Buffers)(nil)

func NewBuffers(cores int) *Buffers {
	return &Buffers{
		APerfs: make([]uint64, cores),
		MPerfs: make([]uint64, cores),
		Ctr1s:  make([]uint64, cores),
	}
}

func (b *Buffers) slot(field Field) []uint64 {
	switch field {
	case FieldAPerf:
		return b.APerfs
	case FieldMPerf:
		return b.MPerfs
	case FieldCtr1:
		return b.Ctr1s
	default:
		return nil
	}
}

func (b *Buffers) Transfer(field Field, core int, value uint64) error {
	buf := b.slot(field)
	if core < 0 || core >= len(buf) {
		return fmt.Errorf("core %d does not fit into %s buffer of %d slots", core, field, len(buf))
	}
	buf[core] = value
	return nil
}

// Samples zips the buffers. The result has as many entries as the shortest buffer.
func (b *Buffers) Samples() []Sample {
	n := min(len(b.APerfs), len(b.MPerfs), len(b.Ctr1s))
	res := make([]Sample, 0, n)
	for core := 0; core < n; core++ {
		res = append(res, Sample{
			APerf: b.APerfs[core],
			MPerf: b.MPerfs[core],
			Ctr1:  b.Ctr1s[core],
		})
	}
	return res
}

// MaskCtr1s masks every ctr1 slot in place.
func (b *Buffers) MaskCtr1s(m CounterMask) {
	for core := range b.Ctr1s {
		b.Ctr1s[core] = m.Apply(b.Ctr1s[core])
	}
}
