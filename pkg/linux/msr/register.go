package msr

import "fmt"

////////////////////////////////////////////////////////////////////////////////

// Register is a model-specific register address.
type Register uint32

const (
	// MPerf counts at the fixed (TSC) frequency while the core is in C0.
	MPerf Register = 0xe7
	// APerf counts at the actual frequency while the core is in C0.
	APerf Register = 0xe8
	// FixedCtr1 is the fixed-function counter for unhalted core cycles.
	FixedCtr1 Register = 0x30a
	// FixedCtrCtrl selects what the fixed-function counters count.
	FixedCtrCtrl Register = 0x38d
	// GlobalCtrl enables individual performance counters.
	GlobalCtrl Register = 0x38f
)

// Fields of IA32_PERF_GLOBAL_CTRL.
const (
	// Enables IA32_PERF_FIXED_CTR1. Lives in the high 32 bits.
	GlobalCtrlEnFixedCtr1 uint64 = 1 << (32 + 1)
)

// Fields of IA32_FIXED_CTR_CTRL. All of them live in the low 32 bits.
const (
	FixedCtrCtrlEn1OS        uint64 = 1 << 4
	FixedCtrCtrlEn1Usr       uint64 = 1 << 5
	FixedCtrCtrlEn1AnyThread uint64 = 1 << 6
)

var registerNames = map[Register]string{
	MPerf:        "IA32_MPERF",
	APerf:        "IA32_APERF",
	FixedCtr1:    "IA32_PERF_FIXED_CTR1",
	FixedCtrCtrl: "IA32_FIXED_CTR_CTRL",
	GlobalCtrl:   "IA32_PERF_GLOBAL_CTRL",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("MSR(%#x)", uint32(r))
}

////////////////////////////////////////////////////////////////////////////////

type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// AccessError is returned by the checked accessors.
// The underlying status is kept unchanged and is reachable through errors.Is / errors.As.
type AccessError struct {
	Core     int
	Register Register
	Op       Op
	Err      error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("failed to %s %s on core %d: %v", e.Op, e.Register, e.Core, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
