package freqctr

import "github.com/softdevteam/msrsampler/pkg/linux/msr"

// The any-thread control bit is only defined since this version.
const anyThreadMinVersion = 3

// Configuration of the fixed-function counter, derived from the
// architectural performance counters version.
type Configuration struct {
	Version         uint8
	EnableOS        bool
	EnableUsr       bool
	EnableAnyThread bool
}

func NewConfiguration(version uint8) Configuration {
	return Configuration{
		Version:         version,
		EnableOS:        true,
		EnableUsr:       true,
		EnableAnyThread: version >= anyThreadMinVersion,
	}
}

// FixedCtrCtrlBits returns the bits to set in IA32_FIXED_CTR_CTRL.
func (c Configuration) FixedCtrCtrlBits() uint64 {
	var bits uint64
	if c.EnableOS {
		bits |= msr.FixedCtrCtrlEn1OS
	}
	if c.EnableUsr {
		bits |= msr.FixedCtrCtrlEn1Usr
	}
	if c.EnableAnyThread {
		bits |= msr.FixedCtrCtrlEn1AnyThread
	}
	return bits
}
