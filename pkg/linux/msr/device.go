package msr

import (
	"fmt"

	"github.com/fearful-symmetry/gomsr"
)

// Device accesses registers through the kernel msr driver (/dev/cpu/<core>/msr).
// The msr kernel module must be loaded and the caller needs CAP_SYS_RAWIO.
type Device struct {
	core int
	dev  gomsr.MSRDev
}

var _ Accessor = (*Device)(nil)

func OpenDevice(core int) (*Device, error) {
	if core < 0 {
		return nil, fmt.Errorf("invalid core %d", core)
	}

	dev, err := gomsr.MSR(core)
	if err != nil {
		return nil, fmt.Errorf("failed to open msr device for core %d: %w", core, err)
	}

	return &Device{core: core, dev: dev}, nil
}

func (d *Device) Read(reg Register) uint64 {
	value, _ := d.dev.Read(int64(reg))
	return value
}

func (d *Device) Write(reg Register, value uint64) {
	_ = d.dev.Write(int64(reg), value)
}

func (d *Device) ReadSafe(reg Register) (uint64, error) {
	value, err := d.dev.Read(int64(reg))
	if err != nil {
		return 0, &AccessError{Core: d.core, Register: reg, Op: OpRead, Err: err}
	}
	return value, nil
}

func (d *Device) WriteSafe(reg Register, value uint64) error {
	err := d.dev.Write(int64(reg), value)
	if err != nil {
		return &AccessError{Core: d.core, Register: reg, Op: OpWrite, Err: err}
	}
	return nil
}

func (d *Device) Close() error {
	return d.dev.Close()
}
