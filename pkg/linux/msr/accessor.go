package msr

// Accessor reads and writes registers of exactly one core.
//
// Implementations are not safe for concurrent use. They are owned by
// the worker running on the core they address, see package oncore.
type Accessor interface {
	// Read returns the value of a register that is known to exist.
	// There is no error path: a failed access reads as zero.
	Read(reg Register) uint64

	// Write stores the value into a register that is known to exist.
	// A failed access is dropped.
	Write(reg Register, value uint64)

	// ReadSafe is used for registers whose presence depends on the platform.
	ReadSafe(reg Register) (uint64, error)

	// WriteSafe is used for registers whose presence depends on the platform.
	WriteSafe(reg Register, value uint64) error

	Close() error
}
