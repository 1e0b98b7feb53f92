// Package msrtest provides an in-process software machine with per-core
// registers, used in place of /dev/cpu/<core>/msr in tests and simulations.
package msrtest

import (
	"fmt"
	"sync"

	"github.com/softdevteam/msrsampler/pkg/linux/msr"
)

////////////////////////////////////////////////////////////////////////////////

// Access is one journaled register operation.
type Access struct {
	Op       msr.Op
	Register msr.Register
	Value    uint64
}

type Option func(*Core)

// WithRates sets how much APERF and MPERF advance per simulated tick.
// APERF advancing slower than MPERF models a core running below nominal frequency.
func WithRates(aperf, mperf uint64) Option {
	return func(c *Core) {
		c.aperfRate = aperf
		c.mperfRate = mperf
	}
}

// WithCounterWidth limits FixedCtr1 to width bits and fills the bits above
// with junk, which callers must mask away.
func WithCounterWidth(width int, junk uint64) Option {
	return func(c *Core) {
		c.ctr1Mask = uint64(1)<<width - 1
		c.ctr1Junk = junk &^ c.ctr1Mask
	}
}

////////////////////////////////////////////////////////////////////////////////

// Machine is a set of simulated cores.
type Machine struct {
	cores []*Core
}

func NewMachine(cores int, opts ...Option) *Machine {
	m := &Machine{cores: make([]*Core, 0, cores)}
	for i := 0; i < cores; i++ {
		m.cores = append(m.cores, newCore(i, opts...))
	}
	return m
}

func (m *Machine) NumCores() int {
	return len(m.cores)
}

func (m *Machine) Core(id int) *Core {
	return m.cores[id]
}

// Open returns an accessor bound to one simulated core.
// It has the signature of the accessor factory used by oncore.Pool.
func (m *Machine) Open(core int) (msr.Accessor, error) {
	if core < 0 || core >= len(m.cores) {
		return nil, fmt.Errorf("no simulated core %d", core)
	}
	c := m.cores[core]
	c.mu.Lock()
	c.opened++
	c.mu.Unlock()
	return &accessor{core: c}, nil
}

// Busy advances every core by the given number of ticks.
func (m *Machine) Busy(ticks int) {
	for _, c := range m.cores {
		c.Busy(ticks)
	}
}

////////////////////////////////////////////////////////////////////////////////

// Core is one simulated core. Every register access advances the core clock by one tick.
type Core struct {
	mu sync.Mutex

	id          int
	regs        map[msr.Register]uint64
	unsupported map[msr.Register]error
	journal     []Access
	opened      int
	closed      int

	aperfRate uint64
	mperfRate uint64
	ctr1Mask  uint64
	ctr1Junk  uint64
}

func newCore(id int, opts ...Option) *Core {
	c := &Core{
		id:          id,
		regs:        make(map[msr.Register]uint64),
		unsupported: make(map[msr.Register]error),
		aperfRate:   80,
		mperfRate:   100,
		ctr1Mask:    ^uint64(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Core) ID() int {
	return c.id
}

// Unsupported makes checked accesses to reg fail with err.
func (c *Core) Unsupported(reg msr.Register, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsupported[reg] = err
}

// Set overwrites a register without advancing the clock or journaling.
func (c *Core) Set(reg msr.Register, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[reg] = value
}

// Get returns a register value without advancing the clock or journaling.
func (c *Core) Get(reg msr.Register) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[reg]
}

func (c *Core) Busy(ticks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < ticks; i++ {
		c.tick()
	}
}

// Journal returns a copy of all register accesses made through accessors.
func (c *Core) Journal() []Access {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Access(nil), c.journal...)
}

func (c *Core) ResetJournal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.journal = nil
}

// Open and close counts of accessors bound to this core.
func (c *Core) Handles() (opened, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened, c.closed
}

func (c *Core) ctr1Enabled() bool {
	if c.regs[msr.GlobalCtrl]&msr.GlobalCtrlEnFixedCtr1 == 0 {
		return false
	}
	return c.regs[msr.FixedCtrCtrl]&(msr.FixedCtrCtrlEn1OS|msr.FixedCtrCtrlEn1Usr) != 0
}

func (c *Core) tick() {
	c.regs[msr.MPerf] += c.mperfRate
	c.regs[msr.APerf] += c.aperfRate
	if c.ctr1Enabled() {
		c.regs[msr.FixedCtr1] = (c.regs[msr.FixedCtr1] + c.aperfRate) & c.ctr1Mask
	}
}

func (c *Core) read(reg msr.Register) uint64 {
	value := c.regs[reg]
	if reg == msr.FixedCtr1 {
		value |= c.ctr1Junk
	}
	c.journal = append(c.journal, Access{Op: msr.OpRead, Register: reg, Value: value})
	c.tick()
	return value
}

func (c *Core) write(reg msr.Register, value uint64) {
	if reg == msr.FixedCtr1 {
		value &= c.ctr1Mask
	}
	c.regs[reg] = value
	c.journal = append(c.journal, Access{Op: msr.OpWrite, Register: reg, Value: value})
	c.tick()
}

////////////////////////////////////////////////////////////////////////////////

type accessor struct {
	core *Core
}

var _ msr.Accessor = (*accessor)(nil)

func (a *accessor) Read(reg msr.Register) uint64 {
	a.core.mu.Lock()
	defer a.core.mu.Unlock()
	if _, ok := a.core.unsupported[reg]; ok {
		return 0
	}
	return a.core.read(reg)
}

func (a *accessor) Write(reg msr.Register, value uint64) {
	a.core.mu.Lock()
	defer a.core.mu.Unlock()
	if _, ok := a.core.unsupported[reg]; ok {
		return
	}
	a.core.write(reg, value)
}

func (a *accessor) ReadSafe(reg msr.Register) (uint64, error) {
	a.core.mu.Lock()
	defer a.core.mu.Unlock()
	if err, ok := a.core.unsupported[reg]; ok {
		return 0, &msr.AccessError{Core: a.core.id, Register: reg, Op: msr.OpRead, Err: err}
	}
	return a.core.read(reg), nil
}

func (a *accessor) WriteSafe(reg msr.Register, value uint64) error {
	a.core.mu.Lock()
	defer a.core.mu.Unlock()
	if err, ok := a.core.unsupported[reg]; ok {
		return &msr.AccessError{Core: a.core.id, Register: reg, Op: msr.OpWrite, Err: err}
	}
	a.core.write(reg, value)
	return nil
}

func (a *accessor) Close() error {
	a.core.mu.Lock()
	defer a.core.mu.Unlock()
	a.core.closed++
	return nil
}
