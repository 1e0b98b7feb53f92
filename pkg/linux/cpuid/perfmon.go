package cpuid

const (
	leafMax              = 0x00
	leafArchPerfCounters = 0x0a
)

// PerfMonInfo is the decoded architectural performance monitoring leaf (CPUID.0AH).
type PerfMonInfo struct {
	// Architectural performance counters version, EAX[7:0].
	Version uint8
	// Number of general-purpose counters per logical processor, EAX[15:8].
	NumGeneral int
	// Bit width of general-purpose counters, EAX[23:16].
	GeneralWidth int
	// Number of fixed-function counters, EDX[4:0].
	NumFixed int
	// Bit width of fixed-function counters, EDX[12:5].
	FixedWidth int
}

func DecodePerfMon(eax, edx uint32) PerfMonInfo {
	return PerfMonInfo{
		Version:      uint8(eax & 0xff),
		NumGeneral:   int((eax >> 8) & 0xff),
		GeneralWidth: int((eax >> 16) & 0xff),
		NumFixed:     int(edx & 0x1f),
		FixedWidth:   int((edx & 0x1fe0) >> 5),
	}
}

// QueryPerfMon runs CPUID on the calling core. The result is assumed to be
// the same on every core of the machine.
// Returns the zero value if the leaf is not available.
func QueryPerfMon() PerfMonInfo {
	maxLeaf, _, _, _ := cpuid(leafMax, 0)
	if maxLeaf < leafArchPerfCounters {
		return PerfMonInfo{}
	}

	eax, _, _, edx := cpuid(leafArchPerfCounters, 0)
	return DecodePerfMon(eax, edx)
}

// GetPerfCounterVersion returns the architectural performance counters version.
func GetPerfCounterVersion() uint8 {
	return QueryPerfMon().Version
}

// FixedCounterWidth returns the bit width of the fixed-function counters.
func FixedCounterWidth() int {
	return QueryPerfMon().FixedWidth
}
