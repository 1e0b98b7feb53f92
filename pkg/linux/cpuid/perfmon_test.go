package cpuid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePerfMon(t *testing.T) {
	// Skylake: version 4, 4 x 48-bit general counters, 3 x 48-bit fixed counters.
	info := DecodePerfMon(0x07300404, 0x00000603)
	require.Equal(t, PerfMonInfo{
		Version:      4,
		NumGeneral:   4,
		GeneralWidth: 48,
		NumFixed:     3,
		FixedWidth:   48,
	}, info)
}

func TestDecodePerfMonOldHardware(t *testing.T) {
	// Core 2: version 2, fixed counters 40 bits wide.
	info := DecodePerfMon(0x07280202, 0x00000503)
	require.Equal(t, uint8(2), info.Version)
	require.Equal(t, 40, info.FixedWidth)
	require.Equal(t, 3, info.NumFixed)
}

func TestQueryIsStable(t *testing.T) {
	require.Equal(t, QueryPerfMon(), QueryPerfMon())
	require.Equal(t, QueryPerfMon().Version, GetPerfCounterVersion())
	require.Equal(t, QueryPerfMon().FixedWidth, FixedCounterWidth())
}
