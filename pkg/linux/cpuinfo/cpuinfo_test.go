package cpuinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const cpuinfoSample = `processor	: 0
vendor_id	: GenuineIntel
cpu family	: 6
model		: 85
model name	: Intel(R) Xeon(R) Gold 6230 CPU @ 2.10GHz

processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) Gold 6230 CPU @ 2.10GHz
`

func TestParse(t *testing.T) {
	cpu, err := parse(strings.NewReader(cpuinfoSample))
	require.NoError(t, err)
	require.Equal(t, &CPU{
		Vendor: VendorIntel,
		Model:  "Intel(R) Xeon(R) Gold 6230 CPU @ 2.10GHz",
	}, cpu)
	require.True(t, cpu.HasArchPerfMon())
}

func TestParseUnknown(t *testing.T) {
	cpu, err := parse(strings.NewReader("processor\t: 0\nvendor_id\t: AuthenticAMD\n"))
	require.NoError(t, err)
	require.Equal(t, "AuthenticAMD", cpu.Vendor)
	require.Equal(t, "Unknown CPU model", cpu.Model)
	require.False(t, cpu.HasArchPerfMon())
}
