package cpulist

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCPUList(t *testing.T) {
	b := bytes.NewBufferString("0-4,7-13,8,9,10\n")
	cpus, err := parseCPUList(b)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4, 7, 8, 9, 10, 11, 12, 13, 8, 9, 10}, cpus)
}

func TestParseCPUListMalformed(t *testing.T) {
	for _, input := range []string{"0-", "a", "3-1", "0,,1"} {
		_, err := parseCPUList(bytes.NewBufferString(input))
		require.Error(t, err, input)
	}
}

func TestContiguousPrefix(t *testing.T) {
	require.Equal(t, 4, contiguousPrefix([]int{0, 1, 2, 3}))
	require.Equal(t, 2, contiguousPrefix([]int{0, 1, 3, 4}))
	require.Equal(t, 0, contiguousPrefix([]int{1, 2}))
	require.Equal(t, 0, contiguousPrefix(nil))
}
