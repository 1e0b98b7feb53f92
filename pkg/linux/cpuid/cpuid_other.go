//go:build !amd64

package cpuid

// There are no architectural performance counters to report outside x86.
func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32) {
	return 0, 0, 0, 0
}
