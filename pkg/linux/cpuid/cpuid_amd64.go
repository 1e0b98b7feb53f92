//go:build amd64

package cpuid

// implemented in cpuid_amd64.s
func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32)
