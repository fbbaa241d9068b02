//go:build !amd64

package cpuid

// cpuid has no instruction to issue off x86-64; every leaf reads as
// unsupported.
func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32) {
	return 0, 0, 0, 0
}
