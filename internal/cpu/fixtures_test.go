package cpu

import (
	"github.com/assembler-0/cpudetect/internal/cpuid"
)

var (
	intelID = cpuid.Result{EBX: 0x756e6547, EDX: 0x49656e69, ECX: 0x6c65746e} // GenuineIntel
	amdID   = cpuid.Result{EBX: 0x68747541, EDX: 0x69746e65, ECX: 0x444d4163} // AuthenticAMD
)

// newLeaves returns leaves with the given vendor and maximum leaves.
func newLeaves(id cpuid.Result, maxLeaf, maxExt uint32) cpuid.Leaves {
	id.EAX = maxLeaf
	return cpuid.Leaves{}.
		Set(0, 0, id).
		Set(cpuid.ExtendedBase, 0, cpuid.Result{EAX: maxExt})
}

// setBrand spreads s over leaves 0x80000002-0x80000004, NUL padded.
func setBrand(l cpuid.Leaves, s string) cpuid.Leaves {
	var b [48]byte
	copy(b[:], s)
	word := func(i int) uint32 {
		return uint32(b[i]) | uint32(b[i+1])<<8 | uint32(b[i+2])<<16 | uint32(b[i+3])<<24
	}
	for n := 0; n < 3; n++ {
		off := n * 16
		l.Set(0x80000002+uint32(n), 0, cpuid.Result{
			EAX: word(off), EBX: word(off + 4), ECX: word(off + 8), EDX: word(off + 12),
		})
	}
	return l
}

// cacheLeaf encodes one leaf 4 / 0x8000001D sub-leaf.
func cacheLeaf(typ CacheType, level, ways, partitions, line, sets, sharedBy uint32) cpuid.Result {
	return cpuid.Result{
		EAX: uint32(typ) | level<<5 | (sharedBy-1)<<14,
		EBX: (line - 1) | (partitions-1)<<12 | (ways-1)<<22,
		ECX: sets - 1,
	}
}

// topoLevel encodes one leaf 0xB / 0x1F sub-leaf.
func topoLevel(typ LevelType, sub, count, shift uint32) cpuid.Result {
	return cpuid.Result{EAX: shift, EBX: count, ECX: uint32(typ)<<8 | sub}
}

// alderLake is a hybrid Intel desktop part: 8 P-cores with SMT and
// 8 E-cores, queried from a P-core.
func alderLake() cpuid.Leaves {
	l := newLeaves(intelID, 0x20, 0x80000008)
	l.Set(1, 0, cpuid.Result{
		EAX: 0x90672,
		EBX: 32 << 16,
		ECX: 1<<0 | 1<<9 | 1<<12 | 1<<19 | 1<<20 | 1<<23 | 1<<25 | 1<<26 | 1<<27 | 1<<28 | 1<<29,
		EDX: 1<<0 | 1<<4 | 1<<23 | 1<<25 | 1<<26 | 1<<28,
	})
	l.Set(4, 0, cacheLeaf(CacheData, 1, 12, 1, 64, 64, 2))
	l.Set(4, 1, cacheLeaf(CacheInstruction, 1, 8, 1, 64, 64, 2))
	l.Set(4, 2, cacheLeaf(CacheUnified, 2, 10, 1, 64, 2048, 2))
	l.Set(4, 3, cacheLeaf(CacheUnified, 3, 10, 1, 64, 49152, 32))
	l.Set(6, 0, cpuid.Result{EAX: 1<<1 | 1<<7 | 1<<23})
	l.Set(7, 0, cpuid.Result{EAX: 2, EBX: 1<<3 | 1<<5 | 1<<8 | 1<<29, ECX: 1 << 9, EDX: 1 << 15})
	l.Set(7, 1, cpuid.Result{EAX: 1 << 4})
	l.Set(0xB, 0, topoLevel(LevelSMT, 0, 2, 1))
	l.Set(0xB, 1, topoLevel(LevelCore, 1, 24, 7))
	l.Set(0x15, 0, cpuid.Result{EAX: 2, EBX: 188, ECX: 38400000})
	l.Set(0x16, 0, cpuid.Result{EAX: 3600, EBX: 4900, ECX: 100})
	l.Set(0x1A, 0, cpuid.Result{EAX: uint32(CoreTypePerformance)<<24 | 1})
	l.Set(0x1F, 0, topoLevel(LevelSMT, 0, 2, 1))
	l.Set(0x1F, 1, topoLevel(LevelCore, 1, 24, 7))
	l.Set(0x80000001, 0, cpuid.Result{ECX: 1 << 0, EDX: 1<<11 | 1<<20 | 1<<29})
	l.Set(0x80000008, 0, cpuid.Result{EAX: 0x3027})
	return setBrand(l, "12th Gen Intel(R) Core(TM) i9-12900K")
}

// zen3 is an AMD Ryzen with topology extensions and no leaf 0xB.
func zen3() cpuid.Leaves {
	l := newLeaves(amdID, 0xD, 0x80000021)
	l.Set(1, 0, cpuid.Result{
		EAX: 0x00A20F10,
		EBX: 16 << 16,
		ECX: 1<<0 | 1<<12 | 1<<20 | 1<<23 | 1<<27 | 1<<28,
		EDX: 1 << 28,
	})
	l.Set(7, 0, cpuid.Result{EBX: 1 << 5})
	l.Set(0x80000001, 0, cpuid.Result{ECX: 1<<6 | 1<<22})
	l.Set(0x80000005, 0, cpuid.Result{
		EAX: 0xFF40FF40,
		EBX: 0xFF40FF40,
		ECX: 32<<24 | 8<<16 | 1<<8 | 64,
		EDX: 32<<24 | 8<<16 | 1<<8 | 64,
	})
	l.Set(0x80000006, 0, cpuid.Result{
		EAX: 0x48002200,
		EBX: 0x68004200,
		ECX: 512<<16 | 0x6<<12 | 1<<8 | 64,
		EDX: 64<<18 | 0x9<<12 | 1<<8 | 64,
	})
	l.Set(0x80000008, 0, cpuid.Result{EAX: 0x3030, ECX: 15})
	l.Set(0x8000001D, 0, cacheLeaf(CacheData, 1, 8, 1, 64, 64, 2))
	l.Set(0x8000001D, 1, cacheLeaf(CacheInstruction, 1, 8, 1, 64, 64, 2))
	l.Set(0x8000001D, 2, cacheLeaf(CacheUnified, 2, 8, 1, 64, 1024, 2))
	l.Set(0x8000001D, 3, cacheLeaf(CacheUnified, 3, 16, 1, 64, 32768, 16))
	l.Set(0x8000001E, 0, cpuid.Result{EBX: 1 << 8})
	return setBrand(l, "AMD Ryzen 7 5800X 8-Core Processor              ")
}
