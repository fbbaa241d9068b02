package cpu

import (
	"fmt"
	"strings"

	"github.com/assembler-0/cpudetect/internal/cpuid"
)

// Category groups features for display.
type Category int

const (
	CategorySystem Category = iota
	CategorySIMD
	CategoryCryptography
	CategorySecurity
	CategoryVirtualization
	CategoryPerformance
	CategoryMemory
	CategoryPower
	CategoryDebug
)

// Categories lists every category in display order.
var Categories = []Category{
	CategorySIMD,
	CategoryCryptography,
	CategorySecurity,
	CategoryVirtualization,
	CategoryPerformance,
	CategoryMemory,
	CategoryPower,
	CategoryDebug,
	CategorySystem,
}

func (c Category) String() string {
	switch c {
	case CategorySIMD:
		return "SIMD"
	case CategoryCryptography:
		return "Cryptography"
	case CategorySecurity:
		return "Security"
	case CategoryVirtualization:
		return "Virtualization"
	case CategoryPerformance:
		return "Performance"
	case CategoryMemory:
		return "Memory"
	case CategoryPower:
		return "Power"
	case CategoryDebug:
		return "Debug"
	}
	return "System"
}

// MarshalText renders the category by name in JSON and YAML output.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Feature is one registry entry: a named capability backed by a single
// bit of a single (leaf, sub-leaf, register).
type Feature struct {
	Name        string         `json:"name" yaml:"name"`
	Leaf        uint32         `json:"leaf" yaml:"leaf"`
	Subleaf     uint32         `json:"subleaf" yaml:"subleaf"`
	Register    cpuid.Register `json:"register" yaml:"register"`
	Bit         uint           `json:"bit" yaml:"bit"`
	Category    Category       `json:"category" yaml:"category"`
	Description string         `json:"description" yaml:"description"`

	// Requires names the features that must also be present before this
	// one is reported. A set raw bit alone is not enough for AVX and
	// friends: the OS must have enabled the register state.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// bitDef is the compact form used to spell out the tables below.
type bitDef struct {
	bit  uint
	name string
	cat  Category
	desc string
}

type bitGroup struct {
	leaf    uint32
	subleaf uint32
	reg     cpuid.Register
	bits    []bitDef
}

const (
	sys    = CategorySystem
	simd   = CategorySIMD
	crypto = CategoryCryptography
	sec    = CategorySecurity
	virt   = CategoryVirtualization
	perf   = CategoryPerformance
	mem    = CategoryMemory
	power  = CategoryPower
	debug  = CategoryDebug
)

var bitGroups = []bitGroup{
	{1, 0, cpuid.EDX, []bitDef{
		{0, "FPU", sys, "x87 floating-point unit on chip"},
		{1, "VME", virt, "Virtual 8086 mode enhancements"},
		{2, "DE", debug, "Debugging extensions"},
		{3, "PSE", mem, "Page size extension"},
		{4, "TSC", sys, "Time stamp counter"},
		{5, "MSR", sys, "Model-specific registers"},
		{6, "PAE", mem, "Physical address extension"},
		{7, "MCE", sys, "Machine check exception"},
		{8, "CX8", sys, "CMPXCHG8B instruction"},
		{9, "APIC", sys, "APIC on chip"},
		{11, "SEP", sys, "SYSENTER/SYSEXIT instructions"},
		{12, "MTRR", mem, "Memory type range registers"},
		{13, "PGE", mem, "Page global enable"},
		{14, "MCA", sys, "Machine check architecture"},
		{15, "CMOV", perf, "Conditional move instructions"},
		{16, "PAT", mem, "Page attribute table"},
		{17, "PSE36", mem, "36-bit page size extension"},
		{18, "PSN", sec, "Processor serial number"},
		{19, "CLFSH", perf, "CLFLUSH instruction"},
		{21, "DS", debug, "Debug store"},
		{22, "ACPI", power, "Thermal monitor and software clock control"},
		{23, "MMX", simd, "MMX instructions"},
		{24, "FXSR", sys, "FXSAVE/FXRSTOR instructions"},
		{25, "SSE", simd, "Streaming SIMD Extensions"},
		{26, "SSE2", simd, "Streaming SIMD Extensions 2"},
		{27, "SS", perf, "Self snoop"},
		{28, "HTT", sys, "Multi-threading"},
		{29, "TM", power, "Thermal monitor"},
		{31, "PBE", power, "Pending break enable"},
	}},
	{1, 0, cpuid.ECX, []bitDef{
		{0, "SSE3", simd, "Streaming SIMD Extensions 3"},
		{1, "PCLMULQDQ", crypto, "Carry-less multiplication"},
		{2, "DTES64", debug, "64-bit debug store"},
		{3, "MONITOR", power, "MONITOR/MWAIT instructions"},
		{4, "DS-CPL", debug, "CPL-qualified debug store"},
		{5, "VMX", virt, "Virtual Machine Extensions"},
		{6, "SMX", sec, "Safer Mode Extensions"},
		{7, "EIST", power, "Enhanced Intel SpeedStep"},
		{8, "TM2", power, "Thermal Monitor 2"},
		{9, "SSSE3", simd, "Supplemental SSE3"},
		{10, "CNXT-ID", debug, "L1 context ID"},
		{11, "SDBG", debug, "Silicon debug"},
		{12, "FMA", simd, "Fused multiply-add"},
		{13, "CMPXCHG16B", sys, "Compare and exchange 16 bytes"},
		{14, "xTPR", sys, "xTPR update control"},
		{15, "PDCM", perf, "Performance/debug capability MSR"},
		{17, "PCID", mem, "Process-context identifiers"},
		{18, "DCA", perf, "Direct cache access"},
		{19, "SSE4.1", simd, "Streaming SIMD Extensions 4.1"},
		{20, "SSE4.2", simd, "Streaming SIMD Extensions 4.2"},
		{21, "x2APIC", sys, "x2APIC support"},
		{22, "MOVBE", sys, "MOVBE instruction"},
		{23, "POPCNT", perf, "POPCNT instruction"},
		{24, "TSC-Deadline", sys, "TSC deadline timer"},
		{25, "AES", crypto, "AES instruction set"},
		{26, "XSAVE", sys, "XSAVE/XRSTOR"},
		{27, "OSXSAVE", sys, "OS-enabled XSAVE"},
		{28, "AVX", simd, "Advanced Vector Extensions"},
		{29, "F16C", simd, "16-bit floating-point conversion"},
		{30, "RDRAND", sec, "Hardware random number generator"},
		{31, "HYPERVISOR", virt, "Running under a hypervisor"},
	}},
	{6, 0, cpuid.EAX, []bitDef{
		{0, "DTS", power, "Digital thermal sensor"},
		{1, "TURBO_BOOST", power, "Turbo boost technology"},
		{2, "ARAT", power, "APIC timer always running"},
		{4, "PLN", power, "Power limit notification"},
		{5, "ECMD", power, "Clock modulation duty cycle extension"},
		{6, "PTS", power, "Package thermal management"},
		{7, "HWP", power, "Hardware-controlled performance states"},
		{8, "HWP_NOTIFY", power, "HWP notification"},
		{9, "HWP_ACT_WINDOW", power, "HWP activity window"},
		{10, "HWP_EPP", power, "HWP energy performance preference"},
		{11, "HWP_PKG_REQ", power, "HWP package level request"},
		{13, "HDC", power, "Hardware duty cycling"},
		{14, "TURBO_BOOST_MAX_3", power, "Turbo boost max technology 3.0"},
		{15, "HWP_CAPABILITIES", power, "HWP highest performance change"},
		{16, "HWP_PECI", power, "HWP PECI override"},
		{17, "FLEXIBLE_HWP", power, "Flexible HWP"},
		{18, "HWP_FAST_ACCESS", power, "Fast access mode for HWP request MSR"},
		{19, "HW_FEEDBACK", power, "Hardware feedback interface"},
		{20, "IGNORE_IDLE_HWP", power, "Ignore idle logical processor HWP request"},
		{23, "THREAD_DIRECTOR", power, "Enhanced hardware feedback interface"},
	}},
	{6, 0, cpuid.ECX, []bitDef{
		{0, "APERFMPERF", power, "Effective frequency interface"},
		{3, "ENERGY_PERF_BIAS", power, "Performance-energy bias preference"},
	}},
	{7, 0, cpuid.EBX, []bitDef{
		{0, "FSGSBASE", sys, "FS/GS base access instructions"},
		{1, "TSC_ADJUST", sys, "TSC adjust MSR"},
		{2, "SGX", sec, "Software Guard Extensions"},
		{3, "BMI1", perf, "Bit Manipulation Instruction Set 1"},
		{4, "HLE", perf, "Hardware Lock Elision"},
		{5, "AVX2", simd, "Advanced Vector Extensions 2"},
		{6, "FDP_EXCPTN_ONLY", debug, "FPU data pointer updated only on exceptions"},
		{7, "SMEP", sec, "Supervisor Mode Execution Prevention"},
		{8, "BMI2", perf, "Bit Manipulation Instruction Set 2"},
		{9, "ERMS", perf, "Enhanced REP MOVSB/STOSB"},
		{10, "INVPCID", mem, "INVPCID instruction"},
		{11, "RTM", perf, "Restricted Transactional Memory"},
		{12, "PQM", perf, "Platform QoS monitoring"},
		{13, "FPU_CS_DS_DEPRECATED", sys, "FPU CS and DS deprecated"},
		{14, "MPX", sec, "Memory Protection Extensions"},
		{15, "PQE", perf, "Platform QoS enforcement"},
		{16, "AVX512F", simd, "AVX-512 Foundation"},
		{17, "AVX512DQ", simd, "AVX-512 Doubleword and Quadword"},
		{18, "RDSEED", sec, "RDSEED instruction"},
		{19, "ADX", perf, "Multi-precision add-carry"},
		{20, "SMAP", sec, "Supervisor Mode Access Prevention"},
		{21, "AVX512_IFMA", simd, "AVX-512 Integer FMA"},
		{23, "CLFLUSHOPT", perf, "CLFLUSHOPT instruction"},
		{24, "CLWB", perf, "Cache line write back"},
		{25, "INTEL_PT", debug, "Intel Processor Trace"},
		{26, "AVX512PF", simd, "AVX-512 Prefetch"},
		{27, "AVX512ER", simd, "AVX-512 Exponential and Reciprocal"},
		{28, "AVX512CD", simd, "AVX-512 Conflict Detection"},
		{29, "SHA", crypto, "SHA-1/SHA-256 instructions"},
		{30, "AVX512BW", simd, "AVX-512 Byte and Word"},
		{31, "AVX512VL", simd, "AVX-512 Vector Length Extensions"},
	}},
	{7, 0, cpuid.ECX, []bitDef{
		{0, "PREFETCHWT1", perf, "PREFETCHWT1 instruction"},
		{1, "AVX512_VBMI", simd, "AVX-512 Vector Bit Manipulation"},
		{2, "UMIP", sec, "User-Mode Instruction Prevention"},
		{3, "PKU", sec, "Protection Keys for user-mode pages"},
		{4, "OSPKE", sec, "OS has enabled PKU"},
		{5, "WAITPKG", power, "TPAUSE, UMONITOR and UMWAIT"},
		{6, "AVX512_VBMI2", simd, "AVX-512 Vector Bit Manipulation 2"},
		{7, "CET_SS", sec, "Control-flow Enforcement shadow stack"},
		{8, "GFNI", crypto, "Galois Field instructions"},
		{9, "VAES", crypto, "Vector AES"},
		{10, "VPCLMULQDQ", crypto, "Vector PCLMULQDQ"},
		{11, "AVX512_VNNI", simd, "AVX-512 Vector Neural Network Instructions"},
		{12, "AVX512_BITALG", simd, "AVX-512 Bit Algorithms"},
		{13, "TME_EN", sec, "Total Memory Encryption"},
		{14, "AVX512_VPOPCNTDQ", simd, "AVX-512 Vector Population Count"},
		{16, "LA57", mem, "5-level paging"},
		{22, "RDPID", sys, "Read Processor ID"},
		{23, "KL", sec, "Key Locker"},
		{25, "CLDEMOTE", perf, "Cache line demote"},
		{27, "MOVDIRI", perf, "MOVDIRI instruction"},
		{28, "MOVDIR64B", perf, "MOVDIR64B instruction"},
		{29, "ENQCMD", perf, "Enqueue stores"},
		{30, "SGX_LC", sec, "SGX launch configuration"},
		{31, "PKS", sec, "Protection Keys for supervisor-mode pages"},
	}},
	{7, 0, cpuid.EDX, []bitDef{
		{2, "AVX512_4VNNIW", simd, "AVX-512 4-register Neural Network Instructions"},
		{3, "AVX512_4FMAPS", simd, "AVX-512 4-register FMA single precision"},
		{4, "FSRM", perf, "Fast short REP MOV"},
		{5, "UINTR", sys, "User interrupts"},
		{8, "AVX512_VP2INTERSECT", simd, "AVX-512 VP2INTERSECT"},
		{9, "SRBDS_CTRL", sec, "SRBDS mitigation control"},
		{10, "MD_CLEAR", sec, "VERW clears CPU buffers"},
		{11, "RTM_ALWAYS_ABORT", perf, "RTM always aborts"},
		{13, "TSX_FORCE_ABORT", sec, "TSX force abort MSR"},
		{14, "SERIALIZE", sys, "SERIALIZE instruction"},
		{15, "HYBRID", sys, "Hybrid processor"},
		{16, "TSXLDTRK", perf, "TSX suspend load address tracking"},
		{18, "PCONFIG", sec, "Platform configuration"},
		{19, "ARCH_LBR", debug, "Architectural last branch records"},
		{20, "CET_IBT", sec, "Control-flow Enforcement indirect branch tracking"},
		{22, "AMX_BF16", simd, "AMX tile computation on bfloat16"},
		{23, "AVX512_FP16", simd, "AVX-512 16-bit floating point"},
		{24, "AMX_TILE", simd, "AMX tile load/store"},
		{25, "AMX_INT8", simd, "AMX tile computation on 8-bit integers"},
		{26, "IBRS_IBPB", sec, "Speculation control IBRS/IBPB"},
		{27, "STIBP", sec, "Single thread indirect branch predictors"},
		{28, "L1D_FLUSH", sec, "L1D cache flush"},
		{29, "ARCH_CAPABILITIES", sec, "IA32_ARCH_CAPABILITIES MSR"},
		{30, "CORE_CAPABILITIES", sys, "IA32_CORE_CAPABILITIES MSR"},
		{31, "SSBD", sec, "Speculative Store Bypass Disable"},
	}},
	{7, 1, cpuid.EAX, []bitDef{
		{3, "RAO_INT", perf, "RAO-INT instructions"},
		{4, "AVX_VNNI", simd, "AVX VNNI instructions"},
		{5, "AVX512_BF16", simd, "AVX-512 BFLOAT16 instructions"},
		{6, "LASS", sec, "Linear Address Space Separation"},
		{7, "CMPCCXADD", perf, "CMPccXADD instructions"},
		{8, "ARCH_PERFMON_EXT", perf, "Architectural performance monitoring extended leaf"},
		{10, "FZLRM", perf, "Fast zero-length REP MOVSB"},
		{11, "FSRS", perf, "Fast short REP STOSB"},
		{12, "FSRC", perf, "Fast short REP CMPSB/SCASB"},
		{17, "FRED", sys, "Flexible Return and Event Delivery"},
		{18, "LKGS", sys, "LKGS instruction"},
		{19, "WRMSRNS", sys, "WRMSRNS instruction"},
		{21, "AMX_FP16", simd, "AMX FP16 instructions"},
		{22, "HRESET", sys, "History reset"},
		{23, "AVX_IFMA", simd, "AVX IFMA instructions"},
		{26, "LAM", mem, "Linear Address Masking"},
		{27, "MSRLIST", sys, "RDMSRLIST and WRMSRLIST"},
	}},
	{7, 1, cpuid.EBX, []bitDef{
		{0, "PPIN", sys, "Protected Processor Inventory Number"},
	}},
	{7, 1, cpuid.EDX, []bitDef{
		{4, "AVX_VNNI_INT8", simd, "AVX VNNI INT8 instructions"},
		{5, "AVX_NE_CONVERT", simd, "AVX no-exception FP conversion"},
		{8, "AMX_COMPLEX", simd, "AMX complex number support"},
		{10, "AVX_VNNI_INT16", simd, "AVX VNNI INT16 instructions"},
		{14, "PREFETCHITI", perf, "PREFETCHIT0/1 instructions"},
		{15, "USER_MSR", sys, "User-mode MSR access"},
	}},
	{7, 2, cpuid.EDX, []bitDef{
		{0, "PSFD", sec, "Fast store forwarding predictor disable"},
		{1, "IPRED_CTRL", sec, "IPRED control"},
		{2, "RRSBA_CTRL", sec, "RRSBA control"},
		{3, "DDPD_U", sec, "Data dependent prefetcher disable"},
		{4, "BHI_CTRL", sec, "Branch history injection control"},
		{5, "MCDT_NO", sec, "No MXCSR configuration dependent timing"},
	}},
	{0xD, 1, cpuid.EAX, []bitDef{
		{0, "XSAVEOPT", perf, "XSAVEOPT instruction"},
		{1, "XSAVEC", perf, "XSAVEC instruction"},
		{2, "XGETBV_ECX1", sys, "XGETBV with ECX=1"},
		{3, "XSAVES", sys, "XSAVES/XRSTORS instructions"},
		{4, "XFD", sys, "Extended feature disable"},
	}},
	{0x14, 0, cpuid.EBX, []bitDef{
		{0, "PT_CR3_FILTER", debug, "Processor Trace CR3 filtering"},
		{1, "PT_PSB_CYC", debug, "Processor Trace configurable PSB and cycle-accurate mode"},
		{2, "PT_IP_FILTER", debug, "Processor Trace IP filtering"},
		{3, "PT_MTC", debug, "Processor Trace MTC timing packets"},
		{4, "PT_PTWRITE", debug, "Processor Trace PTWRITE"},
		{5, "PT_POWER_EVENT", debug, "Processor Trace power event trace"},
	}},
	{0x80000001, 0, cpuid.EDX, []bitDef{
		{11, "SYSCALL", sys, "SYSCALL/SYSRET instructions"},
		{19, "MP", sys, "Multiprocessor capable"},
		{20, "NX", sec, "No-execute page protection"},
		{22, "MMXEXT", simd, "Extended MMX"},
		{25, "FFXSR", perf, "FXSAVE/FXRSTOR optimizations"},
		{26, "PDPE1GB", mem, "1 GB pages"},
		{27, "RDTSCP", sys, "RDTSCP instruction"},
		{29, "LM", sys, "Long mode"},
		{30, "3DNOWEXT", simd, "Extended 3DNow!"},
		{31, "3DNOW", simd, "3DNow! instructions"},
	}},
	{0x80000001, 0, cpuid.ECX, []bitDef{
		{0, "LAHF_LM", sys, "LAHF/SAHF in long mode"},
		{1, "CMP_LEGACY", sys, "Core multi-processing legacy mode"},
		{2, "SVM", virt, "Secure Virtual Machine"},
		{3, "EXTAPIC", sys, "Extended APIC space"},
		{4, "CR8_LEGACY", sys, "CR8 in 32-bit mode"},
		{5, "ABM", perf, "Advanced bit manipulation (LZCNT)"},
		{6, "SSE4A", simd, "SSE4a instructions"},
		{7, "MISALIGNSSE", perf, "Misaligned SSE mode"},
		{8, "3DNOWPREFETCH", perf, "PREFETCH/PREFETCHW instructions"},
		{9, "OSVW", sys, "OS visible workaround"},
		{10, "IBS", debug, "Instruction based sampling"},
		{11, "XOP", simd, "Extended operations"},
		{12, "SKINIT", sec, "SKINIT/STGI instructions"},
		{13, "WDT", debug, "Watchdog timer"},
		{15, "LWP", perf, "Lightweight profiling"},
		{16, "FMA4", simd, "4-operand fused multiply-add"},
		{17, "TCE", perf, "Translation cache extension"},
		{19, "NODEID_MSR", sys, "NodeID MSR"},
		{21, "TBM", perf, "Trailing bit manipulation"},
		{22, "TOPOEXT", sys, "Topology extensions"},
		{23, "PERFCTR_CORE", perf, "Core performance counter extensions"},
		{24, "PERFCTR_NB", perf, "Northbridge performance counter extensions"},
		{26, "DBX", debug, "Data breakpoint extension"},
		{27, "PERFTSC", perf, "Performance time stamp counter"},
		{28, "PERFCTR_LLC", perf, "Last level cache performance counter extensions"},
		{29, "MONITORX", power, "MONITORX/MWAITX instructions"},
		{30, "ADDR_MASK_EXT", sys, "Address mask extension"},
	}},
	{0x80000007, 0, cpuid.EDX, []bitDef{
		{8, "INVARIANT_TSC", sys, "Invariant time stamp counter"},
		{9, "CPB", power, "Core performance boost"},
	}},
	{0x80000008, 0, cpuid.EBX, []bitDef{
		{0, "CLZERO", perf, "CLZERO instruction"},
		{1, "IRPERF", perf, "Instructions retired counter"},
		{2, "XSAVEERPTR", sys, "XSAVE always saves error pointers"},
		{4, "RDPRU", perf, "RDPRU instruction"},
		{6, "MBE", sec, "Memory bandwidth enforcement"},
		{8, "MCOMMIT", perf, "MCOMMIT instruction"},
		{9, "WBNOINVD", perf, "WBNOINVD instruction"},
		{12, "IBPB", sec, "Indirect branch prediction barrier"},
		{13, "INT_WBINVD", sys, "Interruptible WBINVD"},
		{14, "IBRS", sec, "Indirect branch restricted speculation"},
		{15, "AMD_STIBP", sec, "Single thread indirect branch predictor"},
		{16, "IBRS_ALWAYS_ON", sec, "IBRS always on"},
		{17, "STIBP_ALWAYS_ON", sec, "STIBP always on"},
		{18, "IBRS_PREFERRED", sec, "IBRS preferred over software mitigation"},
		{19, "IBRS_SAME_MODE", sec, "IBRS provides same mode protection"},
		{20, "NO_EFER_LMSLE", sys, "EFER.LMSLE unsupported"},
		{23, "AMD_PPIN", sec, "Protected Processor Inventory Number"},
		{24, "AMD_SSBD", sec, "Speculative Store Bypass Disable"},
		{25, "VIRT_SSBD", sec, "Virtualized SSBD"},
		{26, "SSB_NO", sec, "Not vulnerable to speculative store bypass"},
		{28, "AMD_PSFD", sec, "Predictive store forward disable"},
	}},
}

// gates maps a feature to the features its presence depends on.
var gates = map[string][]string{
	"AVX":            {"OSXSAVE"},
	"AVX2":           {"AVX"},
	"FMA":            {"AVX"},
	"F16C":           {"AVX"},
	"FMA4":           {"AVX"},
	"XOP":            {"AVX"},
	"VAES":           {"AVX"},
	"VPCLMULQDQ":     {"AVX"},
	"AVX_VNNI":       {"AVX"},
	"AVX_IFMA":       {"AVX"},
	"AVX_VNNI_INT8":  {"AVX"},
	"AVX_VNNI_INT16": {"AVX"},
	"AVX_NE_CONVERT": {"AVX"},
	"AVX512F":        {"AVX"},
	"AMX_TILE":       {"OSXSAVE"},
	"AMX_BF16":       {"AMX_TILE"},
	"AMX_INT8":       {"AMX_TILE"},
	"AMX_FP16":       {"AMX_TILE"},
	"AMX_COMPLEX":    {"AMX_TILE"},
}

// registry is the immutable feature table, in table order. byName
// indexes it. Both are built once at package initialization.
var (
	registry []Feature
	byName   map[string]int
)

func init() {
	registry, byName = buildRegistry(bitGroups, gates)
}

func buildRegistry(groups []bitGroup, gates map[string][]string) ([]Feature, map[string]int) {
	type slot struct {
		leaf, subleaf uint32
		reg           cpuid.Register
		bit           uint
	}

	var table []Feature
	index := make(map[string]int)
	taken := make(map[slot]string)

	for _, g := range groups {
		for _, b := range g.bits {
			s := slot{g.leaf, g.subleaf, g.reg, b.bit}
			if prev, ok := taken[s]; ok {
				panic(fmt.Sprintf("cpu: %s and %s share leaf %#x.%d %s bit %d", prev, b.name, g.leaf, g.subleaf, g.reg, b.bit))
			}
			if _, ok := index[b.name]; ok {
				panic("cpu: duplicate feature name " + b.name)
			}
			taken[s] = b.name
			index[b.name] = len(table)
			table = append(table, Feature{
				Name:        b.name,
				Leaf:        g.leaf,
				Subleaf:     g.subleaf,
				Register:    g.reg,
				Bit:         b.bit,
				Category:    b.cat,
				Description: b.desc,
			})
		}
	}

	for i := range table {
		f := &table[i]
		f.Requires = gates[f.Name]
		if f.Requires == nil && strings.HasPrefix(f.Name, "AVX512") && f.Name != "AVX512F" {
			f.Requires = []string{"AVX512F"}
		}
		for _, dep := range f.Requires {
			if _, ok := index[dep]; !ok {
				panic("cpu: " + f.Name + " requires unknown feature " + dep)
			}
		}
	}
	return table, index
}

// Features returns a copy of the registry in table order.
func Features() []Feature {
	out := make([]Feature, len(registry))
	for i, f := range registry {
		out[i] = f.clone()
	}
	return out
}

// LookupFeature returns the registry entry for name. Names are
// case-sensitive.
func LookupFeature(name string) (Feature, bool) {
	i, ok := byName[name]
	if !ok {
		return Feature{}, false
	}
	return registry[i].clone(), true
}

// clone detaches Requires from the package table.
func (f Feature) clone() Feature {
	if f.Requires != nil {
		f.Requires = append([]string(nil), f.Requires...)
	}
	return f
}
