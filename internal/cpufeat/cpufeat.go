// Package cpufeat probes CPU vector capabilities once per process and selects
// the fastest functionally-equivalent decode kernels. Every kernel variant
// must produce byte-identical output for identical input; the test suite
// enforces this rather than assuming it.
package cpufeat

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// Features describes the vector instruction sets available to decode kernels.
type Features struct {
	SSE2 bool
	AVX2 bool
	NEON bool
}

// Wide reports whether any wide (multi-lane) kernel may be selected.
func (f Features) Wide() bool { return f.SSE2 || f.AVX2 || f.NEON }

// Name returns a short label for the best available feature set.
func (f Features) Name() string {
	switch {
	case f.AVX2:
		return "avx2"
	case f.SSE2:
		return "sse2"
	case f.NEON:
		return "neon"
	default:
		return "scalar"
	}
}

var (
	detectOnce sync.Once
	detected   Features
)

// Detect probes CPU capabilities. The probe runs once; later calls return the
// cached value. Concurrent first calls are serialized by sync.Once.
func Detect() Features {
	detectOnce.Do(func() {
		detected = Features{
			SSE2: cpu.X86.HasSSE2,
			AVX2: cpu.X86.HasAVX2,
			NEON: cpu.ARM64.HasASIMD,
		}
	})
	return detected
}

// Kernels bundles the dispatched decode entry points. Callers thread a
// Kernels value explicitly instead of consulting process globals, which keeps
// kernel selection testable.
type Kernels struct {
	name string

	// MFMExtract converts 16-bit MFM words into data bytes by dropping the
	// interleaved clock bits.
	MFMExtract func(words []uint16, out []byte) int

	// GCRExpand maps packed 5-bit GCR codes (two codes per element, low 10
	// bits used) to data bytes; invalid codes yield InvalidGCR nibbles.
	GCRExpand func(codes []uint16, out []byte) int
}

// Name identifies the selected kernel family.
func (k Kernels) Name() string { return k.name }

// Select returns the fastest kernel set whose requirements f satisfies.
func Select(f Features) Kernels {
	if f.Wide() {
		return Kernels{
			name:       f.Name(),
			MFMExtract: mfmExtractWide,
			GCRExpand:  gcrExpandTable,
		}
	}
	return Scalar()
}

// Scalar returns the portable reference kernels.
func Scalar() Kernels {
	return Kernels{
		name:       "scalar",
		MFMExtract: mfmExtractScalar,
		GCRExpand:  gcrExpandScalar,
	}
}
