package board

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/cpu"
)

// Kernel names accepted by UseKernel and UseMaskKernel.
const (
	KernelAuto         = "auto"
	KernelCarry        = "carry"
	KernelKindergarten = "kindergarten"

	MaskKoggeStone = "kogge-stone"
	MaskSequential = "sequential"
)

var flipKernels = map[string]FlipKernel{
	KernelCarry:        carryKernel{},
	KernelKindergarten: kindergartenKernel{},
}

var maskKernels = map[string]MoveMaskKernel{
	MaskKoggeStone: koggeStoneMask{},
	MaskSequential: sequentialMask{},
}

var (
	flipper  FlipKernel     = carryKernel{}
	moveMask MoveMaskKernel = koggeStoneMask{}
)

func init() {
	initRays()
	initKindergarten()
	flipper = detectFlipKernel()
}

// detectFlipKernel prefers the carry kernel where a fast leading-zero count
// is available and falls back to table lookups otherwise.
func detectFlipKernel() FlipKernel {
	if cpu.X86.HasBMI1 || runtime.GOARCH == "arm64" {
		return carryKernel{}
	}
	return kindergartenKernel{}
}

// UseKernel selects the flip kernel by name. It is not safe to call while
// other goroutines generate moves.
func UseKernel(name string) error {
	if name == KernelAuto || name == "" {
		flipper = detectFlipKernel()
	} else {
		k, ok := flipKernels[name]
		if !ok {
			return fmt.Errorf("unknown flip kernel %q", name)
		}
		flipper = k
	}
	log.Debug().Str("kernel", flipper.Name()).Msg("flip-kernel-selected")
	return nil
}

// UseMaskKernel selects the legal-move mask kernel by name. Same caveat as
// UseKernel.
func UseMaskKernel(name string) error {
	if name == KernelAuto || name == "" {
		name = MaskKoggeStone
	}
	k, ok := maskKernels[name]
	if !ok {
		return fmt.Errorf("unknown move mask kernel %q", name)
	}
	moveMask = k
	log.Debug().Str("kernel", moveMask.Name()).Msg("mask-kernel-selected")
	return nil
}

// FlipKernels lists the available flip kernels.
func FlipKernels() []FlipKernel {
	return sortedKernels(flipKernels)
}

// MoveMaskKernels lists the available move mask kernels.
func MoveMaskKernels() []MoveMaskKernel {
	return sortedKernels(maskKernels)
}

func sortedKernels[K interface{ Name() string }](m map[string]K) []K {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]K, len(names))
	for i, name := range names {
		out[i] = m[name]
	}
	return out
}

// ActiveKernels returns the names of the flip and move mask kernels in use.
func ActiveKernels() (flip, mask string) {
	return flipper.Name(), moveMask.Name()
}
