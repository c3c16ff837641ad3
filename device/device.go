// Package device describes the compute backend the training loop runs on.
// All math executes on the CPU; this package reports what that CPU can do
// so runs are reproducible across machines.
package device

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Device describes the active compute backend.
type Device struct {
	Name         string
	LogicalCores int
	VectorExts   []string
}

// Active returns a description of the CPU the process is running on.
func Active() Device {
	name := cpuid.CPU.BrandName
	if name == "" {
		name = fmt.Sprintf("%s/%s CPU", runtime.GOOS, runtime.GOARCH)
	}

	var exts []string
	for _, f := range vectorFeatures {
		if cpuid.CPU.Has(f.id) {
			exts = append(exts, f.label)
		}
	}

	return Device{
		Name:         name,
		LogicalCores: cpuid.CPU.LogicalCores,
		VectorExts:   exts,
	}
}

var vectorFeatures = []struct {
	id    cpuid.FeatureID
	label string
}{
	{cpuid.SSE42, "SSE4.2"},
	{cpuid.AVX, "AVX"},
	{cpuid.AVX2, "AVX2"},
	{cpuid.AVX512F, "AVX512F"},
	{cpuid.FMA3, "FMA3"},
}

// String renders the device the way the trainer logs it.
func (d Device) String() string {
	if len(d.VectorExts) == 0 {
		return fmt.Sprintf("%s (%d cores)", d.Name, d.LogicalCores)
	}
	return fmt.Sprintf("%s (%d cores, %s)", d.Name, d.LogicalCores, strings.Join(d.VectorExts, "/"))
}
