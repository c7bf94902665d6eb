// Package device reports GPU availability and memory use for the status
// surface. Probes run in the background; readers only ever hit the cache.
package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Info is the coarse device view exposed on /health and /model-status.
type Info struct {
	CUDAAvailable bool
	Name          string
	// MemoryAllocated is bytes in use on the first GPU, 0 if none. It is the
	// device-wide figure reported by nvidia-smi and includes other processes.
	MemoryAllocated uint64
	ProbedAt        time.Time
}

// Prober inspects the host for a GPU.
type Prober interface {
	Probe(ctx context.Context) (Info, error)
}

// ErrNoGPU is returned when no usable GPU tooling is present.
var ErrNoGPU = errors.New("no gpu detected")

// NvidiaSMI probes through the nvidia-smi CLI.
type NvidiaSMI struct {
	// Bin overrides the binary looked up on PATH.
	Bin string
}

func (n NvidiaSMI) Probe(ctx context.Context) (Info, error) {
	bin := strings.TrimSpace(n.Bin)
	if bin == "" {
		p, err := exec.LookPath("nvidia-smi")
		if err != nil {
			return Info{}, ErrNoGPU
		}
		bin = p
	}
	out, err := exec.CommandContext(ctx, bin, "--query-gpu=name,memory.used", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return Info{}, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseSMI(string(out))
}

// parseSMI reads the first "name, memory.used(MiB)" row.
func parseSMI(out string) (Info, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return Info{}, fmt.Errorf("unexpected nvidia-smi row %q", line)
		}
		mib, err := strconv.ParseUint(strings.TrimSpace(parts[len(parts)-1]), 10, 64)
		if err != nil {
			return Info{}, fmt.Errorf("parse memory.used: %w", err)
		}
		name := strings.TrimSpace(strings.Join(parts[:len(parts)-1], ","))
		return Info{CUDAAvailable: true, Name: name, MemoryAllocated: mib * 1024 * 1024}, nil
	}
	return Info{}, ErrNoGPU
}
