// Package profiling implements scoped CPU profiling
package profiling

import (
	"fmt"
	"os"
	"runtime/pprof"
)

// DefaultPath is the file CPU profiles are written to by default
const DefaultPath = "cpu.pprof"

// Start starts a CPU profile written to path. The returned function
// stops the profile and closes the file; it must be called exactly
// once.
func Start(path string) (func() error, error) {
	if path == "" {
		path = DefaultPath
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if err := pprof.StartCPUProfile(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("start: %w", err)
	}

	return func() error {
		pprof.StopCPUProfile()
		if err := file.Close(); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		return nil
	}, nil
}
