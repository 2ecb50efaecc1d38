// Package checkpointer implements step hooks that periodically save
// an agent during an experiment
package checkpointer

import (
	"fmt"
	"path/filepath"
)

// Saver is an object that can save itself to a directory
type Saver interface {
	Save(dir string) error
}

// CheckpointDir returns the directory in outDir that the checkpoint of
// a given step is saved to
func CheckpointDir(outDir string, step int) string {
	return filepath.Join(outDir, fmt.Sprintf("%d_checkpoint", step))
}
