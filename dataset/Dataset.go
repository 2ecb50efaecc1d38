// Package dataset implements datasets of target photos that a
// discriminator learns to tell apart from generated ones.
package dataset

import (
	"errors"

	"golang.org/x/exp/rand"
)

// ErrEmpty is returned when sampling from a dataset with no samples
var ErrEmpty = errors.New("dataset is empty")

// Dataset is a collection of flattened images
type Dataset interface {
	// Len returns the number of samples in the dataset
	Len() int

	// Get returns sample i
	Get(i int) ([]float64, error)

	// Sample returns a sample chosen uniformly at random
	Sample(rng *rand.Rand) ([]float64, error)
}
