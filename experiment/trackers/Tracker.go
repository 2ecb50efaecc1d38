// Package trackers implements Trackers, which track and save data in an
// experiment
package trackers

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/samuelfneumann/spiral/timestep"
)

// Interface Tracker keeps track of experiment data and saves the data
// after the experiment has finished
type Tracker interface {
	Track(t ts.TimeStep) error
	Save() error
}

// LoadData loads and returns the data saved by a Return Tracker
func LoadData(filename string) ([]float64, error) {
	var data []float64
	if err := load(filename, &data); err != nil {
		return nil, fmt.Errorf("loadData: %w", err)
	}
	return data, nil
}

// LoadLengths loads and returns the data saved by an EpisodeLength
// Tracker
func LoadLengths(filename string) ([]int, error) {
	var data []int
	if err := load(filename, &data); err != nil {
		return nil, fmt.Errorf("loadLengths: %w", err)
	}
	return data, nil
}

func load(filename string, data interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("could not open data file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("could not decode data: %w", err)
	}
	return nil
}

func save(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not open save file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		file.Close()
		return fmt.Errorf("could not encode data: %w", err)
	}
	return file.Close()
}
