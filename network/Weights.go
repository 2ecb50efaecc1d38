package network

import (
	"errors"
	"fmt"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrWeightSize is returned when an array in a weight snapshot does not
// match the size of the learnable it is loaded into
var ErrWeightSize = errors.New("weight array size mismatch")

// Learner is a model with named learnable nodes
type Learner interface {
	Learnables() G.Nodes
}

// LoadNPZ overwrites the learnables of net in place with the arrays of
// the NumPy .npz archive at path. Each learnable is read from the array
// named after the node. Both float32 and float64 arrays are accepted.
// If net implements Sync() error, it is called after loading.
func LoadNPZ(path string, net Learner) error {
	r, err := npz.Open(path)
	if err != nil {
		return fmt.Errorf("loadNPZ: %v: %w", path, err)
	}
	defer r.Close()

	for _, node := range net.Learnables() {
		data, err := readFloats(r, node.Name())
		if err != nil {
			return fmt.Errorf("loadNPZ: %v: array %q: %w", path, node.Name(),
				err)
		}

		if size := node.Shape().TotalSize(); len(data) != size {
			return fmt.Errorf("loadNPZ: %v: array %q: %w\n\twant(%v)"+
				"\n\thave(%v)", path, node.Name(), ErrWeightSize, size,
				len(data))
		}

		weights := tensor.New(
			tensor.WithShape(node.Shape().Clone()...),
			tensor.WithBacking(data),
		)
		if err := G.Let(node, weights); err != nil {
			return fmt.Errorf("loadNPZ: %v: array %q: %w", path, node.Name(),
				err)
		}
	}

	if s, ok := net.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("loadNPZ: %v: %w", path, err)
		}
	}
	return nil
}

// readFloats reads the named array as float64 values, converting from
// float32 if needed
func readFloats(r *npz.Reader, name string) ([]float64, error) {
	var data []float64
	err := r.Read(name, &data)
	if err == nil {
		return data, nil
	}

	var data32 []float32
	if err32 := r.Read(name, &data32); err32 != nil {
		return nil, err
	}
	data = make([]float64, len(data32))
	for i := range data32 {
		data[i] = float64(data32[i])
	}
	return data, nil
}

// SaveNPZ writes the learnables of net to a NumPy .npz archive at path,
// one float64 array per learnable named after the node
func SaveNPZ(path string, net Learner) error {
	w, err := npz.Create(path)
	if err != nil {
		return fmt.Errorf("saveNPZ: %v: %w", path, err)
	}

	for _, node := range net.Learnables() {
		weights, err := copyValue(node.Value())
		if err != nil {
			w.Close()
			return fmt.Errorf("saveNPZ: %v: array %q: %w", path, node.Name(),
				err)
		}

		var array interface{} = weights.Data().([]float64)
		if shape := node.Shape(); len(shape) == 2 {
			array = mat.NewDense(shape[0], shape[1], weights.Data().([]float64))
		}
		if err := w.Write(node.Name(), array); err != nil {
			w.Close()
			return fmt.Errorf("saveNPZ: %v: array %q: %w", path, node.Name(),
				err)
		}
	}
	return w.Close()
}
