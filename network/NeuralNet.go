// Package network implements the neural networks of the SPIRAL agent.
//
// Networks are built on Gorgonia computational graphs. A NeuralNet is
// a multi-layered perceptron whose learnable nodes are named
// prefix + "l<layer>/W" for weights and prefix + "l<layer>/b" for
// biases; the names identify arrays in weight snapshots.
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a feed forward network on a Gorgonia graph
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error
	Set(NeuralNet) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node
}
