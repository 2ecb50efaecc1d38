package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// mlp implements a multi-layered perceptron with a single output layer
// of Outputs() nodes.
type mlp struct {
	g          *G.ExprGraph
	layers     []Layer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int
	prefix     string

	hiddenSizes []int
	biases      []bool
	activations []*Activation
	outputAct   *Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron on graph g.
//
// The MLP has len(hiddenSizes) + 1 layers. For index i, hiddenSizes[i]
// is the number of nodes in hidden layer i, biases[i] is true if
// hidden layer i has a bias unit, and activations[i] is the activation
// of hidden layer i. A final layer of outputs nodes with a bias and
// activation outputAct is always added. Weights are initialized with
// init and all learnable nodes are named with the given prefix.
func NewMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, outputAct *Activation,
	prefix string) (NeuralNet, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newMLP: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newMLP: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if features <= 0 || batch <= 0 || outputs <= 0 {
		msg := "newMLP: features, batch and outputs must be positive " +
			"\n\thave(%v, %v, %v)"
		return nil, fmt.Errorf(msg, features, batch, outputs)
	}
	if outputAct == nil {
		outputAct = Identity()
	}

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(prefix+"input"), G.WithInit(G.Zeroes()))

	sizes := append(append([]int{}, hiddenSizes...), outputs)
	b := append(append([]bool{}, biases...), true)
	acts := append(append([]*Activation{}, activations...), outputAct)
	layers := addfcLayers(g, sizes, b, acts, init, features, prefix)

	net := &mlp{
		g:           g,
		layers:      layers,
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		prefix:      prefix,
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
		outputAct:   outputAct,
	}
	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newMLP: could not compute forward pass: %v",
			err)
	}
	return net, nil
}

// Graph returns the computational graph of the mlp
func (m *mlp) Graph() *G.ExprGraph {
	return m.g
}

// Clone clones the mlp onto a new graph
func (m *mlp) Clone() (NeuralNet, error) {
	return m.CloneWithBatch(m.batchSize)
}

// CloneWithBatch clones the mlp onto a new graph with a new input batch
// size. The clone's weights are copies of the mlp's weights.
func (m *mlp) CloneWithBatch(batchSize int) (NeuralNet, error) {
	clone, err := NewMLP(m.numInputs, batchSize, m.numOutputs, G.NewGraph(),
		m.hiddenSizes, m.biases, G.Zeroes(), m.activations, m.outputAct,
		m.prefix)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	if err := clone.Set(m); err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}
	return clone, nil
}

// BatchSize returns the batch size of inputs to the network
func (m *mlp) BatchSize() int {
	return m.batchSize
}

// Features returns the number of features in a single input vector
func (m *mlp) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs from the network
func (m *mlp) Outputs() int {
	return m.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (m *mlp) SetInput(input []float64) error {
	if len(input) != m.numInputs*m.batchSize {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", m.numInputs*m.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(m.input.Shape()...),
	)
	return G.Let(m.input, inputTensor)
}

// Set sets the weights of the mlp to copies of the weights of source
func (m *mlp) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := m.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: invalid number of learnables\n\twant(%v)"+
			"\n\thave(%v)", len(nodes), len(sourceNodes))
	}

	for i, dest := range nodes {
		if !dest.Shape().Eq(sourceNodes[i].Shape()) {
			return fmt.Errorf("set: shape mismatch for %v\n\twant(%v)"+
				"\n\thave(%v)", dest.Name(), dest.Shape(),
				sourceNodes[i].Shape())
		}
		weights, err := copyValue(sourceNodes[i].Value())
		if err != nil {
			return fmt.Errorf("set: %v: %v", dest.Name(), err)
		}
		if err := G.Let(dest, weights); err != nil {
			return err
		}
	}
	return nil
}

// Learnables returns the learnable nodes of the mlp, in layer order
// with each weight node followed by its bias node
func (m *mlp) Learnables() G.Nodes {
	if m.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(m.layers))
		for i := range m.layers {
			learnables = append(learnables, m.layers[i].Weights())
			if bias := m.layers[i].Bias(); bias != nil {
				learnables = append(learnables, bias)
			}
		}
		m.learnables = G.Nodes(learnables)
	}
	return m.learnables
}

// Model returns the learnables nodes with their gradients.
func (m *mlp) Model() []G.ValueGrad {
	if m.model == nil {
		m.model = make([]G.ValueGrad, 0, 2*len(m.layers))
		for _, node := range m.Learnables() {
			m.model = append(m.model, node)
		}
	}
	return m.model
}

// fwd performs the forward pass of the mlp on the input node
func (m *mlp) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)
	return pred, nil
}

// Output returns the output of the mlp after the graph has been run
func (m *mlp) Output() G.Value {
	return m.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the mlp
func (m *mlp) Prediction() *G.Node {
	return m.prediction
}

// copyValue returns a float64 tensor holding a copy of the data in v
func copyValue(v G.Value) (*tensor.Dense, error) {
	if v == nil {
		return nil, fmt.Errorf("copyValue: nil value")
	}
	data, ok := v.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("copyValue: expected float64 data, have %T",
			v.Data())
	}
	backing := make([]float64, len(data))
	copy(backing, data)
	return tensor.New(
		tensor.WithShape(v.Shape().Clone()...),
		tensor.WithBacking(backing),
	), nil
}

// floats returns the float64 data held in v
func floats(v G.Value) ([]float64, error) {
	if v == nil {
		return nil, fmt.Errorf("floats: graph has not been run")
	}
	switch data := v.Data().(type) {
	case []float64:
		return data, nil
	case float64:
		return []float64{data}, nil
	}
	return nil, fmt.Errorf("floats: expected float64 data, have %T", v.Data())
}
