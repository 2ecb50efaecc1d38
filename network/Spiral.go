package network

import (
	"fmt"

	"github.com/samuelfneumann/spiral/utils/imageutils"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Widths of the hidden layers of the SPIRAL networks
const (
	GeneratorHidden     = 64
	DiscriminatorHidden = 64
)

// Name prefixes of the learnable nodes of each network
const (
	GeneratorPrefix     = "generator/"
	DiscriminatorPrefix = "discriminator/"
)

// Updater applies gradients stored in a model's learnables
type Updater interface {
	Update() error
}

// GeneratorSpec describes the construction parameters of a Generator.
// Two Generators with equal GeneratorSpecs built with the same seed
// have equal weights.
type GeneratorSpec struct {
	ImSize        int
	NumParameters int
	LStages       int
	Conditional   bool
	Hidden        int
}

// Features returns the number of input features of the Generator
func (s GeneratorSpec) Features() int {
	features := imageutils.Len(s.ImSize)
	if s.Conditional {
		features *= 2
	}
	return features
}

// Generator is the SPIRAL policy network. It maps a flattened canvas,
// concatenated with the condition image in conditional mode, to the
// means of NumParameters edit strengths in [-1, 1].
//
// The graph also holds a REINFORCE loss coef * ||mean - action||^2 for
// a Gaussian policy with fixed standard deviation, so that one run of
// the graph computes both the means and the gradients of the loss.
type Generator struct {
	spec GeneratorSpec
	net  NeuralNet

	actions *G.Node
	coef    *G.Node
	loss    *G.Node
	lossVal G.Value

	vm G.VM
}

// NewGenerator returns a new Generator for imsize x imsize RGB images
func NewGenerator(imsize, numParameters, lStages int, conditional bool,
	init G.InitWFn) (*Generator, error) {
	if imsize <= 0 || numParameters <= 0 || lStages <= 0 {
		return nil, fmt.Errorf("newGenerator: imsize, numParameters and "+
			"lStages must be positive\n\thave(%v, %v, %v)", imsize,
			numParameters, lStages)
	}
	spec := GeneratorSpec{
		ImSize:        imsize,
		NumParameters: numParameters,
		LStages:       lStages,
		Conditional:   conditional,
		Hidden:        GeneratorHidden,
	}

	hiddenSizes := make([]int, lStages)
	biases := make([]bool, lStages)
	activations := make([]*Activation, lStages)
	for i := range hiddenSizes {
		hiddenSizes[i] = spec.Hidden
		biases[i] = true
		activations[i] = ReLU()
	}

	g := G.NewGraph()
	net, err := NewMLP(spec.Features(), 1, numParameters, g, hiddenSizes,
		biases, init, activations, TanH(), GeneratorPrefix)
	if err != nil {
		return nil, fmt.Errorf("newGenerator: %v", err)
	}

	actions := G.NewMatrix(g, tensor.Float64,
		G.WithShape(1, numParameters), G.WithName(GeneratorPrefix+"actions"),
		G.WithInit(G.Zeroes()))
	coef := G.NewScalar(g, tensor.Float64, G.WithName(GeneratorPrefix+"coef"),
		G.WithValue(0.0))

	diff := G.Must(G.Sub(net.Prediction(), actions))
	loss := G.Must(G.Mul(G.Must(G.Sum(G.Must(G.Square(diff)))), coef))

	gen := &Generator{
		spec:    spec,
		net:     net,
		actions: actions,
		coef:    coef,
		loss:    loss,
	}
	G.Read(loss, &gen.lossVal)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newGenerator: could not compute gradient: %v",
			err)
	}
	gen.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return gen, nil
}

// Spec returns the construction parameters of the Generator
func (g *Generator) Spec() GeneratorSpec {
	return g.spec
}

// Learnables returns the learnable nodes of the Generator
func (g *Generator) Learnables() G.Nodes {
	return g.net.Learnables()
}

// Model returns the learnable nodes with their gradients
func (g *Generator) Model() []G.ValueGrad {
	return g.net.Model()
}

// Act returns the action means for the given input
func (g *Generator) Act(input []float64) ([]float64, error) {
	if err := g.set(input, nil, 0); err != nil {
		return nil, fmt.Errorf("act: %v", err)
	}
	defer g.vm.Reset()

	if err := g.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("act: %v", err)
	}

	means, err := floats(g.net.Output())
	if err != nil {
		return nil, fmt.Errorf("act: %v", err)
	}
	out := make([]float64, len(means))
	copy(out, means)
	return out, nil
}

// Update computes the gradient of the loss coef * ||mean - action||^2
// at input and applies it with updater. It returns the loss before the
// update.
func (g *Generator) Update(input, action []float64, coef float64,
	updater Updater) (float64, error) {
	if len(action) != g.spec.NumParameters {
		return 0, fmt.Errorf("update: invalid action length\n\twant(%v)"+
			"\n\thave(%v)", g.spec.NumParameters, len(action))
	}
	if err := g.set(input, action, coef); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	defer g.vm.Reset()

	if err := g.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	loss, err := floats(g.lossVal)
	if err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	if err := updater.Update(); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	return loss[0], nil
}

// set sets the input nodes of the graph. A nil action sets the action
// node to zeroes.
func (g *Generator) set(input, action []float64, coef float64) error {
	if err := g.net.SetInput(input); err != nil {
		return err
	}
	if action == nil {
		action = make([]float64, g.spec.NumParameters)
	}
	a := make([]float64, len(action))
	copy(a, action)
	actionTensor := tensor.New(
		tensor.WithShape(g.actions.Shape()...),
		tensor.WithBacking(a),
	)
	if err := G.Let(g.actions, actionTensor); err != nil {
		return err
	}
	return G.Let(g.coef, G.NewF64(coef))
}

// Close releases the resources of the Generator's VM
func (g *Generator) Close() error {
	return g.vm.Close()
}

// DiscriminatorSpec describes the construction parameters of a
// Discriminator
type DiscriminatorSpec struct {
	ImSize      int
	Conditional bool
	Hidden      int
}

// Features returns the number of input features of the Discriminator
func (s DiscriminatorSpec) Features() int {
	features := imageutils.Len(s.ImSize)
	if s.Conditional {
		features *= 2
	}
	return features
}

// Discriminator is the SPIRAL critic. It scores a flattened image,
// concatenated with the condition image in conditional mode.
//
// Training runs on a batch of two inputs, the real input first, with
// the loss D(fake) - D(real) + penalty * mean(D^2). Scoring runs on a
// batch-1 clone whose weights are synced after every update.
type Discriminator struct {
	spec DiscriminatorSpec

	net      NeuralNet
	penalty  *G.Node
	loss     *G.Node
	lossVal  G.Value
	vm       G.VM
	scorer   NeuralNet
	scorerVM G.VM
}

// NewDiscriminator returns a new Discriminator for imsize x imsize RGB
// images
func NewDiscriminator(imsize int, conditional bool,
	init G.InitWFn) (*Discriminator, error) {
	if imsize <= 0 {
		return nil, fmt.Errorf("newDiscriminator: imsize must be positive"+
			"\n\thave(%v)", imsize)
	}
	spec := DiscriminatorSpec{
		ImSize:      imsize,
		Conditional: conditional,
		Hidden:      DiscriminatorHidden,
	}

	g := G.NewGraph()
	net, err := NewMLP(spec.Features(), 2, 1, g,
		[]int{spec.Hidden, spec.Hidden}, []bool{true, true}, init,
		[]*Activation{ReLU(), ReLU()}, Identity(), DiscriminatorPrefix)
	if err != nil {
		return nil, fmt.Errorf("newDiscriminator: %v", err)
	}

	signs := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 1),
		G.WithName(DiscriminatorPrefix+"signs"),
		G.WithValue(tensor.New(
			tensor.WithShape(2, 1),
			tensor.WithBacking([]float64{-1, 1}),
		)))
	penalty := G.NewScalar(g, tensor.Float64,
		G.WithName(DiscriminatorPrefix+"penalty"), G.WithValue(0.0))

	out := net.Prediction()
	critic := G.Must(G.Sum(G.Must(G.HadamardProd(out, signs))))
	drift := G.Must(G.Mean(G.Must(G.Square(out))))
	loss := G.Must(G.Add(critic, G.Must(G.Mul(drift, penalty))))

	d := &Discriminator{
		spec:    spec,
		net:     net,
		penalty: penalty,
		loss:    loss,
	}
	G.Read(loss, &d.lossVal)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newDiscriminator: could not compute "+
			"gradient: %v", err)
	}
	d.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	d.scorer, err = net.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("newDiscriminator: %v", err)
	}
	d.scorerVM = G.NewTapeMachine(d.scorer.Graph())

	return d, nil
}

// Spec returns the construction parameters of the Discriminator
func (d *Discriminator) Spec() DiscriminatorSpec {
	return d.spec
}

// Learnables returns the learnable nodes of the Discriminator
func (d *Discriminator) Learnables() G.Nodes {
	return d.net.Learnables()
}

// Model returns the learnable nodes with their gradients
func (d *Discriminator) Model() []G.ValueGrad {
	return d.net.Model()
}

// Sync copies the trained weights into the scoring network
func (d *Discriminator) Sync() error {
	return d.scorer.Set(d.net)
}

// Score returns the critic value of input
func (d *Discriminator) Score(input []float64) (float64, error) {
	if err := d.scorer.SetInput(input); err != nil {
		return 0, fmt.Errorf("score: %v", err)
	}
	defer d.scorerVM.Reset()

	if err := d.scorerVM.RunAll(); err != nil {
		return 0, fmt.Errorf("score: %v", err)
	}
	out, err := floats(d.scorer.Output())
	if err != nil {
		return 0, fmt.Errorf("score: %v", err)
	}
	return out[0], nil
}

// Update performs one critic update on a real and a fake input and
// returns the loss before the update
func (d *Discriminator) Update(real, fake []float64, penalty float64,
	updater Updater) (float64, error) {
	if len(real) != len(fake) {
		return 0, fmt.Errorf("update: real and fake inputs differ in "+
			"length\n\twant(%v)\n\thave(%v)", len(real), len(fake))
	}
	input := make([]float64, 0, len(real)+len(fake))
	input = append(append(input, real...), fake...)

	if err := d.net.SetInput(input); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	if err := G.Let(d.penalty, G.NewF64(penalty)); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	defer d.vm.Reset()

	if err := d.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	loss, err := floats(d.lossVal)
	if err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	if err := updater.Update(); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	if err := d.Sync(); err != nil {
		return 0, fmt.Errorf("update: %v", err)
	}
	return loss[0], nil
}

// Close releases the resources of the Discriminator's VMs
func (d *Discriminator) Close() error {
	err := d.vm.Close()
	if scorerErr := d.scorerVM.Close(); err == nil {
		err = scorerErr
	}
	return err
}
