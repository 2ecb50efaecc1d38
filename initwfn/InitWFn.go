// Package initwfn selects Gorgonia weight initializers by name so that
// they can be chosen in configuration files.
//
// The random initializers draw from their own seeded source rather than
// Gorgonia's, so that building the same models with the same seed
// always produces the same weights.
package initwfn

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrUnknownInitWFn is returned when a weight initializer name cannot
// be parsed
var ErrUnknownInitWFn = errors.New("unknown weight initializer")

// Type describes different types of InitWFn that are available
type Type string

// Available InitWFn types
const (
	GlorotU Type = "GlorotU"
	GlorotN Type = "GlorotN"
	HeU     Type = "HeU"
	HeN     Type = "HeN"
	Zeroes  Type = "Zeroes"
	Ones    Type = "Ones"
)

// Default is the initializer used when none is configured
const Default = GlorotU

// InitWFn is a named Gorgonia weight initializer. Successive calls to
// the wrapped G.InitWFn continue the same random stream.
type InitWFn struct {
	initWFn G.InitWFn
	Type
	Gain float64
	Seed uint64
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (w *InitWFn) InitWFn() G.InitWFn {
	return w.initWFn
}

// String implements the fmt.Stringer interface
func (w *InitWFn) String() string {
	if w.hasGain() {
		return fmt.Sprintf("%v(%v)", w.Type, w.Gain)
	}
	return string(w.Type)
}

func (w *InitWFn) hasGain() bool {
	return w.Type != Zeroes && w.Type != Ones
}

// New returns the weight initializer of type t with the given gain,
// drawing random weights from a source seeded with seed. The gain is
// ignored by Zeroes and Ones.
func New(t Type, gain float64, seed uint64) (*InitWFn, error) {
	w := &InitWFn{Type: t, Gain: gain, Seed: seed}
	src := rand.NewSource(seed)
	switch t {
	case GlorotU:
		w.initWFn = uniform(src, func(fanIn, fanOut int) float64 {
			return gain * math.Sqrt(6.0/float64(fanIn+fanOut))
		})
	case GlorotN:
		w.initWFn = normal(src, func(fanIn, fanOut int) float64 {
			return gain * math.Sqrt(2.0/float64(fanIn+fanOut))
		})
	case HeU:
		w.initWFn = uniform(src, func(fanIn, _ int) float64 {
			return gain * math.Sqrt(6.0/float64(fanIn))
		})
	case HeN:
		w.initWFn = normal(src, func(fanIn, _ int) float64 {
			return gain * math.Sqrt(2.0/float64(fanIn))
		})
	case Zeroes:
		w.initWFn = G.Zeroes()
	case Ones:
		w.initWFn = G.Ones()
	default:
		return nil, fmt.Errorf("new: %w: %q", ErrUnknownInitWFn, t)
	}

	if !w.hasGain() {
		w.Gain = 0
	} else if gain <= 0 {
		return nil, fmt.Errorf("new: gain must be positive \n\thave(%v)",
			gain)
	}
	return w, nil
}

// Parse parses a weight initializer written as its type name with an
// optional gain in parentheses, for example "GlorotU" or "HeN(2)". The
// gain defaults to 1. An empty string selects Default.
func Parse(s string, seed uint64) (*InitWFn, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return New(Default, 1.0, seed)
	}

	name, gain := s, 1.0
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return nil, fmt.Errorf("parse: %w: %q", ErrUnknownInitWFn, s)
		}
		var err error
		gain, err = strconv.ParseFloat(strings.TrimSpace(s[open+1:len(s)-1]),
			64)
		if err != nil {
			return nil, fmt.Errorf("parse: %w: %q: %v", ErrUnknownInitWFn, s,
				err)
		}
		name = strings.TrimSpace(s[:open])
	}

	w, err := New(Type(name), gain, seed)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return w, nil
}

// fans returns the fan in and fan out of a weight matrix of shape s.
// Trailing dimensions form the receptive field.
func fans(s []int) (int, int) {
	if len(s) < 2 {
		panic(fmt.Sprintf("fans: weights need at least 2 dimensions "+
			"\n\thave(%v)", len(s)))
	}
	fanIn, fanOut := s[0], s[1]
	for _, d := range s[2:] {
		fanIn *= d
		fanOut *= d
	}
	return fanIn, fanOut
}

// uniform returns an InitWFn drawing from U(-limit, limit)
func uniform(src rand.Source, limit func(fanIn, fanOut int) float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		l := limit(fans(s))
		return sample(distuv.Uniform{Min: -l, Max: l, Src: src}, dt, s)
	}
}

// normal returns an InitWFn drawing from N(0, stddev²)
func normal(src rand.Source, stddev func(fanIn, fanOut int) float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		return sample(distuv.Normal{Mu: 0, Sigma: stddev(fans(s)), Src: src},
			dt, s)
	}
}

func sample(r distuv.Rander, dt tensor.Dtype, s []int) interface{} {
	size := tensor.Shape(s).TotalSize()
	switch dt {
	case tensor.Float64:
		out := make([]float64, size)
		for i := range out {
			out[i] = r.Rand()
		}
		return out
	case tensor.Float32:
		out := make([]float32, size)
		for i := range out {
			out[i] = float32(r.Rand())
		}
		return out
	default:
		panic(fmt.Sprintf("sample: unsupported dtype %v", dt))
	}
}
