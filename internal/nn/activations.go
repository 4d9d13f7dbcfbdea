package nn

import (
	"fmt"
	"math"
)

// Activation identifies one of the supported activation kinds. The set is
// closed, so dispatch goes through a lookup table of function pairs rather
// than an interface.
type Activation int

const (
	Identity Activation = iota
	Sigmoid
	ReLU
	Tanh
	Softmax
)

var activationNames = map[Activation]string{
	Identity: "identity",
	Sigmoid:  "sigmoid",
	ReLU:     "relu",
	Tanh:     "tanh",
	Softmax:  "softmax",
}

func (a Activation) String() string {
	if s, ok := activationNames[a]; ok {
		return s
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

// ParseActivation maps a config tag to its Activation kind.
func ParseActivation(s string) (Activation, error) {
	for a, name := range activationNames {
		if name == s {
			return a, nil
		}
	}
	return Identity, fmt.Errorf("nn: unknown activation %q", s)
}

// pair holds the scalar forward function and its derivative with respect to
// the pre-activation value. Softmax is vector-valued and is not in the table;
// applySoftmax handles it.
type pair struct {
	fn    func(float64) float64
	deriv func(float64) float64
}

var activationTable = map[Activation]pair{
	Identity: {
		fn:    func(x float64) float64 { return x },
		deriv: func(x float64) float64 { return 1 },
	},
	Sigmoid: {
		fn: sigmoid,
		deriv: func(x float64) float64 {
			s := sigmoid(x)
			return s * (1 - s)
		},
	},
	ReLU: {
		fn: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		deriv: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	Tanh: {
		fn: math.Tanh,
		deriv: func(x float64) float64 {
			t := math.Tanh(x)
			return 1 - t*t
		},
	},
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// activate applies the activation kind to the pre-activation vector.
func activate(a Activation, pre []float64) []float64 {
	if a == Softmax {
		return applySoftmax(pre)
	}
	p := activationTable[a]
	out := make([]float64, len(pre))
	for i, v := range pre {
		out[i] = p.fn(v)
	}
	return out
}

// derivative returns d(activation)/d(pre) element-wise. Softmax never goes
// through here: its output delta is formed jointly with cross-entropy.
func derivative(a Activation, pre []float64) []float64 {
	p := activationTable[a]
	out := make([]float64, len(pre))
	for i, v := range pre {
		out[i] = p.deriv(v)
	}
	return out
}

// applySoftmax computes a numerically stable softmax over the whole vector.
func applySoftmax(pre []float64) []float64 {
	maxv := pre[0]
	for _, v := range pre {
		if v > maxv {
			maxv = v
		}
	}
	out := make([]float64, len(pre))
	sum := 0.0
	for i, v := range pre {
		e := math.Exp(v - maxv)
		out[i] = e
		sum += e
	}
	inv := 1 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}
