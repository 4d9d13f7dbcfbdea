// Package nn holds the network representation and the forward/backward
// numerical engine.
package nn

import (
	"fmt"
	"math/rand"

	"neuroforge/internal/matrix"
)

// Weights are initialized uniformly in [-weightInitLimit, weightInitLimit).
const weightInitLimit = 0.5

// LayerSpec is one (width, activation) entry of a topology.
type LayerSpec struct {
	Width      int        `yaml:"width"`
	Activation Activation `yaml:"-"`
}

// Topology is the ordered list of layer widths and activation kinds that
// defines a network's shape. The first entry is the input width; its
// activation is ignored.
type Topology struct {
	Layers []LayerSpec
}

// Validate checks the structural invariants of the topology.
func (t Topology) Validate() error {
	if len(t.Layers) < 2 {
		return &TopologyError{Reason: fmt.Sprintf("need at least 2 layers, got %d", len(t.Layers))}
	}
	for i, l := range t.Layers {
		if l.Width <= 0 {
			return &TopologyError{Reason: fmt.Sprintf("layer %d has non-positive width %d", i, l.Width)}
		}
		if l.Activation == Softmax && i != len(t.Layers)-1 {
			return &TopologyError{Reason: fmt.Sprintf("softmax on non-final layer %d", i)}
		}
	}
	return nil
}

// InputWidth returns the width of the input layer.
func (t Topology) InputWidth() int { return t.Layers[0].Width }

// OutputWidth returns the width of the output layer.
func (t Topology) OutputWidth() int { return t.Layers[len(t.Layers)-1].Width }

// Layer is one dense layer: an out×in weight matrix, a bias vector and an
// activation kind. A Layer is owned exclusively by its Network.
type Layer struct {
	W   *matrix.Matrix
	B   []float64
	Act Activation
}

// In returns the layer's input width.
func (l *Layer) In() int { return l.W.Cols() }

// Out returns the layer's output width.
func (l *Layer) Out() int { return l.W.Rows() }

// Network is an ordered stack of dense layers. During training it is mutated
// in place by the optimizer only; workers treat it as read-only.
type Network struct {
	layers []*Layer
}

// Generate builds a network from the topology. Initial weights are drawn from
// rng, so the same seed and topology produce bit-identical networks.
func Generate(t Topology, rng *rand.Rand) (*Network, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	layers := make([]*Layer, 0, len(t.Layers)-1)
	for i := 1; i < len(t.Layers); i++ {
		in := t.Layers[i-1].Width
		out := t.Layers[i].Width
		layers = append(layers, &Layer{
			W:   matrix.NewUniform(out, in, weightInitLimit, rng),
			B:   make([]float64, out),
			Act: t.Layers[i].Activation,
		})
	}
	return &Network{layers: layers}, nil
}

// FromLayers assembles a network from already-built layers, checking that
// adjacent widths agree. Used when reloading a checkpoint.
func FromLayers(layers []*Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, &TopologyError{Reason: "no layers"}
	}
	for i := 1; i < len(layers); i++ {
		if layers[i].In() != layers[i-1].Out() {
			return nil, &TopologyError{Reason: fmt.Sprintf(
				"layer %d input width %d does not match layer %d output width %d",
				i, layers[i].In(), i-1, layers[i-1].Out())}
		}
	}
	return &Network{layers: layers}, nil
}

// Layers returns the layer stack. Callers must not mutate it during a
// training epoch.
func (n *Network) Layers() []*Layer { return n.layers }

// InputSize returns the input width of the first layer.
func (n *Network) InputSize() int { return n.layers[0].In() }

// OutputSize returns the output width of the last layer.
func (n *Network) OutputSize() int { return n.layers[len(n.layers)-1].Out() }

// OutputActivation returns the activation kind of the final layer, which
// selects the loss function pairing.
func (n *Network) OutputActivation() Activation {
	return n.layers[len(n.layers)-1].Act
}

// Topology reconstructs the shape the network was generated from.
func (n *Network) Topology() Topology {
	t := Topology{Layers: make([]LayerSpec, 0, len(n.layers)+1)}
	t.Layers = append(t.Layers, LayerSpec{Width: n.layers[0].In(), Activation: Identity})
	for _, l := range n.layers {
		t.Layers = append(t.Layers, LayerSpec{Width: l.Out(), Activation: l.Act})
	}
	return t
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	layers := make([]*Layer, len(n.layers))
	for i, l := range n.layers {
		b := make([]float64, len(l.B))
		copy(b, l.B)
		layers[i] = &Layer{W: l.W.Clone(), B: b, Act: l.Act}
	}
	return &Network{layers: layers}
}

// Equal reports whether both networks have identical shape and parameters.
func (n *Network) Equal(o *Network) bool {
	if len(n.layers) != len(o.layers) {
		return false
	}
	for i, l := range n.layers {
		ol := o.layers[i]
		if l.Act != ol.Act || !l.W.Equal(ol.W) || len(l.B) != len(ol.B) {
			return false
		}
		for j, v := range l.B {
			if ol.B[j] != v {
				return false
			}
		}
	}
	return true
}

// Forward runs a forward pass over a single input row and returns the network
// output. The network is not mutated.
func (n *Network) Forward(input []float64) ([]float64, error) {
	out := input
	for _, l := range n.layers {
		pre, err := l.W.MulVec(out)
		if err != nil {
			return nil, err
		}
		for i := range pre {
			pre[i] += l.B[i]
		}
		out = activate(l.Act, pre)
	}
	return out, nil
}
