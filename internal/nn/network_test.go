package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"neuroforge/internal/matrix"
)

func testTopology() Topology {
	return Topology{Layers: []LayerSpec{
		{Width: 3},
		{Width: 4, Activation: ReLU},
		{Width: 2, Activation: Sigmoid},
	}}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(testTopology(), rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(testTopology(), rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("same seed and topology produced different initial weights")
	}

	c, _ := Generate(testTopology(), rand.New(rand.NewSource(12)))
	if a.Equal(c) {
		t.Fatal("different seeds produced identical weights")
	}
}

func TestGenerateInvalidTopology(t *testing.T) {
	cases := []Topology{
		{},
		{Layers: []LayerSpec{{Width: 3}}},
		{Layers: []LayerSpec{{Width: 3}, {Width: 0, Activation: ReLU}}},
		{Layers: []LayerSpec{{Width: 3}, {Width: -1, Activation: ReLU}}},
		{Layers: []LayerSpec{{Width: 3}, {Width: 2, Activation: Softmax}, {Width: 2, Activation: Sigmoid}}},
	}
	for i, topo := range cases {
		_, err := Generate(topo, rand.New(rand.NewSource(1)))
		var topoErr *TopologyError
		if !errors.As(err, &topoErr) {
			t.Fatalf("case %d: expected TopologyError, got %v", i, err)
		}
	}
}

func TestNetworkShapeAccessors(t *testing.T) {
	net, err := Generate(testTopology(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if net.InputSize() != 3 || net.OutputSize() != 2 {
		t.Fatalf("sizes %d/%d", net.InputSize(), net.OutputSize())
	}
	if net.OutputActivation() != Sigmoid {
		t.Fatalf("output activation %v", net.OutputActivation())
	}
	topo := net.Topology()
	if len(topo.Layers) != 3 || topo.Layers[1].Width != 4 || topo.Layers[1].Activation != ReLU {
		t.Fatalf("reconstructed topology %+v", topo)
	}
}

func TestFromLayersWidthMismatch(t *testing.T) {
	l1 := &Layer{W: matrix.New(4, 3), B: make([]float64, 4), Act: ReLU}
	l2 := &Layer{W: matrix.New(2, 5), B: make([]float64, 2), Act: Sigmoid}
	_, err := FromLayers([]*Layer{l1, l2})
	var topoErr *TopologyError
	if !errors.As(err, &topoErr) {
		t.Fatalf("expected TopologyError, got %v", err)
	}
}

func TestForwardZeroNetwork(t *testing.T) {
	// Zero weights and biases: every output must equal activation(0).
	layers := []*Layer{
		{W: matrix.New(4, 2), B: make([]float64, 4), Act: Tanh},
		{W: matrix.New(3, 4), B: make([]float64, 3), Act: Sigmoid},
	}
	net, err := FromLayers(layers)
	if err != nil {
		t.Fatalf("fromlayers: %v", err)
	}
	for _, input := range [][]float64{{0, 0}, {1, -1}, {123.5, -7}} {
		out, err := net.Forward(input)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		for i, v := range out {
			if math.Abs(v-0.5) > 1e-12 {
				t.Fatalf("input %v output[%d] = %g, want sigmoid(0)=0.5", input, i, v)
			}
		}
	}
}

func TestForwardInputSizeMismatch(t *testing.T) {
	net, _ := Generate(testTopology(), rand.New(rand.NewSource(1)))
	if _, err := net.Forward([]float64{1, 2}); err == nil {
		t.Fatal("expected shape error for short input")
	}
}

func TestCloneIsDeep(t *testing.T) {
	net, _ := Generate(testTopology(), rand.New(rand.NewSource(5)))
	clone := net.Clone()
	if !net.Equal(clone) {
		t.Fatal("clone differs from original")
	}
	clone.Layers()[0].W.Set(0, 0, 99)
	clone.Layers()[0].B[0] = 99
	if net.Equal(clone) {
		t.Fatal("mutating clone changed original")
	}
}
