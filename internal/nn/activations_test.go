package nn

import (
	"math"
	"testing"
)

func TestParseActivationRoundTrip(t *testing.T) {
	for _, a := range []Activation{Identity, Sigmoid, ReLU, Tanh, Softmax} {
		parsed, err := ParseActivation(a.String())
		if err != nil {
			t.Fatalf("parse %q: %v", a, err)
		}
		if parsed != a {
			t.Fatalf("round trip %q: got %q", a, parsed)
		}
	}
	if _, err := ParseActivation("swish"); err == nil {
		t.Fatal("unknown activation accepted")
	}
}

func TestActivationValues(t *testing.T) {
	in := []float64{-1, 0, 2}

	relu := activate(ReLU, in)
	if relu[0] != 0 || relu[1] != 0 || relu[2] != 2 {
		t.Fatalf("relu: %v", relu)
	}
	dRelu := derivative(ReLU, in)
	if dRelu[0] != 0 || dRelu[2] != 1 {
		t.Fatalf("relu derivative: %v", dRelu)
	}

	sig := activate(Sigmoid, []float64{0})
	if math.Abs(sig[0]-0.5) > 1e-12 {
		t.Fatalf("sigmoid(0) = %g", sig[0])
	}
	dSig := derivative(Sigmoid, []float64{0})
	if math.Abs(dSig[0]-0.25) > 1e-12 {
		t.Fatalf("sigmoid'(0) = %g", dSig[0])
	}

	tanh := activate(Tanh, []float64{0})
	if tanh[0] != 0 {
		t.Fatalf("tanh(0) = %g", tanh[0])
	}
	dTanh := derivative(Tanh, []float64{0})
	if math.Abs(dTanh[0]-1) > 1e-12 {
		t.Fatalf("tanh'(0) = %g", dTanh[0])
	}

	ident := activate(Identity, in)
	for i := range in {
		if ident[i] != in[i] {
			t.Fatalf("identity changed input: %v", ident)
		}
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	out := activate(Softmax, []float64{1, 2, 3, 1000})
	sum := 0.0
	for _, v := range out {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("softmax value out of range: %v", out)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("softmax sums to %g", sum)
	}
	if out[3] < 0.99 {
		t.Fatalf("dominant logit not dominant: %v", out)
	}
}
