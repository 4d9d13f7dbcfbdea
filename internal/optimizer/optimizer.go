// Package optimizer applies gradients to a network's parameters in place.
// Each rule owns whatever auxiliary state it needs (momentum velocities,
// Adam moments) for the lifetime of the network it optimizes.
package optimizer

import (
	"fmt"
	"math"

	"neuroforge/internal/matrix"
	"neuroforge/internal/nn"
)

const (
	KindSGD      = "sgd"
	KindMomentum = "momentum"
	KindAdam     = "adam"
)

// Adam and momentum constants used by the original training parameters.
const (
	momentumCoeff = 0.9
	adamBeta1     = 0.9
	adamBeta2     = 0.999
	adamEpsilon   = 1e-8
)

// Rule consumes gradients and produces in-place parameter deltas.
type Rule interface {
	Step(net *nn.Network, g *nn.Gradients) error
	LearningRate() float64
	SetLearningRate(lr float64)
	// State captures the rule for checkpointing; FromState restores it.
	State() State
}

// State is the serializable snapshot of a rule. Weight-shaped auxiliary
// buffers are stored row-major per layer.
type State struct {
	Kind string
	LR   float64
	Step int
	MW   [][]float64
	MB   [][]float64
	VW   [][]float64
	VB   [][]float64
}

// New builds a fresh rule of the given kind.
func New(kind string, lr float64) (Rule, error) {
	switch kind {
	case KindSGD, "":
		return &SGD{lr: lr}, nil
	case KindMomentum:
		return &Momentum{lr: lr, mu: momentumCoeff}, nil
	case KindAdam:
		return &Adam{lr: lr, beta1: adamBeta1, beta2: adamBeta2, eps: adamEpsilon}, nil
	default:
		return nil, fmt.Errorf("optimizer: unknown kind %q", kind)
	}
}

// FromState restores a rule from a checkpointed snapshot. The network is
// needed to reshape the flat auxiliary buffers.
func FromState(s State, net *nn.Network) (Rule, error) {
	switch s.Kind {
	case KindSGD, "":
		return &SGD{lr: s.LR}, nil
	case KindMomentum:
		m := &Momentum{lr: s.LR, mu: momentumCoeff}
		if len(s.MW) > 0 {
			vw, vb, err := reshape(net, s.MW, s.MB)
			if err != nil {
				return nil, err
			}
			m.velW, m.velB = vw, vb
		}
		return m, nil
	case KindAdam:
		a := &Adam{lr: s.LR, beta1: adamBeta1, beta2: adamBeta2, eps: adamEpsilon, t: s.Step}
		if len(s.MW) > 0 {
			mw, mb, err := reshape(net, s.MW, s.MB)
			if err != nil {
				return nil, err
			}
			vw, vb, err := reshape(net, s.VW, s.VB)
			if err != nil {
				return nil, err
			}
			a.mW, a.mB, a.vW, a.vB = mw, mb, vw, vb
		}
		return a, nil
	default:
		return nil, fmt.Errorf("optimizer: unknown kind %q in checkpoint", s.Kind)
	}
}

func reshape(net *nn.Network, flatW, flatB [][]float64) ([]*matrix.Matrix, [][]float64, error) {
	layers := net.Layers()
	if len(flatW) != len(layers) || len(flatB) != len(layers) {
		return nil, nil, fmt.Errorf("optimizer: state has %d layers, network has %d", len(flatW), len(layers))
	}
	ws := make([]*matrix.Matrix, len(layers))
	bs := make([][]float64, len(layers))
	for i, l := range layers {
		w, err := matrix.NewFromData(l.Out(), l.In(), flatW[i])
		if err != nil {
			return nil, nil, fmt.Errorf("optimizer: layer %d state: %w", i, err)
		}
		ws[i] = w
		b := make([]float64, len(flatB[i]))
		copy(b, flatB[i])
		bs[i] = b
	}
	return ws, bs, nil
}

func flatten(ws []*matrix.Matrix, bs [][]float64) ([][]float64, [][]float64) {
	fw := make([][]float64, len(ws))
	fb := make([][]float64, len(bs))
	for i := range ws {
		fw[i] = ws[i].RawData()
		fb[i] = append([]float64(nil), bs[i]...)
	}
	return fw, fb
}

// SGD is plain gradient descent: w -= lr * grad.
type SGD struct {
	lr float64
}

func (s *SGD) Step(net *nn.Network, g *nn.Gradients) error {
	for i, l := range net.Layers() {
		if err := l.W.AddScaledInPlace(-s.lr, g.W[i]); err != nil {
			return err
		}
		for j := range l.B {
			l.B[j] -= s.lr * g.B[i][j]
		}
	}
	return nil
}

func (s *SGD) LearningRate() float64      { return s.lr }
func (s *SGD) SetLearningRate(lr float64) { s.lr = lr }

func (s *SGD) State() State {
	return State{Kind: KindSGD, LR: s.lr}
}

// Momentum keeps per-parameter velocities: v = mu*v - lr*grad; w += v.
type Momentum struct {
	lr   float64
	mu   float64
	velW []*matrix.Matrix
	velB [][]float64
}

func (m *Momentum) ensure(net *nn.Network) {
	if m.velW != nil {
		return
	}
	layers := net.Layers()
	m.velW = make([]*matrix.Matrix, len(layers))
	m.velB = make([][]float64, len(layers))
	for i, l := range layers {
		m.velW[i] = matrix.New(l.Out(), l.In())
		m.velB[i] = make([]float64, l.Out())
	}
}

func (m *Momentum) Step(net *nn.Network, g *nn.Gradients) error {
	m.ensure(net)
	for i, l := range net.Layers() {
		vw := m.velW[i]
		for r := 0; r < l.Out(); r++ {
			for c := 0; c < l.In(); c++ {
				v := m.mu*vw.At(r, c) - m.lr*g.W[i].At(r, c)
				vw.Set(r, c, v)
				l.W.Set(r, c, l.W.At(r, c)+v)
			}
			v := m.mu*m.velB[i][r] - m.lr*g.B[i][r]
			m.velB[i][r] = v
			l.B[r] += v
		}
	}
	return nil
}

func (m *Momentum) LearningRate() float64      { return m.lr }
func (m *Momentum) SetLearningRate(lr float64) { m.lr = lr }

func (m *Momentum) State() State {
	s := State{Kind: KindMomentum, LR: m.lr}
	if m.velW != nil {
		s.MW, s.MB = flatten(m.velW, m.velB)
	}
	return s
}

// Adam keeps bias-corrected first and second moment estimates per parameter.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	mW    []*matrix.Matrix
	mB    [][]float64
	vW    []*matrix.Matrix
	vB    [][]float64
}

func (a *Adam) ensure(net *nn.Network) {
	if a.mW != nil {
		return
	}
	layers := net.Layers()
	a.mW = make([]*matrix.Matrix, len(layers))
	a.mB = make([][]float64, len(layers))
	a.vW = make([]*matrix.Matrix, len(layers))
	a.vB = make([][]float64, len(layers))
	for i, l := range layers {
		a.mW[i] = matrix.New(l.Out(), l.In())
		a.mB[i] = make([]float64, l.Out())
		a.vW[i] = matrix.New(l.Out(), l.In())
		a.vB[i] = make([]float64, l.Out())
	}
}

func (a *Adam) Step(net *nn.Network, g *nn.Gradients) error {
	a.ensure(net)
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, l := range net.Layers() {
		for r := 0; r < l.Out(); r++ {
			for c := 0; c < l.In(); c++ {
				grad := g.W[i].At(r, c)
				m := a.beta1*a.mW[i].At(r, c) + (1-a.beta1)*grad
				v := a.beta2*a.vW[i].At(r, c) + (1-a.beta2)*grad*grad
				a.mW[i].Set(r, c, m)
				a.vW[i].Set(r, c, v)
				l.W.Set(r, c, l.W.At(r, c)-a.lr*(m/c1)/(math.Sqrt(v/c2)+a.eps))
			}
			grad := g.B[i][r]
			m := a.beta1*a.mB[i][r] + (1-a.beta1)*grad
			v := a.beta2*a.vB[i][r] + (1-a.beta2)*grad*grad
			a.mB[i][r] = m
			a.vB[i][r] = v
			l.B[r] -= a.lr * (m / c1) / (math.Sqrt(v/c2) + a.eps)
		}
	}
	return nil
}

func (a *Adam) LearningRate() float64      { return a.lr }
func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

func (a *Adam) State() State {
	s := State{Kind: KindAdam, LR: a.lr, Step: a.t}
	if a.mW != nil {
		s.MW, s.MB = flatten(a.mW, a.mB)
		s.VW, s.VB = flatten(a.vW, a.vB)
	}
	return s
}
