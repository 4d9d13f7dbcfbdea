package nn

import (
	"math"

	"neuroforge/internal/matrix"
)

// Gradients holds per-layer loss gradients with the same shapes as the
// network's weights and biases.
type Gradients struct {
	W []*matrix.Matrix
	B [][]float64
}

// ZeroGradients allocates a zeroed gradient set matching the network.
func ZeroGradients(n *Network) *Gradients {
	g := &Gradients{
		W: make([]*matrix.Matrix, len(n.layers)),
		B: make([][]float64, len(n.layers)),
	}
	for i, l := range n.layers {
		g.W[i] = matrix.New(l.Out(), l.In())
		g.B[i] = make([]float64, l.Out())
	}
	return g
}

// Accumulate adds other into g element-wise.
func (g *Gradients) Accumulate(other *Gradients) error {
	for i := range g.W {
		if err := g.W[i].AddScaledInPlace(1, other.W[i]); err != nil {
			return err
		}
		for j := range g.B[i] {
			g.B[i][j] += other.B[i][j]
		}
	}
	return nil
}

// Scale multiplies every gradient entry by s.
func (g *Gradients) Scale(s float64) {
	for i := range g.W {
		g.W[i] = g.W[i].Scale(s)
		for j := range g.B[i] {
			g.B[i][j] *= s
		}
	}
}

// AllFinite reports whether every gradient entry is a finite number.
func (g *Gradients) AllFinite() bool {
	for i := range g.W {
		if !g.W[i].AllFinite() {
			return false
		}
		for _, v := range g.B[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// BatchResult is one batch's averaged gradients plus its running statistics.
type BatchResult struct {
	Grads   *Gradients
	Loss    float64 // sum of per-row losses
	Correct float64 // sum of per-row correct-output fractions
	Rows    int
}

// Backprop runs forward and backward passes for the given rows of the
// feature/label matrices against a read-only network and returns gradients
// averaged over the batch. Loss pairing follows the final activation: softmax
// with cross-entropy, everything else with mean-squared-error. tolerance is
// the per-output absolute tolerance used for accuracy accounting.
//
// A non-finite loss or gradient yields a *DivergenceError and no usable
// result.
func Backprop(n *Network, features, labels *matrix.Matrix, rows []int, tolerance float64) (*BatchResult, error) {
	if features.Cols() != n.InputSize() {
		return nil, &matrix.ShapeError{Op: "backprop-features", ARows: features.Rows(), ACols: features.Cols(), BRows: n.InputSize(), BCols: 1}
	}
	if labels.Cols() != n.OutputSize() {
		return nil, &matrix.ShapeError{Op: "backprop-labels", ARows: labels.Rows(), ACols: labels.Cols(), BRows: n.OutputSize(), BCols: 1}
	}
	res := &BatchResult{Grads: ZeroGradients(n), Rows: len(rows)}
	useCE := n.OutputActivation() == Softmax

	for _, r := range rows {
		input := features.Row(r)
		target := labels.Row(r)

		// Forward, retaining pre-activations and activations per layer.
		pres := make([][]float64, len(n.layers))
		acts := make([][]float64, len(n.layers)+1)
		acts[0] = input
		cur := input
		for li, l := range n.layers {
			pre, err := l.W.MulVec(cur)
			if err != nil {
				return nil, err
			}
			for i := range pre {
				pre[i] += l.B[i]
			}
			pres[li] = pre
			cur = activate(l.Act, pre)
			acts[li+1] = cur
		}
		out := acts[len(n.layers)]

		// Loss and output delta (gradient of the loss wrt the final
		// pre-activation).
		last := len(n.layers) - 1
		delta := make([]float64, len(out))
		if useCE {
			for i := range out {
				p := out[i]
				if target[i] != 0 {
					res.Loss -= target[i] * math.Log(math.Max(p, 1e-15))
				}
				delta[i] = p - target[i]
			}
		} else {
			dAct := derivative(n.layers[last].Act, pres[last])
			for i := range out {
				err := out[i] - target[i]
				res.Loss += err * err
				delta[i] = 2 * err * dAct[i]
			}
		}

		correct := 0
		for i := range out {
			if math.Abs(out[i]-target[i]) < tolerance {
				correct++
			}
		}
		res.Correct += float64(correct) / float64(len(out))

		// Backward, layer by layer in reverse, using the retained values.
		for li := last; li >= 0; li-- {
			l := n.layers[li]
			in := acts[li]
			gW := res.Grads.W[li]
			for i := 0; i < l.Out(); i++ {
				res.Grads.B[li][i] += delta[i]
				for j := 0; j < l.In(); j++ {
					gW.Set(i, j, gW.At(i, j)+delta[i]*in[j])
				}
			}
			if li == 0 {
				break
			}
			// delta for the previous layer: (W^T · delta) ⊙ act'(pre).
			prev := make([]float64, l.In())
			for j := 0; j < l.In(); j++ {
				sum := 0.0
				for i := 0; i < l.Out(); i++ {
					sum += l.W.At(i, j) * delta[i]
				}
				prev[j] = sum
			}
			dAct := derivative(n.layers[li-1].Act, pres[li-1])
			for j := range prev {
				prev[j] *= dAct[j]
			}
			delta = prev
		}
	}

	// Average over the batch so batch size does not change step scale.
	if res.Rows > 0 {
		res.Grads.Scale(1 / float64(res.Rows))
	}
	if math.IsNaN(res.Loss) || math.IsInf(res.Loss, 0) {
		return nil, &DivergenceError{Where: "loss"}
	}
	if !res.Grads.AllFinite() {
		return nil, &DivergenceError{Where: "gradients"}
	}
	return res, nil
}
