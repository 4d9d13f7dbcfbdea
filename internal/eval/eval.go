// Package eval runs forward-pass-only inference over a dataset split: the
// evaluator aggregates metrics, the predictor emits raw per-row outputs. The
// loaded network is never mutated.
package eval

import (
	"fmt"
	"math"

	"neuroforge/internal/checkpoint"
	"neuroforge/internal/dataset"
	"neuroforge/internal/nn"
)

// Metrics aggregates forward-pass results over a split.
type Metrics struct {
	Loss           float64 // mean per-row loss
	Accuracy       float64 // percent of outputs within tolerance
	ArgmaxAccuracy float64 // percent of rows with matching argmax (softmax heads)
	Rows           int
}

// LoadNetwork reloads a checkpointed network for inference and returns it
// together with the epoch count it was trained for.
func LoadNetwork(path string) (*nn.Network, int, error) {
	snap, err := checkpoint.Load(path)
	if err != nil {
		return nil, 0, err
	}
	net, err := snap.Network()
	if err != nil {
		return nil, 0, err
	}
	return net, snap.Epoch, nil
}

// EvaluateNetwork computes aggregate metrics over the given rows. Loss
// pairing follows the network's final activation, matching training: softmax
// with cross-entropy, anything else with mean-squared-error.
func EvaluateNetwork(net *nn.Network, ds *dataset.Dataset, rows []int, tolerance float64) (Metrics, error) {
	m := Metrics{Rows: len(rows)}
	if len(rows) == 0 {
		return m, nil
	}
	useCE := net.OutputActivation() == nn.Softmax
	var correct, argmaxHits float64
	for _, r := range rows {
		out, err := net.Forward(ds.Features.Row(r))
		if err != nil {
			return Metrics{}, err
		}
		target := ds.Labels.Row(r)
		if len(out) != len(target) {
			return Metrics{}, fmt.Errorf("eval: network emits %d outputs, labels have %d columns", len(out), len(target))
		}
		rowCorrect := 0
		for i := range out {
			if useCE {
				if target[i] != 0 {
					m.Loss -= target[i] * math.Log(math.Max(out[i], 1e-15))
				}
			} else {
				e := out[i] - target[i]
				m.Loss += e * e
			}
			if math.Abs(out[i]-target[i]) < tolerance {
				rowCorrect++
			}
		}
		correct += float64(rowCorrect) / float64(len(out))
		if argmax(out) == argmax(target) {
			argmaxHits++
		}
	}
	m.Loss /= float64(len(rows))
	m.Accuracy = correct / float64(len(rows)) * 100
	m.ArgmaxAccuracy = argmaxHits / float64(len(rows)) * 100
	return m, nil
}

// PredictNetwork returns the raw network output for each of the given rows,
// in order.
func PredictNetwork(net *nn.Network, ds *dataset.Dataset, rows []int) ([][]float64, error) {
	out := make([][]float64, 0, len(rows))
	for _, r := range rows {
		pred, err := net.Forward(ds.Features.Row(r))
		if err != nil {
			return nil, err
		}
		out = append(out, pred)
	}
	return out, nil
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
