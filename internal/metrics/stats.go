package metrics

import "time"

// Window accumulates training stats across the batches of one epoch.
type Window struct {
	rows    int
	correct float64
	loss    float64
	compute time.Duration
	batches int
}

// Record adds one batch's result to the window.
func (w *Window) Record(rows int, correct, loss float64, computeTime time.Duration) {
	w.rows += rows
	w.correct += correct
	w.loss += loss
	w.compute += computeTime
	w.batches++
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Batches: w.batches}
	if w.rows > 0 {
		snap.Loss = w.loss / float64(w.rows)
		snap.Accuracy = w.correct / float64(w.rows) * 100
	}
	if w.compute > 0 {
		snap.RowsPerSec = float64(w.rows) / w.compute.Seconds()
	}

	w.rows = 0
	w.correct = 0
	w.loss = 0
	w.compute = 0
	w.batches = 0
	return snap
}

// Snapshot represents loggable per-epoch metrics.
type Snapshot struct {
	Loss       float64
	Accuracy   float64
	RowsPerSec float64
	Batches    int
}
