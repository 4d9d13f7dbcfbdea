// Package trainer orchestrates epochs and batches across a fixed worker
// pool, aggregates gradients, reports progress and persists checkpoints.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"neuroforge/internal/checkpoint"
	"neuroforge/internal/dataset"
	"neuroforge/internal/eval"
	"neuroforge/internal/metrics"
	"neuroforge/internal/nn"
	"neuroforge/internal/optimizer"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Dataset        *dataset.Dataset
	Splits         dataset.Splits
	Topology       nn.Topology
	CheckpointPath string

	LearningRate    float64
	Epochs          int
	BatchSize       int
	Workers         int
	Seed            int64
	Optimizer       string
	CheckpointEvery int
	Tolerance       float64
	ShowProgress    bool
}

// Trainer drives one training run through its state machine:
// Idle → Initializing → RunningEpoch ↔ Checkpointing → Completed | Failed.
type Trainer struct {
	cfg   RunConfig
	state atomic.Int32

	net         *nn.Network
	rule        optimizer.Rule
	loadedEpoch int
}

// New returns an Idle trainer for the given run.
func New(cfg RunConfig) *Trainer {
	return &Trainer{cfg: cfg}
}

// State returns the current phase. Safe to call from other goroutines.
func (t *Trainer) State() State { return State(t.state.Load()) }

func (t *Trainer) setState(s State) { t.state.Store(int32(s)) }

// Network returns the trained network. Valid once Run has returned nil.
func (t *Trainer) Network() *nn.Network { return t.net }

// Run executes the training workload. It loads the checkpoint if one exists,
// otherwise generates a fresh network from the configured topology, then
// trains for the configured number of epochs and leaves a final checkpoint
// behind. Structural errors are returned immediately; a non-finite loss is
// recovered once by rolling back to the last checkpoint and halving the
// learning rate.
func (t *Trainer) Run(ctx context.Context) error {
	if err := t.initialize(); err != nil {
		t.setState(Failed)
		return err
	}

	batches, err := dataset.NewBatches(t.cfg.Splits.Train, t.cfg.BatchSize)
	if err != nil {
		t.setState(Failed)
		return err
	}

	var bar *progressbar.ProgressBar
	if t.cfg.ShowProgress {
		bar = progressbar.NewOptions(t.cfg.Epochs,
			progressbar.OptionSetDescription("training"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
		)
	}

	recovered := false
	epoch := t.startEpoch()
	for epoch < t.cfg.Epochs {
		select {
		case <-ctx.Done():
			t.setState(Failed)
			return ctx.Err()
		default:
		}

		t.setState(RunningEpoch)
		// One deterministic shuffle per epoch, derived from the run seed.
		batches.Shuffle(rand.New(rand.NewSource(t.cfg.Seed + int64(epoch) + 1)))

		snap, err := t.runEpoch(ctx, batches)
		if err != nil {
			var div *nn.DivergenceError
			if errors.As(err, &div) && !recovered {
				recovered = true
				if rerr := t.rollback(); rerr != nil {
					t.setState(Failed)
					return fmt.Errorf("trainer: rollback after divergence: %w", rerr)
				}
				epoch = t.startEpoch()
				log.Printf("epoch=%d divergence=%q action=rollback lr=%g", epoch, div.Where, t.rule.LearningRate())
				continue
			}
			t.setState(Failed)
			return err
		}

		epoch++
		valMetrics, err := eval.EvaluateNetwork(t.net, t.cfg.Dataset, t.cfg.Splits.Validation, t.cfg.Tolerance)
		if err != nil {
			t.setState(Failed)
			return err
		}
		log.Printf("epoch=%d train_loss=%.4f train_acc=%.2f val_loss=%.4f val_acc=%.2f rows_per_sec=%.0f",
			epoch, snap.Loss, snap.Accuracy, valMetrics.Loss, valMetrics.Accuracy, snap.RowsPerSec)
		if bar != nil {
			bar.Describe(fmt.Sprintf("epoch %d loss=%.4f acc=%.2f%%", epoch, snap.Loss, snap.Accuracy))
			_ = bar.Add(1)
		}

		if epoch%t.cfg.CheckpointEvery == 0 || epoch == t.cfg.Epochs {
			t.setState(Checkpointing)
			if err := t.persist(epoch); err != nil {
				t.setState(Failed)
				return err
			}
		}
	}

	t.setState(Completed)
	return nil
}

// startEpoch is the number of epochs already absorbed into the network.
func (t *Trainer) startEpoch() int {
	return t.loadedEpoch
}

func (t *Trainer) initialize() error {
	t.setState(Initializing)
	snap, err := checkpoint.Load(t.cfg.CheckpointPath)
	switch {
	case err == nil:
		return t.restore(snap)
	case errors.Is(err, checkpoint.ErrNotFound), errors.Is(err, checkpoint.ErrCorrupt):
		// Recoverable for training: fall back to fresh initialization.
		if errors.Is(err, checkpoint.ErrCorrupt) {
			log.Printf("checkpoint=%s corrupt=true action=reinitialize", t.cfg.CheckpointPath)
		}
		rng := rand.New(rand.NewSource(t.cfg.Seed))
		net, gerr := nn.Generate(t.cfg.Topology, rng)
		if gerr != nil {
			return gerr
		}
		rule, oerr := optimizer.New(t.cfg.Optimizer, t.cfg.LearningRate)
		if oerr != nil {
			return oerr
		}
		t.net, t.rule, t.loadedEpoch = net, rule, 0
		// The initial checkpoint is the rollback point for the first epochs.
		return t.persist(0)
	default:
		return err
	}
}

func (t *Trainer) restore(snap *checkpoint.Snapshot) error {
	net, err := snap.Network()
	if err != nil {
		return err
	}
	rule, err := optimizer.FromState(snap.Optimizer, net)
	if err != nil {
		return err
	}
	t.net, t.rule, t.loadedEpoch = net, rule, snap.Epoch
	return nil
}

// rollback restores the last successfully written checkpoint and halves the
// learning rate for the retry.
func (t *Trainer) rollback() error {
	snap, err := checkpoint.Load(t.cfg.CheckpointPath)
	if err != nil {
		return err
	}
	if err := t.restore(snap); err != nil {
		return err
	}
	t.rule.SetLearningRate(t.rule.LearningRate() / 2)
	return nil
}

func (t *Trainer) persist(epoch int) error {
	snap := checkpoint.FromNetwork(t.net, epoch, t.cfg.Seed, t.rule.State())
	if err := checkpoint.Save(t.cfg.CheckpointPath, snap); err != nil {
		return err
	}
	t.loadedEpoch = epoch
	return nil
}

type batchJob struct {
	idx  int
	rows []int
}

type batchOutcome struct {
	idx     int
	res     *nn.BatchResult
	elapsed time.Duration
}

// runEpoch fans the epoch's batches out over the worker pool, aggregates the
// mean gradient and applies exactly one optimizer step at the epoch barrier.
// Workers only read the network; the single coordinator goroutine is the only
// writer, and it writes only after every worker result is in. Batches may
// complete in any order, but the reduction walks them in batch order so the
// aggregated gradient is bit-identical run to run.
func (t *Trainer) runEpoch(ctx context.Context, plan *dataset.Batches) (metrics.Snapshot, error) {
	plan.Reset()
	want := plan.Count()
	results := make([]batchOutcome, want)

	jobs := make(chan batchJob)
	outcomes := make(chan batchOutcome, t.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for idx := 0; ; idx++ {
			rows, ok := plan.Next()
			if !ok {
				return nil
			}
			select {
			case jobs <- batchJob{idx: idx, rows: rows}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	for i := 0; i < t.cfg.Workers; i++ {
		g.Go(func() error {
			for job := range jobs {
				start := time.Now()
				res, err := nn.Backprop(t.net, t.cfg.Dataset.Features, t.cfg.Dataset.Labels, job.rows, t.cfg.Tolerance)
				if err != nil {
					return err
				}
				select {
				case outcomes <- batchOutcome{idx: job.idx, res: res, elapsed: time.Since(start)}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var collectErr error
	for received := 0; received < want; received++ {
		select {
		case out := <-outcomes:
			results[out.idx] = out
		case <-gctx.Done():
			collectErr = gctx.Err()
		}
		if collectErr != nil {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return metrics.Snapshot{}, err
	}
	if collectErr != nil {
		return metrics.Snapshot{}, collectErr
	}

	agg := nn.ZeroGradients(t.net)
	var window metrics.Window
	totalRows := 0
	for _, out := range results {
		// Batch gradients are per-row averages; weight by batch size so
		// short tail batches do not dominate the epoch mean.
		out.res.Grads.Scale(float64(out.res.Rows))
		if err := agg.Accumulate(out.res.Grads); err != nil {
			return metrics.Snapshot{}, err
		}
		totalRows += out.res.Rows
		window.Record(out.res.Rows, out.res.Correct, out.res.Loss, out.elapsed)
	}
	if totalRows == 0 {
		return metrics.Snapshot{}, errors.New("trainer: empty training split")
	}

	agg.Scale(1 / float64(totalRows))
	if !agg.AllFinite() {
		return metrics.Snapshot{}, &nn.DivergenceError{Where: "aggregated gradients"}
	}
	if err := t.rule.Step(t.net, agg); err != nil {
		return metrics.Snapshot{}, err
	}
	return window.Snapshot(), nil
}
