// Package checkpoint persists network snapshots. Writes happen under an
// exclusive advisory lock to a temporary file that is atomically renamed over
// the checkpoint, so a concurrent reader sees either the old or the new file,
// never a partial one.
package checkpoint

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"neuroforge/internal/matrix"
	"neuroforge/internal/nn"
	"neuroforge/internal/optimizer"
)

var (
	// ErrNotFound reports a missing checkpoint file.
	ErrNotFound = errors.New("checkpoint: not found")
	// ErrCorrupt reports a checkpoint that exists but cannot be decoded.
	ErrCorrupt = errors.New("checkpoint: corrupt")
	// ErrLocked reports that the advisory lock could not be acquired within
	// the bounded backoff window.
	ErrLocked = errors.New("checkpoint: lock contention")
)

// How long lock acquisition is retried before giving up, and the retry
// interval.
const (
	lockTimeout = 10 * time.Second
	lockRetry   = 50 * time.Millisecond
)

// LayerRecord is the serialized form of one dense layer.
type LayerRecord struct {
	In, Out    int
	Activation string
	Weights    []float64 // row-major, Out×In
	Biases     []float64
}

// Snapshot is the serialized record of a network plus training metadata. It
// round-trips exactly: Load(Save(s)) restores identical parameters.
type Snapshot struct {
	Epoch     int
	Seed      int64
	Optimizer optimizer.State
	Layers    []LayerRecord
}

// FromNetwork captures a snapshot of the network and training state.
func FromNetwork(net *nn.Network, epoch int, seed int64, opt optimizer.State) *Snapshot {
	s := &Snapshot{Epoch: epoch, Seed: seed, Optimizer: opt}
	for _, l := range net.Layers() {
		s.Layers = append(s.Layers, LayerRecord{
			In:         l.In(),
			Out:        l.Out(),
			Activation: l.Act.String(),
			Weights:    l.W.RawData(),
			Biases:     append([]float64(nil), l.B...),
		})
	}
	return s
}

// Network rebuilds the network stored in the snapshot.
func (s *Snapshot) Network() (*nn.Network, error) {
	layers := make([]*nn.Layer, 0, len(s.Layers))
	for i, rec := range s.Layers {
		act, err := nn.ParseActivation(rec.Activation)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d: %v", ErrCorrupt, i, err)
		}
		w, err := matrix.NewFromData(rec.Out, rec.In, rec.Weights)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d: %v", ErrCorrupt, i, err)
		}
		if len(rec.Biases) != rec.Out {
			return nil, fmt.Errorf("%w: layer %d: %d biases for width %d", ErrCorrupt, i, len(rec.Biases), rec.Out)
		}
		layers = append(layers, &nn.Layer{
			W:   w,
			B:   append([]float64(nil), rec.Biases...),
			Act: act,
		})
	}
	net, err := nn.FromLayers(layers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return net, nil
}

func lockPath(path string) string { return path + ".lock" }

func acquire(path string, exclusive bool) (*flock.Flock, error) {
	fl := flock.New(lockPath(path))
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, lockRetry)
	} else {
		ok, err = fl.TryRLockContext(ctx, lockRetry)
	}
	if err != nil || !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("checkpoint: lock %s: %w", path, err)
	}
	return fl, nil
}

// Save writes the snapshot atomically under an exclusive advisory lock. The
// lock is held only for the duration of the write, never across an epoch.
func Save(path string, s *Snapshot) error {
	fl, err := acquire(path, true)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// Load reads a snapshot under a shared advisory lock. A reader that finds
// the lock held by an in-progress write simply waits for it.
func Load(path string) (*Snapshot, error) {
	fl, err := acquire(path, false)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return &s, nil
}
