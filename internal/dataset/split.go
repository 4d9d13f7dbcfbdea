package dataset

import (
	"fmt"
	"math/rand"
)

// Splits assigns every dataset row to exactly one of the three subsets.
type Splits struct {
	Train      []int
	Validation []int
	Test       []int
}

// Split partitions the rows into train/validation/test subsets using a
// permutation seeded from seed. The assignment is deterministic for a given
// seed and fractions, and the three subsets are disjoint and cover all rows.
func (d *Dataset) Split(seed int64, validationFrac, testFrac float64) (Splits, error) {
	if validationFrac < 0 || testFrac < 0 || validationFrac+testFrac >= 1 {
		return Splits{}, fmt.Errorf("dataset: invalid split fractions validation=%g test=%g", validationFrac, testFrac)
	}
	n := d.Rows()
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	nVal := int(float64(n) * validationFrac)
	nTest := int(float64(n) * testFrac)
	nTrain := n - nVal - nTest

	s := Splits{
		Train:      append([]int(nil), perm[:nTrain]...),
		Validation: append([]int(nil), perm[nTrain:nTrain+nVal]...),
		Test:       append([]int(nil), perm[nTrain+nVal:]...),
	}
	return s, nil
}

// Batches is a finite, restartable plan of row-index groups over one split.
// The tail batch may be shorter than the batch size; it is never dropped.
type Batches struct {
	rows []int
	size int
	next int
}

// NewBatches builds a batch plan over the given row indices.
func NewBatches(rows []int, size int) (*Batches, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be > 0 (got %d)", size)
	}
	return &Batches{rows: append([]int(nil), rows...), size: size}, nil
}

// Next returns the next batch of row indices, or false when the epoch's
// batches are exhausted. The returned slice aliases the plan's row order and
// must not be mutated.
func (b *Batches) Next() ([]int, bool) {
	if b.next >= len(b.rows) {
		return nil, false
	}
	end := b.next + b.size
	if end > len(b.rows) {
		end = len(b.rows)
	}
	batch := b.rows[b.next:end]
	b.next = end
	return batch, true
}

// Reset restarts the plan for a new epoch.
func (b *Batches) Reset() { b.next = 0 }

// Shuffle reorders the plan's rows using the supplied generator and restarts
// it. Passing the same generator state reproduces the same order.
func (b *Batches) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(b.rows), func(i, j int) {
		b.rows[i], b.rows[j] = b.rows[j], b.rows[i]
	})
	b.next = 0
}

// Count returns the number of batches in one full pass.
func (b *Batches) Count() int {
	return (len(b.rows) + b.size - 1) / b.size
}

// Len returns the number of rows covered by the plan.
func (b *Batches) Len() int { return len(b.rows) }
