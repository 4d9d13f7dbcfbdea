package matrix

import "fmt"

// ShapeError reports an operation whose operand dimensions are incompatible.
// Operations never truncate or broadcast to make shapes fit.
type ShapeError struct {
	Op           string
	ARows, ACols int
	BRows, BCols int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("matrix: shape mismatch in %s: %dx%d vs %dx%d", e.Op, e.ARows, e.ACols, e.BRows, e.BCols)
}
