package nn

import "fmt"

// TopologyError reports an unusable topology at generation time.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return "nn: invalid topology: " + e.Reason
}

// DivergenceError reports a non-finite loss or gradient produced during a
// training step. The step that produced it must never be applied.
type DivergenceError struct {
	Where string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("nn: non-finite value in %s", e.Where)
}
