package graph

import "fmt"

// ErrBudgetExceeded is returned when the number of a step's edges that
// survive filtering exceeds Policy.MaxEdgesPerStep.
var ErrBudgetExceeded = fmt.Errorf("edge budget exceeded")

// Policy is the set of ingress filters the core applies to
// analyzer-proposed edges before they're allowed into an EdgeBatch.
type Policy struct {
	MinConfidence   Confidence
	MaxEdgesPerStep int
}

// DefaultPolicy matches the retrieval pipeline's own
// retrieval.Config MinEdgeConfidence default.
var DefaultPolicy = Policy{
	MinConfidence:   ConfidenceMedium,
	MaxEdgesPerStep: 500,
}

// referencedInStep reports whether an edge is cited from a decision or
// note artifact observed in the same step, the one exemption that lets
// a low-confidence edge survive filtering.
type referencedInStep func(e Edge) bool

// Apply filters proposed edges: it drops those with evidence.tool or
// confidence unset, drops low-confidence edges unless referencedInStep
// says otherwise, and fails the whole step with ErrBudgetExceeded if
// too many edges remain.
func (p Policy) Apply(proposed []Edge, referenced referencedInStep) ([]Edge, error) {
	if referenced == nil {
		referenced = func(Edge) bool { return false }
	}

	kept := make([]Edge, 0, len(proposed))
	for _, e := range proposed {
		if e.Evidence.Tool == "" || e.Evidence.Confidence == 0 {
			continue
		}
		if e.Evidence.Confidence < p.MinConfidence && !referenced(e) {
			continue
		}
		kept = append(kept, e)
	}

	if p.MaxEdgesPerStep > 0 && len(kept) > p.MaxEdgesPerStep {
		return nil, fmt.Errorf("%w: %d edges exceeds cap of %d", ErrBudgetExceeded, len(kept), p.MaxEdgesPerStep)
	}
	return kept, nil
}
