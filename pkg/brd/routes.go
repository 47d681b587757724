package brd

import "github.com/randalmurphal/brdflow/pkg/flowgraph"

// GapBranch routes after the gap checkpoint. Without gaps, or when the
// person chose to generate anyway, the run proceeds to outlining; otherwise
// it returns to fact extraction with whatever inputs were added.
func GapBranch(_ flowgraph.Context, s State) string {
	if !s.HasGaps() || s.ForceGenerate {
		return NodeOutlineBuilder
	}
	return NodeFactExtractor
}

// ReviewBranch routes after document review.
func ReviewBranch(_ flowgraph.Context, s State) string {
	if s.Approved {
		return NodePersistDoc
	}
	return NodeApplyFeedback
}
