package planner

import "github.com/alecKarfonta/graphrag/internal/domain"

// weightRow is the per-intent strategy mix before entity adjustments.
type weightRow struct {
	vector, graphW, keyword float64
	reasoning               domain.ReasoningKind
}

var weightTable = map[domain.Intent]weightRow{
	domain.IntentFactual:     {vector: 0.60, graphW: 0.25, keyword: 0.15, reasoning: domain.ReasoningNone},
	domain.IntentComparative: {vector: 0.35, graphW: 0.45, keyword: 0.20, reasoning: domain.ReasoningComparative},
	domain.IntentCausal:      {vector: 0.25, graphW: 0.55, keyword: 0.20, reasoning: domain.ReasoningCausal},
	domain.IntentAnalytical:  {vector: 0.50, graphW: 0.35, keyword: 0.15, reasoning: domain.ReasoningMultiHop},
	domain.IntentTemporal:    {vector: 0.40, graphW: 0.40, keyword: 0.20, reasoning: domain.ReasoningMultiHop},
	domain.IntentProcedural:  {vector: 0.55, graphW: 0.25, keyword: 0.20, reasoning: domain.ReasoningNone},
}

// components applies the known-entity adjustments: two or more known
// entities shift 0.1 vector→graph, zero known entities drop the graph
// strategy and renormalize the rest.
func (w weightRow) components(knownEntities int) []domain.StrategyComponent {
	vector, graphW, keyword := w.vector, w.graphW, w.keyword

	switch {
	case knownEntities == 0:
		total := vector + keyword
		if total > 0 {
			vector /= total
			keyword /= total
		}
		graphW = 0
	case knownEntities >= 2:
		shift := 0.1
		if vector < shift {
			shift = vector
		}
		vector -= shift
		graphW += shift
	}

	var out []domain.StrategyComponent
	if vector > 0 {
		out = append(out, domain.StrategyComponent{Kind: domain.StrategyVector, Weight: vector})
	}
	if graphW > 0 {
		out = append(out, domain.StrategyComponent{Kind: domain.StrategyGraph, Weight: graphW})
	}
	if keyword > 0 {
		out = append(out, domain.StrategyComponent{Kind: domain.StrategyKeyword, Weight: keyword})
	}
	return out
}

// complexity derives the plan complexity and hop budget from known entity
// count and matched rule patterns.
func complexity(knownEntities, patternHits int, reasoning domain.ReasoningKind) (domain.Complexity, int) {
	multiHopCausal := reasoning == domain.ReasoningMultiHop || reasoning == domain.ReasoningCausal
	switch {
	case knownEntities >= 3 || (multiHopCausal && patternHits >= 2):
		return domain.ComplexityHigh, 3
	case knownEntities >= 1 || patternHits >= 2:
		return domain.ComplexityMedium, 2
	default:
		return domain.ComplexityLow, 1
	}
}
