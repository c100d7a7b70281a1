package scoring

import (
	"fmt"

	"github.com/haoqf/nightowl/internal/contracts"
)

// GateDecision is the strength gate's verdict on a pick list
type GateDecision struct {
	AllowNew           bool
	ExposureMultiplier float64
	Note               string
}

// StrengthGate protects against the ranking trap: when even the top
// pick is weak, new positions are blocked and exposure halved.
type StrengthGate struct {
	MinFinalScore float64
}

// NewStrengthGate creates a gate with the given minimum top score
func NewStrengthGate(minFinalScore float64) *StrengthGate {
	return &StrengthGate{MinFinalScore: minFinalScore}
}

// Evaluate inspects the picks (ordered by rank_final ascending) and
// decides whether new positions may open.
func (g *StrengthGate) Evaluate(picks []contracts.Pick) GateDecision {
	if len(picks) == 0 {
		return GateDecision{AllowNew: true, ExposureMultiplier: 1.0, Note: "no picks"}
	}

	top := picks[0]
	for _, p := range picks[1:] {
		if p.RankFinal < top.RankFinal {
			top = p
		}
	}

	if top.Score < g.MinFinalScore {
		return GateDecision{
			AllowNew:           false,
			ExposureMultiplier: 0.5,
			Note:               fmt.Sprintf("top final_score=%.4f < %.4f", top.Score, g.MinFinalScore),
		}
	}

	return GateDecision{
		AllowNew:           true,
		ExposureMultiplier: 1.0,
		Note:               fmt.Sprintf("top final_score=%.4f ok", top.Score),
	}
}
