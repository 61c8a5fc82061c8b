package state

import (
	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// HealthAssessor derives the Good|Fair|Poor|VeryPoor label from a window of
// recent Decisions. The label feeds the pair finder's performance profile
// and the evaluator's emergency-mode relaxation.
type HealthAssessor struct {
	// SpeedBudgetMS scales the speed score: it falls linearly from 100 at
	// zero latency to 0 at 3x the budget (about 67 at the budget itself).
	SpeedBudgetMS int64
}

// DefaultHealthAssessor returns an assessor tuned to a 2-second tick budget.
func DefaultHealthAssessor() HealthAssessor {
	return HealthAssessor{SpeedBudgetMS: 2000}
}

// Assess blends accuracy (success rate), efficiency (realized vs predicted
// net pnl) and speed (decision latency) into one health label.
func (a HealthAssessor) Assess(history []Decision) model.PortfolioHealth {
	if len(history) == 0 {
		return model.HealthGood // no evidence of trouble yet
	}

	accuracy := a.accuracyScore(history)
	efficiency := a.efficiencyScore(history)
	speed := a.speedScore(history)

	blend := 0.5*accuracy + 0.3*efficiency + 0.2*speed

	switch {
	case blend >= 80:
		return model.HealthGood
	case blend >= 60:
		return model.HealthFair
	case blend >= 35:
		return model.HealthPoor
	default:
		return model.HealthVeryPoor
	}
}

func (a HealthAssessor) accuracyScore(history []Decision) float64 {
	var successes int
	for _, d := range history {
		if d.Success {
			successes++
		}
	}
	return 100 * float64(successes) / float64(len(history))
}

func (a HealthAssessor) efficiencyScore(history []Decision) float64 {
	var total float64
	scored := 0
	for _, d := range history {
		if d.PredictedNetPnL == 0 {
			continue
		}
		scored++
		drift := d.RealizedNetPnL - d.PredictedNetPnL
		if drift < 0 {
			drift = -drift
		}
		ratio := drift / absFloat(d.PredictedNetPnL)
		score := 100 - 100*ratio
		if score < 0 {
			score = 0
		}
		total += score
	}
	if scored == 0 {
		return 100
	}
	return total / float64(len(history))
}

func (a HealthAssessor) speedScore(history []Decision) float64 {
	budget := a.SpeedBudgetMS
	if budget <= 0 {
		budget = 2000
	}
	var total float64
	for _, d := range history {
		ratio := float64(d.LatencyMS) / float64(budget)
		score := 100 * (1 - ratio/3)
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		total += score
	}
	return total / float64(len(history))
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
