// Package evaluator implements the Combination Evaluator: the
// single authority that turns a pool of candidates from the Hedge Pair
// Finder into at most one ClosureDecision per tick. Every hard invariant is
// checked here, never upstream — pairing's filters are cheap
// heuristics, this is the hard gate.
package evaluator

import (
	"github.com/isnooker21/huakuy-hedge-engine/internal/balance"
	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// Config carries the evaluator's own thresholds.
type Config struct {
	MinNetProfit          float64
	EmergencyMinNetProfit float64
}

// Input is everything the evaluator needs to judge one tick's candidates.
type Input struct {
	Candidates     []model.Candidate
	Scores         map[model.PositionID]model.PositionScore
	ByID           map[model.PositionID]model.Position
	PendingClosure map[model.PositionID]struct{}
	CurrentBuys    int
	CurrentSells   int
	Regime         model.MarginRegime
	Health         model.PortfolioHealth
	Cfg            Config
}

// Evaluate implements steps 1-5: filter, score, select, tie-break.
// Returns a decision with ShouldClose=false when nothing survives.
func Evaluate(in Input) model.ClosureDecision {
	threshold := in.Cfg.MinNetProfit
	if in.Regime == model.RegimeCritical || in.Health == model.HealthVeryPoor {
		threshold = in.Cfg.EmergencyMinNetProfit
	}

	var survivors []model.Candidate
	for _, c := range in.Candidates {
		if !validate(c, in, threshold) {
			continue
		}
		survivors = append(survivors, c)
	}

	if len(survivors) == 0 {
		return model.ClosureDecision{ShouldClose: false}
	}

	best := selectBest(survivors, in.Scores)
	return model.ClosureDecision{
		ShouldClose: true,
		Members:     best.Members,
		MethodLabel: best.Method,
		NetPnL:      best.NetPnL(),
		GrossPnL:    best.GrossPnL,
		Cost:        best.Cost,
		Confidence:  confidence(best, in.Scores),
	}
}

// validate implements step 1-4:
//  1. no member is already pending closure,
//  2. net pnl clears the regime-appropriate threshold,
//  3. no single-member loss closure ("never close a lone loser alone"),
//  4. closing the group must not regress portfolio balance.
func validate(c model.Candidate, in Input, threshold float64) bool {
	if len(c.Members) == 0 {
		return false
	}
	for _, id := range c.Members {
		if _, pending := in.PendingClosure[id]; pending {
			return false
		}
	}
	if c.NetPnL() < threshold {
		return false
	}
	if len(c.Members) == 1 {
		score, ok := in.Scores[c.Members[0]]
		if ok && score.TotalScore < 0 && c.GrossPnL < 0 {
			return false // a lone loser never closes alone, however the group formed
		}
	}

	closedBuys, closedSells := 0, 0
	for _, id := range c.Members {
		if p, ok := in.ByID[id]; ok {
			if p.Side == model.Buy {
				closedBuys++
			} else {
				closedSells++
			}
		}
	}
	return balance.NonRegresses(in.CurrentBuys, in.CurrentSells, closedBuys, closedSells)
}

// selectBest implements step 5: maximize net pnl, tie-break by
// average member quality, then by smaller group size.
func selectBest(candidates []model.Candidate, scores map[model.PositionID]model.PositionScore) model.Candidate {
	best := candidates[0]
	bestQuality := averageQuality(best, scores)
	for _, c := range candidates[1:] {
		q := averageQuality(c, scores)
		switch {
		case c.NetPnL() > best.NetPnL():
			best, bestQuality = c, q
		case c.NetPnL() == best.NetPnL() && q > bestQuality:
			best, bestQuality = c, q
		case c.NetPnL() == best.NetPnL() && q == bestQuality && len(c.Members) < len(best.Members):
			best, bestQuality = c, q
		}
	}
	return best
}

func averageQuality(c model.Candidate, scores map[model.PositionID]model.PositionScore) float64 {
	if len(c.Members) == 0 {
		return 0
	}
	var total float64
	for _, id := range c.Members {
		total += scores[id].TotalScore
	}
	return total / float64(len(c.Members))
}

// confidence derives a simple [0,1] confidence from how far net pnl clears
// the zero line relative to the group's cost — a group that barely clears
// its own cost is a low-confidence close.
func confidence(c model.Candidate, scores map[model.PositionID]model.PositionScore) float64 {
	if c.Cost <= 0 {
		if c.NetPnL() > 0 {
			return 1
		}
		return 0
	}
	ratio := c.NetPnL() / c.Cost
	switch {
	case ratio >= 3:
		return 1
	case ratio <= 0:
		return 0
	default:
		return ratio / 3
	}
}
