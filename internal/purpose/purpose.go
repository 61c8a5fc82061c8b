// Package purpose implements the Purpose Classifier: a pure
// function from a PortfolioSnapshot, an optional MarketAnalyzer trend
// reading, and an emergency-mode flag, to one Purpose per position.
//
// Price-unit convention: this engine fixes XAUUSD's
// pip at 0.1 price units (so a 500-pip distance is 50.0 price units). All
// pip-denominated config values (HelperDistanceMaxPips, the 150/500-pip
// distance bands below) are converted through PipToPrice before comparison
// against Position.DistanceToMarket, which is always in raw price units.
package purpose

import (
	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// PipToPrice is the fixed XAUUSD pip size documented above.
const PipToPrice = 0.1

// Config carries the purpose-classification thresholds.
type Config struct {
	HeavyLossThreshold     float64 // pnl threshold for Critical ProblemPosition, default -50
	ProblemLossThreshold   float64 // pnl threshold for graded ProblemPosition, default -5
	ProfitTakeThreshold    float64 // pnl threshold for ProfitTaker, default +5
	HelperDistanceMaxPips  float64 // max distance for helper relationships, default 100
	TrendFollowMinStrength float64 // min trend strength to upgrade to TrendFollower, default 65
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		HeavyLossThreshold:     -50,
		ProblemLossThreshold:   -5,
		ProfitTakeThreshold:    5,
		HelperDistanceMaxPips:  100,
		TrendFollowMinStrength: 65,
	}
}

// heavyLossDistancePips and gradedLossDistanceLow/High are the
// distance-to-market bands, in pips, used to grade problem positions.
const (
	heavyLossDistancePips  = 500
	gradedLossDistanceLow  = 150
	gradedLossDistanceHigh = 500
)

// Classify produces one Purpose per position in positions, given the
// current margin regime and trend reading. cooldowned holds ids whose
// purpose must not change this tick, to avoid purpose flapping; their
// previous Purpose is returned unchanged.
func Classify(
	positions []model.Position,
	regime model.MarginRegime,
	trend model.TrendAnalysis,
	cfg Config,
	previous map[model.PositionID]model.Purpose,
	cooldowned map[model.PositionID]struct{},
) map[model.PositionID]model.Purpose {
	out := make(map[model.PositionID]model.Purpose, len(positions))

	byID := make(map[model.PositionID]model.Position, len(positions))
	for _, p := range positions {
		byID[p.ID] = p
	}

	// Pass 1: base classification from own state.
	for _, p := range positions {
		if _, held := cooldowned[p.ID]; held {
			if prev, ok := previous[p.ID]; ok {
				out[p.ID] = prev
				continue
			}
		}
		out[p.ID] = baseClassify(p, cfg)
	}

	// Pass 2: relationship pass — helpers, needs-help-from, balance partners.
	for _, p := range positions {
		purpose := out[p.ID]
		if _, held := cooldowned[p.ID]; held {
			continue // don't mutate a purpose frozen by the cooldown
		}

		if purpose.Kind == model.ProblemPosition {
			for _, other := range positions {
				if other.ID == p.ID || other.Side == p.Side {
					continue
				}
				if !other.IsProfitable() {
					continue
				}
				if withinHelperDistance(p, other, cfg) {
					purpose.NeedsHelpFrom[other.ID] = struct{}{}
				}
			}
		} else {
			hasProblemToHelp := false
			for _, other := range positions {
				if other.ID == p.ID || other.Side == p.Side {
					continue
				}
				otherPurpose := out[other.ID]
				if otherPurpose.Kind != model.ProblemPosition {
					continue
				}
				if withinHelperDistance(p, other, cfg) {
					hasProblemToHelp = true
					purpose.HelperFor[other.ID] = struct{}{}
				}
			}
			if hasProblemToHelp {
				purpose.Kind = model.RecoveryHelper
				if purpose.Priority < model.PriorityMedium {
					purpose.Priority = model.PriorityMedium
				}
			}

			if purpose.Kind == model.BalanceKeeper {
				if partner := findBalancePartner(p, positions); partner != nil {
					id := partner.ID
					purpose.BalancePartner = &id
				}
			}
		}

		out[p.ID] = purpose
	}

	// Pass 3: market-intelligence pass.
	for _, p := range positions {
		if _, held := cooldowned[p.ID]; held {
			continue
		}
		purpose := out[p.ID]
		purpose.MarketAlignment = alignment(p.Side, trend)
		purpose.Confidence = confidenceFor(purpose, trend)

		if trend.Strength > cfg.TrendFollowMinStrength &&
			(purpose.MarketAlignment == model.AlignmentWith || purpose.MarketAlignment == model.AlignmentStrongWith) &&
			p.IsProfitable() && purpose.Kind != model.ProblemPosition {
			purpose.Kind = model.TrendFollower
		} else if trend.Volatility > 70 &&
			(purpose.MarketAlignment == model.AlignmentAgainst || purpose.MarketAlignment == model.AlignmentStrongAgainst) &&
			nearBreakeven(p) {
			purpose.Kind = model.HedgePosition
		}

		out[p.ID] = purpose
	}

	// Pass 4: emergency overrides.
	if regime == model.RegimeCritical {
		for id, purpose := range out {
			if purpose.Kind == model.RecoveryHelper || purpose.Kind == model.ProfitTaker {
				purpose.Priority = model.PriorityCritical
				out[id] = purpose
			}
		}
	}

	return out
}

func baseClassify(p model.Position, cfg Config) model.Purpose {
	purpose := model.NewPurpose(p.ID)
	distPips := p.DistanceToMarket() / PipToPrice

	switch {
	case p.UnrealizedPnL < cfg.HeavyLossThreshold || distPips > heavyLossDistancePips:
		purpose.Kind = model.ProblemPosition
		purpose.Priority = model.PriorityCritical
	case (p.UnrealizedPnL < cfg.ProblemLossThreshold && p.UnrealizedPnL >= cfg.HeavyLossThreshold) ||
		(distPips >= gradedLossDistanceLow && distPips <= gradedLossDistanceHigh):
		purpose.Kind = model.ProblemPosition
		purpose.Priority = gradedProblemPriority(p.UnrealizedPnL, distPips)
	case p.UnrealizedPnL > cfg.ProfitTakeThreshold:
		purpose.Kind = model.ProfitTaker
		purpose.Priority = gradedProfitPriority(p.UnrealizedPnL)
	default:
		purpose.Kind = model.BalanceKeeper
		purpose.Priority = model.PriorityLow
	}
	return purpose
}

func gradedProblemPriority(pnl, distPips float64) model.PurposePriority {
	switch {
	case pnl < -25 || distPips > 350:
		return model.PriorityHigh
	case pnl < -15 || distPips > 250:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func gradedProfitPriority(pnl float64) model.PurposePriority {
	switch {
	case pnl > 50:
		return model.PriorityHigh
	case pnl > 15:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func withinHelperDistance(a, b model.Position, cfg Config) bool {
	maxDistance := cfg.HelperDistanceMaxPips * PipToPrice
	d := a.OpenPrice - b.OpenPrice
	if d < 0 {
		d = -d
	}
	return d <= maxDistance
}

func findBalancePartner(p model.Position, positions []model.Position) *model.Position {
	const similarPnLBand = 2.0
	var best *model.Position
	bestDiff := similarPnLBand + 1
	for i, other := range positions {
		if other.ID == p.ID || other.Side == p.Side {
			continue
		}
		diff := other.UnrealizedPnL - p.UnrealizedPnL
		if diff < 0 {
			diff = -diff
		}
		if diff <= similarPnLBand && diff < bestDiff {
			bestDiff = diff
			best = &positions[i]
		}
	}
	return best
}

func alignment(side model.Side, trend model.TrendAnalysis) model.MarketAlignment {
	if trend.Direction == model.Sideways {
		return model.AlignmentNeutral
	}
	with := (side == model.Buy && trend.Direction == model.Bull) || (side == model.Sell && trend.Direction == model.Bear)
	strong := trend.Strength >= 80
	switch {
	case with && strong:
		return model.AlignmentStrongWith
	case with:
		return model.AlignmentWith
	case strong:
		return model.AlignmentStrongAgainst
	default:
		return model.AlignmentAgainst
	}
}

func confidenceFor(p model.Purpose, trend model.TrendAnalysis) float64 {
	base := 50.0
	switch p.MarketAlignment {
	case model.AlignmentStrongWith:
		base = 90
	case model.AlignmentWith:
		base = 70
	case model.AlignmentAgainst:
		base = 35
	case model.AlignmentStrongAgainst:
		base = 15
	}
	return base
}

func nearBreakeven(p model.Position) bool {
	const band = 2.0
	return p.UnrealizedPnL > -band && p.UnrealizedPnL < band
}
