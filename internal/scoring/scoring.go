// Package scoring implements the Position Scorer: a pure,
// parallelizable function from a PortfolioSnapshot and margin regime to a
// ranked list of 7-dimensional PositionScores.
package scoring

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// Weights are the per-dimension weights for one margin regime.
type Weights struct {
	Profit       float64
	Balance      float64
	Recovery     float64
	MarginImpact float64
	Correlation  float64
	Time         float64
	Volatility   float64
}

// WeightsFor returns the weight set for a margin regime.
func WeightsFor(regime model.MarginRegime) Weights {
	switch regime {
	case model.RegimeCritical:
		return Weights{Profit: 0.40, Balance: 0.20, Recovery: 0.15, MarginImpact: 0.10, Correlation: 0.08, Time: 0.05, Volatility: 0.02}
	case model.RegimeHigh:
		return Weights{Profit: 0.35, Balance: 0.25, Recovery: 0.15, Correlation: 0.10, MarginImpact: 0.08, Time: 0.05, Volatility: 0.02}
	default:
		return Weights{Profit: 0.30, Balance: 0.25, Recovery: 0.20, Correlation: 0.12, MarginImpact: 0.08, Time: 0.03, Volatility: 0.02}
	}
}

// parallelThreshold caps the fan-out used by Score: snapshots at or below
// this size score sequentially; larger ones may parallelize across chunks.
const parallelThreshold = 100

// Score computes a PositionScore for every managed position in snapshot,
// returning the list sorted by TotalScore descending. regime must already
// reflect the current Account.MarginLevel (model.ClassifyMarginRegime).
//
// For snapshots larger than the parallel threshold, scoring fans out across
// chunks on a bounded worker pool (workers, clamped to [1,4]); results are
// merged and sorted in the caller, so the returned ordering never depends
// on goroutine scheduling.
func Score(ctx context.Context, positions []model.Position, regime model.MarginRegime, workers int) ([]model.PositionScore, error) {
	w := WeightsFor(regime)
	now := time.Now()

	buys, sells := model.CountBySide(positions)
	totalVolume := model.TotalVolume(positions)

	if len(positions) <= parallelThreshold || workers <= 1 {
		scores := make([]model.PositionScore, len(positions))
		for i, p := range positions {
			scores[i] = scoreOne(p, w, buys, sells, totalVolume, now)
		}
		sortDescending(scores)
		return scores, nil
	}

	if workers < 1 {
		workers = 1
	}
	if workers > 4 {
		workers = 4
	}

	scores := make([]model.PositionScore, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	chunkSize := (len(positions) + workers - 1) / workers

	for start := 0; start < len(positions); start += chunkSize {
		end := start + chunkSize
		if end > len(positions) {
			end = len(positions)
		}
		start, end := start, end
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			for i := start; i < end; i++ {
				scores[i] = scoreOne(positions[i], w, buys, sells, totalVolume, now)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortDescending(scores)
	return scores, nil
}

func sortDescending(scores []model.PositionScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalScore > scores[j].TotalScore
	})
}

func scoreOne(p model.Position, w Weights, buys, sells int, totalVolume float64, now time.Time) model.PositionScore {
	s := model.PositionScore{PositionID: p.ID}

	s.ProfitScore = profitScore(p.UnrealizedPnL)
	s.BalanceScore = balanceScore(p.Side, buys, sells)
	s.MarginImpact = marginImpact(p.Volume, totalVolume)
	s.RecoveryPotential = recoveryPotential(p.UnrealizedPnL)
	s.TimeScore = timeScore(p.HeldFor(now))
	s.CorrelationScore = correlationScore(p.Side, buys, sells)
	s.VolatilityScore = volatilityScore(p.UnrealizedPnL)

	s.TotalScore = w.Profit*s.ProfitScore +
		w.Balance*s.BalanceScore +
		w.Recovery*s.RecoveryPotential +
		w.MarginImpact*s.MarginImpact +
		w.Correlation*s.CorrelationScore +
		w.Time*s.TimeScore +
		w.Volatility*s.VolatilityScore

	s.Priority = model.DeriveClosurePriority(s.TotalScore)
	return s
}

// profitScore maps unrealized pnl to a piecewise profit score.
func profitScore(p float64) float64 {
	switch {
	case p > 5:
		v := 50 + 5*p
		if v > 100 {
			return 100
		}
		return v
	case p > 0:
		return 20 * p
	case p > -10:
		return 8 * p
	default:
		v := -80 + 2*(p+10)
		if v < -100 {
			return -100
		}
		return v
	}
}

// balanceScore is min(100, 50*need_ratio) where
// need_ratio = count_opposite_side / max(1, count_same_side).
func balanceScore(side model.Side, buys, sells int) float64 {
	same, opposite := sideCounts(side, buys, sells)
	denom := same
	if denom < 1 {
		denom = 1
	}
	needRatio := float64(opposite) / float64(denom)
	v := 50 * needRatio
	if v > 100 {
		return 100
	}
	return v
}

func marginImpact(volume, totalVolume float64) float64 {
	if totalVolume <= 0 {
		return 0
	}
	v := 100 * volume / totalVolume
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func recoveryPotential(p float64) float64 {
	switch {
	case p > 0:
		return 20
	case p > -5:
		return 80
	case p > -20:
		return 40
	default:
		return 10
	}
}

func timeScore(held time.Duration) float64 {
	switch {
	case held < time.Hour:
		return 90
	case held < 6*time.Hour:
		return 80
	case held < 24*time.Hour:
		return 60
	case held < 72*time.Hour:
		return 40
	default:
		return 20
	}
}

// correlationScore is 80 if the side is the minority,
// 30 if alone on its side, 50 otherwise.
func correlationScore(side model.Side, buys, sells int) float64 {
	same, opposite := sideCounts(side, buys, sells)
	if same == 1 && opposite == 0 {
		return 30
	}
	if same < opposite {
		return 80
	}
	return 50
}

func volatilityScore(p float64) float64 {
	abs := p
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 2:
		return 90
	case abs < 10:
		return 70
	case abs < 30:
		return 50
	default:
		return 30
	}
}

func sideCounts(side model.Side, buys, sells int) (same, opposite int) {
	if side == model.Buy {
		return buys, sells
	}
	return sells, buys
}
