package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

func TestProfitScore_Piecewise(t *testing.T) {
	cases := []struct {
		p    float64
		want float64
	}{
		{10, 100},  // 50+5*10=100, capped
		{6, 80},    // 50+30
		{3, 60},    // 20*3
		{-5, -40},  // 8*-5
		{-10, -80}, // boundary p<=-10: -80+2*0
		{-50, -100},
	}
	for _, c := range cases {
		if got := profitScore(c.p); got != c.want {
			t.Errorf("profitScore(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestDeriveClosurePriority_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  model.ClosurePriority
	}{
		{71, model.MustClose},
		{70, model.ShouldClose},
		{31, model.ShouldClose},
		{30, model.CanHold},
		{-29, model.CanHold},
		{-30, model.MustHold},
		{-100, model.MustHold},
	}
	for _, c := range cases {
		if got := model.DeriveClosurePriority(c.score); got != c.want {
			t.Errorf("DeriveClosurePriority(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestScore_OrderedDescending(t *testing.T) {
	now := time.Now()
	positions := []model.Position{
		{ID: 1, Side: model.Buy, Volume: 0.01, UnrealizedPnL: 8, OpenTime: now.Add(-time.Minute)},
		{ID: 2, Side: model.Sell, Volume: 0.01, UnrealizedPnL: -20, OpenTime: now.Add(-time.Hour)},
		{ID: 3, Side: model.Buy, Volume: 0.01, UnrealizedPnL: 1, OpenTime: now.Add(-time.Minute)},
	}
	scores, err := Score(context.Background(), positions, model.RegimeNormal, 1)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("len(scores) = %d, want 3", len(scores))
	}
	for i := 1; i < len(scores); i++ {
		if scores[i-1].TotalScore < scores[i].TotalScore {
			t.Fatalf("scores not descending: %v then %v", scores[i-1].TotalScore, scores[i].TotalScore)
		}
	}
}

func TestScore_DeterministicAcrossRuns(t *testing.T) {
	now := time.Now()
	positions := make([]model.Position, 0, 150)
	for i := 0; i < 150; i++ {
		side := model.Buy
		if i%2 == 0 {
			side = model.Sell
		}
		positions = append(positions, model.Position{
			ID:            model.PositionID(i + 1),
			Side:          side,
			Volume:        0.01,
			UnrealizedPnL: float64(i%40) - 20,
			OpenTime:      now.Add(-time.Duration(i) * time.Minute),
		})
	}

	first, err := Score(context.Background(), positions, model.RegimeNormal, 4)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	second, err := Score(context.Background(), positions, model.RegimeNormal, 4)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("length mismatch")
	}
	for i := range first {
		if first[i].PositionID != second[i].PositionID || first[i].TotalScore != second[i].TotalScore {
			t.Fatalf("non-deterministic scoring at index %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestWeightsFor_RegimesSumToOne(t *testing.T) {
	for _, r := range []model.MarginRegime{model.RegimeCritical, model.RegimeHigh, model.RegimeNormal} {
		w := WeightsFor(r)
		sum := w.Profit + w.Balance + w.Recovery + w.MarginImpact + w.Correlation + w.Time + w.Volatility
		if sum < 0.99 || sum > 1.01 {
			t.Errorf("regime %v weights sum to %v, want ~1.0", r, sum)
		}
	}
}
