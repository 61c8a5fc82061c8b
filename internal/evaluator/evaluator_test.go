package evaluator

import (
	"testing"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

func baseInput(candidates []model.Candidate) Input {
	byID := map[model.PositionID]model.Position{
		1: {ID: 1, Side: model.Buy},
		2: {ID: 2, Side: model.Sell},
		3: {ID: 3, Side: model.Sell},
	}
	return Input{
		Candidates:     candidates,
		Scores:         map[model.PositionID]model.PositionScore{},
		ByID:           byID,
		PendingClosure: map[model.PositionID]struct{}{},
		CurrentBuys:    5,
		CurrentSells:   5,
		Regime:         model.RegimeNormal,
		Cfg:            Config{MinNetProfit: 0.05, EmergencyMinNetProfit: 0.01},
	}
}

func TestEvaluate_AcceptsCandidateClearingThreshold(t *testing.T) {
	in := baseInput([]model.Candidate{
		{Members: []model.PositionID{1, 2}, Method: "pair_enum", GrossPnL: 20, Cost: 5},
	})
	decision := Evaluate(in)
	if !decision.ShouldClose {
		t.Fatalf("expected ShouldClose=true, got %+v", decision)
	}
	if decision.NetPnL != 15 {
		t.Fatalf("NetPnL = %v, want 15", decision.NetPnL)
	}
}

func TestEvaluate_RejectsBelowThreshold(t *testing.T) {
	in := baseInput([]model.Candidate{
		{Members: []model.PositionID{1, 2}, Method: "pair_enum", GrossPnL: 0.5, Cost: 0.48},
	})
	decision := Evaluate(in)
	if decision.ShouldClose {
		t.Fatalf("expected rejection below threshold, got %+v", decision)
	}
}

func TestEvaluate_RejectsMemberAlreadyPendingClosure(t *testing.T) {
	in := baseInput([]model.Candidate{
		{Members: []model.PositionID{1, 2}, Method: "pair_enum", GrossPnL: 20, Cost: 1},
	})
	in.PendingClosure[2] = struct{}{}
	decision := Evaluate(in)
	if decision.ShouldClose {
		t.Fatalf("expected rejection of a candidate with a pending member, got %+v", decision)
	}
}

func TestEvaluate_RejectsLoneLoserClosingAlone(t *testing.T) {
	in := baseInput([]model.Candidate{
		{Members: []model.PositionID{1}, Method: "positive_combination", GrossPnL: -10, Cost: 1},
	})
	in.Scores[1] = model.PositionScore{PositionID: 1, TotalScore: -40}
	decision := Evaluate(in)
	if decision.ShouldClose {
		t.Fatalf("expected a lone loser to never close alone, got %+v", decision)
	}
}

func TestEvaluate_PicksHigherNetPnLAmongSurvivors(t *testing.T) {
	in := baseInput([]model.Candidate{
		{Members: []model.PositionID{1, 2}, Method: "pair_enum", GrossPnL: 10, Cost: 1},
		{Members: []model.PositionID{1, 3}, Method: "pair_enum", GrossPnL: 30, Cost: 1},
	})
	decision := Evaluate(in)
	if !decision.ShouldClose || decision.NetPnL != 29 {
		t.Fatalf("expected the higher net pnl candidate to win, got %+v", decision)
	}
}

func TestEvaluate_EmergencyRegimeRelaxesThreshold(t *testing.T) {
	in := baseInput([]model.Candidate{
		{Members: []model.PositionID{1, 2}, Method: "pair_enum", GrossPnL: 0.03, Cost: 0.01},
	})
	in.Regime = model.RegimeCritical
	decision := Evaluate(in)
	if !decision.ShouldClose {
		t.Fatalf("expected emergency threshold to admit a smaller net pnl, got %+v", decision)
	}
}

func TestEvaluate_VeryPoorHealthRelaxesThresholdAtNormalMargin(t *testing.T) {
	in := baseInput([]model.Candidate{
		{Members: []model.PositionID{1, 2}, Method: "pair_enum", GrossPnL: 0.03, Cost: 0.01},
	})
	in.Health = model.HealthVeryPoor
	decision := Evaluate(in)
	if !decision.ShouldClose {
		t.Fatalf("expected VeryPoor health to admit a smaller net pnl even at normal margin, got %+v", decision)
	}
}

func TestEvaluate_NoCandidatesReturnsNoClose(t *testing.T) {
	decision := Evaluate(baseInput(nil))
	if decision.ShouldClose {
		t.Fatalf("expected no-close decision for an empty candidate pool")
	}
}
