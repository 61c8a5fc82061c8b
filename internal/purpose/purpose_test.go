package purpose

import (
	"testing"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

func TestClassify_HeavyLossIsCriticalProblem(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, Volume: 0.01, OpenPrice: 1900, CurrentPrice: 1900, UnrealizedPnL: -60},
	}
	out := Classify(positions, model.RegimeNormal, model.NeutralTrendAnalysis(), DefaultConfig(), nil, nil)
	p := out[1]
	if p.Kind != model.ProblemPosition || p.Priority != model.PriorityCritical {
		t.Fatalf("got kind=%v priority=%v, want ProblemPosition/Critical", p.Kind, p.Priority)
	}
}

func TestClassify_ProfitableOppositeBecomesRecoveryHelper(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, Volume: 0.01, OpenPrice: 1900, CurrentPrice: 1900, UnrealizedPnL: -60},
		{ID: 2, Side: model.Sell, Volume: 0.01, OpenPrice: 1901, CurrentPrice: 1901, UnrealizedPnL: 8},
	}
	out := Classify(positions, model.RegimeNormal, model.NeutralTrendAnalysis(), DefaultConfig(), nil, nil)
	helper := out[2]
	if helper.Kind != model.RecoveryHelper {
		t.Fatalf("got kind=%v, want RecoveryHelper", helper.Kind)
	}
	if _, ok := helper.HelperFor[1]; !ok {
		t.Fatalf("expected helper.HelperFor to contain problem position id 1")
	}
	problem := out[1]
	if _, ok := problem.NeedsHelpFrom[2]; !ok {
		t.Fatalf("expected problem.NeedsHelpFrom to contain helper id 2")
	}
}

func TestClassify_DefaultIsBalanceKeeper(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, Volume: 0.01, OpenPrice: 1900, CurrentPrice: 1900.5, UnrealizedPnL: 1},
	}
	out := Classify(positions, model.RegimeNormal, model.NeutralTrendAnalysis(), DefaultConfig(), nil, nil)
	if out[1].Kind != model.BalanceKeeper {
		t.Fatalf("got kind=%v, want BalanceKeeper", out[1].Kind)
	}
}

func TestClassify_ProfitTakerGraded(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, Volume: 0.01, OpenPrice: 1900, CurrentPrice: 1905, UnrealizedPnL: 60},
	}
	out := Classify(positions, model.RegimeNormal, model.NeutralTrendAnalysis(), DefaultConfig(), nil, nil)
	if out[1].Kind != model.ProfitTaker || out[1].Priority != model.PriorityHigh {
		t.Fatalf("got kind=%v priority=%v, want ProfitTaker/High", out[1].Kind, out[1].Priority)
	}
}

func TestClassify_EmergencyOverrideEscalatesRecoveryHelper(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, Volume: 0.01, OpenPrice: 1900, CurrentPrice: 1900, UnrealizedPnL: -60},
		{ID: 2, Side: model.Sell, Volume: 0.01, OpenPrice: 1901, CurrentPrice: 1901, UnrealizedPnL: 8},
	}
	out := Classify(positions, model.RegimeCritical, model.NeutralTrendAnalysis(), DefaultConfig(), nil, nil)
	if out[2].Priority != model.PriorityCritical {
		t.Fatalf("got priority=%v, want Critical under emergency override", out[2].Priority)
	}
}

func TestClassify_CooldownPreservesPreviousPurpose(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, Volume: 0.01, OpenPrice: 1900, CurrentPrice: 1900, UnrealizedPnL: -60},
	}
	previous := map[model.PositionID]model.Purpose{
		1: {PositionID: 1, Kind: model.BalanceKeeper, HelperFor: map[model.PositionID]struct{}{}, NeedsHelpFrom: map[model.PositionID]struct{}{}},
	}
	cooldown := map[model.PositionID]struct{}{1: {}}
	out := Classify(positions, model.RegimeNormal, model.NeutralTrendAnalysis(), DefaultConfig(), previous, cooldown)
	if out[1].Kind != model.BalanceKeeper {
		t.Fatalf("got kind=%v, want frozen BalanceKeeper from cooldown", out[1].Kind)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, OpenPrice: 1900, CurrentPrice: 1900, Volume: 0.01, UnrealizedPnL: -60},
		{ID: 2, Side: model.Sell, OpenPrice: 1901, CurrentPrice: 1901, Volume: 0.01, UnrealizedPnL: 8},
		{ID: 3, Side: model.Buy, OpenPrice: 1902, CurrentPrice: 1905, Volume: 0.01, UnrealizedPnL: 3},
	}
	first := Classify(positions, model.RegimeNormal, model.NeutralTrendAnalysis(), DefaultConfig(), nil, nil)
	second := Classify(positions, model.RegimeNormal, model.NeutralTrendAnalysis(), DefaultConfig(), nil, nil)
	for id, p1 := range first {
		p2 := second[id]
		if p1.Kind != p2.Kind || p1.Priority != p2.Priority {
			t.Fatalf("non-deterministic classify for %v: %+v vs %+v", id, p1, p2)
		}
	}
}
