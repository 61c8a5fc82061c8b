package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
	"github.com/isnooker21/huakuy-hedge-engine/internal/state"
)

// flakyGateway fails the first attempt for ids in failOnce, then succeeds;
// ids in failAlways never succeed.
type flakyGateway struct {
	failOnce   map[model.PositionID]struct{}
	failAlways map[model.PositionID]struct{}
	attempts   map[model.PositionID]int
}

func newFlakyGateway() *flakyGateway {
	return &flakyGateway{
		failOnce:   map[model.PositionID]struct{}{},
		failAlways: map[model.PositionID]struct{}{},
		attempts:   map[model.PositionID]int{},
	}
}

func (g *flakyGateway) Snapshot(ctx context.Context, symbol string) (model.PortfolioSnapshot, error) {
	return model.PortfolioSnapshot{}, nil
}

func (g *flakyGateway) SpreadPoints(ctx context.Context, symbol string) (float64, error) {
	return 1.5, nil
}

func (g *flakyGateway) ClosePosition(ctx context.Context, id model.PositionID) (model.CloseOutcome, error) {
	g.attempts[id]++
	if _, always := g.failAlways[id]; always {
		return model.CloseOutcome{}, errors.New("broker unreachable")
	}
	if _, once := g.failOnce[id]; once && g.attempts[id] == 1 {
		return model.CloseOutcome{}, errors.New("transient broker error")
	}
	return model.CloseOutcome{PositionID: id, Success: true, RealizedPnL: 10}, nil
}

func TestExecute_RetriesOnceThenSucceeds(t *testing.T) {
	gw := newFlakyGateway()
	gw.failOnce[1] = struct{}{}
	tr := state.New()

	decision := model.ClosureDecision{ID: "d1", Members: []model.PositionID{1}}
	result := Execute(context.Background(), gw, tr, decision, time.Now())

	if result.PartialFailure {
		t.Fatalf("expected the retry to recover, got %+v", result)
	}
	if gw.attempts[1] != 2 {
		t.Fatalf("attempts = %d, want 2 (one failure, one retry)", gw.attempts[1])
	}
}

func TestExecute_PartialFailureWhenMemberNeverSucceeds(t *testing.T) {
	gw := newFlakyGateway()
	gw.failAlways[2] = struct{}{}
	tr := state.New()

	decision := model.ClosureDecision{ID: "d2", Members: []model.PositionID{1, 2}}
	result := Execute(context.Background(), gw, tr, decision, time.Now())

	if !result.PartialFailure {
		t.Fatalf("expected PartialFailure=true, got %+v", result)
	}
	var sawSuccess, sawFailure bool
	for _, o := range result.Outcomes {
		if o.PositionID == 1 && o.Success {
			sawSuccess = true
		}
		if o.PositionID == 2 && !o.Success {
			sawFailure = true
		}
	}
	if !sawSuccess || !sawFailure {
		t.Fatalf("expected member 1 to succeed and member 2 to fail, got %+v", result.Outcomes)
	}
}

func TestExecute_ClearsPendingClosureOnReturn(t *testing.T) {
	gw := newFlakyGateway()
	tr := state.New()
	decision := model.ClosureDecision{ID: "d3", Members: []model.PositionID{1, 2}}

	Execute(context.Background(), gw, tr, decision, time.Now())

	pending := tr.PendingClosure()
	if len(pending) != 0 {
		t.Fatalf("expected pending_closure cleared after Execute, got %+v", pending)
	}
}

func TestExecute_IdempotentCloseCountsAsSuccess(t *testing.T) {
	gw := newFlakyGateway()
	tr := state.New()
	// First close real, second is a repeat decision referencing the same id.
	decision := model.ClosureDecision{ID: "d4", Members: []model.PositionID{5}}
	Execute(context.Background(), gw, tr, decision, time.Now())
	result := Execute(context.Background(), gw, tr, decision, time.Now())
	if result.PartialFailure {
		t.Fatalf("expected a repeated close of the same id to still report success, got %+v", result)
	}
}
