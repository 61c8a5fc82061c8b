// Package executor implements the Closure Executor: the
// only component that calls BrokerGateway.ClosePosition. It locks the
// decision's members into pending_closure for the duration of the attempt,
// retries transient per-member failures once, and reports a partial failure
// rather than silently dropping members that could not be closed.
package executor

import (
	"context"
	"time"

	"github.com/isnooker21/huakuy-hedge-engine/internal/broker"
	"github.com/isnooker21/huakuy-hedge-engine/internal/engineerr"
	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
	"github.com/isnooker21/huakuy-hedge-engine/internal/state"
)

// Execute carries out decision against gateway, locking its members into
// tracker's pending_closure set for the duration and clearing them
// unconditionally on return. Each member gets one retry if its first close
// attempt fails with a retryable error kind; a member that still fails
// after the retry makes the whole result PartialFailure=true, but never
// abandons the other members.
func Execute(
	ctx context.Context,
	gateway broker.Gateway,
	tracker *state.Tracker,
	decision model.ClosureDecision,
	now time.Time,
) model.ClosureResult {
	tracker.MarkPending(decision.Members)
	defer tracker.ClearPending(decision.Members)

	start := now
	result := model.ClosureResult{
		DecisionID:      decision.ID,
		PredictedNetPnL: decision.NetPnL,
	}

	for _, id := range decision.Members {
		outcome := closeWithRetry(ctx, gateway, id)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Success {
			result.RealizedPnL += outcome.RealizedPnL
		} else {
			result.PartialFailure = true
		}
	}

	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

// closeWithRetry attempts a single member's close, retrying once if the
// first attempt fails with a retryable engineerr.Kind.
func closeWithRetry(ctx context.Context, gateway broker.Gateway, id model.PositionID) model.CloseOutcome {
	outcome, err := attemptClose(ctx, gateway, id)
	if err == nil {
		return outcome
	}

	kind := classify(err)
	if !engineerr.IsRetryable(kind) {
		return model.CloseOutcome{PositionID: id, Success: false, Err: err}
	}

	outcome, err = attemptClose(ctx, gateway, id)
	if err != nil {
		return model.CloseOutcome{PositionID: id, Success: false, Err: err}
	}
	return outcome
}

func attemptClose(ctx context.Context, gateway broker.Gateway, id model.PositionID) (model.CloseOutcome, error) {
	outcome, err := gateway.ClosePosition(ctx, id)
	if err != nil {
		return model.CloseOutcome{}, engineerr.Wrap(engineerr.KindTransientBroker, "close position failed", err)
	}
	return outcome, nil
}

// classify extracts the engineerr.Kind from err, defaulting to
// KindTransientBroker for any error the broker boundary produced that
// wasn't already classified (conservative: assume it's worth one retry).
func classify(err error) engineerr.Kind {
	if ee, ok := err.(*engineerr.Error); ok {
		return ee.Kind
	}
	return engineerr.KindTransientBroker
}
