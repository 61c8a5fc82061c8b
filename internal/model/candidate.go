package model

// Candidate is a proposed closure group produced by the Hedge Pair Finder.
type Candidate struct {
	Members  []PositionID
	Method   string // which pairing strategy produced this candidate
	GrossPnL float64
	Cost     float64
	Quality  float64 // average 7D total score across members, if computed
}

// NetPnL is GrossPnL minus the closure Cost.
func (c Candidate) NetPnL() float64 {
	return c.GrossPnL - c.Cost
}

// MemberSet returns Members as a lookup set.
func (c Candidate) MemberSet() map[PositionID]struct{} {
	set := make(map[PositionID]struct{}, len(c.Members))
	for _, id := range c.Members {
		set[id] = struct{}{}
	}
	return set
}

// ClosureDecision is the evaluator's chosen candidate, ready for execution.
type ClosureDecision struct {
	ID          string
	ShouldClose bool
	Members     []PositionID
	MethodLabel string
	NetPnL      float64
	GrossPnL    float64
	Cost        float64
	Confidence  float64
}

// CloseOutcome is the per-member result of a close request against
// BrokerGateway.ClosePosition.
type CloseOutcome struct {
	PositionID  PositionID
	Success     bool
	RealizedPnL float64
	NotFound    bool // idempotent close: already closed broker-side
	Err         error
}

// ClosureResult is the aggregate outcome of executing a ClosureDecision,
// produced on the ClosureObserver stream.
type ClosureResult struct {
	DecisionID      string
	Outcomes        []CloseOutcome
	RealizedPnL     float64
	PredictedNetPnL float64
	PartialFailure  bool
	LatencyMS       int64
}

// WithinTolerance reports whether RealizedPnL matches PredictedNetPnL within
// tol currency units.
func (r ClosureResult) WithinTolerance(tol float64) bool {
	d := r.RealizedPnL - r.PredictedNetPnL
	if d < 0 {
		d = -d
	}
	return d <= tol
}
