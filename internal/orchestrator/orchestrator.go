// Package orchestrator implements the engine's tick pipeline: the only
// component that owns the mutable state.Tracker and calls out to the
// broker. It wires every pure component (costmodel, scoring, purpose,
// pairing, evaluator) against one read-only snapshot per tick, with
// Start/Stop around a ticking loop, metrics and structured logs on every
// cycle, and a bounded worker pool for the fan-out stages.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isnooker21/huakuy-hedge-engine/internal/broker"
	"github.com/isnooker21/huakuy-hedge-engine/internal/config"
	"github.com/isnooker21/huakuy-hedge-engine/internal/costmodel"
	"github.com/isnooker21/huakuy-hedge-engine/internal/engineerr"
	"github.com/isnooker21/huakuy-hedge-engine/internal/evaluator"
	"github.com/isnooker21/huakuy-hedge-engine/internal/executor"
	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
	"github.com/isnooker21/huakuy-hedge-engine/internal/observer"
	"github.com/isnooker21/huakuy-hedge-engine/internal/pairing"
	"github.com/isnooker21/huakuy-hedge-engine/internal/purpose"
	"github.com/isnooker21/huakuy-hedge-engine/internal/scoring"
	"github.com/isnooker21/huakuy-hedge-engine/internal/state"
	"github.com/isnooker21/huakuy-hedge-engine/internal/telemetry"
)

// Orchestrator drives one tick of the closure pipeline end to end. It
// carries no exported mutable fields; all shared state lives in the
// tracker, guarded by its own mutex.
type Orchestrator struct {
	cfg       config.Config
	gateway   broker.Gateway
	analyzer  broker.MarketAnalyzer
	tracker   *state.Tracker
	telem     *telemetry.Handle
	obs       observer.Observer
	assessor  state.HealthAssessor
	allowed   map[int]struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds an Orchestrator from its fully-resolved collaborators.
func New(
	cfg config.Config,
	gateway broker.Gateway,
	analyzer broker.MarketAnalyzer,
	telem *telemetry.Handle,
	obs observer.Observer,
) *Orchestrator {
	allowed := make(map[int]struct{}, len(cfg.AllowedMagics))
	for _, m := range cfg.AllowedMagics {
		allowed[m] = struct{}{}
	}
	if analyzer == nil {
		analyzer = broker.NeutralMarketAnalyzer{}
	}
	return &Orchestrator{
		cfg:      cfg,
		gateway:  gateway,
		analyzer: analyzer,
		tracker:  state.New(),
		telem:    telem,
		obs:      obs,
		assessor: state.DefaultHealthAssessor(),
		allowed:  allowed,
	}
}

// Start runs Tick on interval until the context is cancelled or Stop is
// called.
func (o *Orchestrator) Start(ctx context.Context, interval time.Duration) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	tickCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.done = make(chan struct{})
	o.mu.Unlock()

	go func() {
		defer close(o.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				if _, err := o.Tick(tickCtx); err != nil && o.telem != nil {
					o.telem.Log.Warn("tick failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop cancels the running tick loop and waits for it to exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	done := o.done
	o.running = false
	o.mu.Unlock()

	cancel()
	<-done
}

// Tick runs one full pass of the pipeline, bounded by the
// configured soft wall-time budget. It returns the decision made (which may
// have ShouldClose=false) and any pipeline-level error.
func (o *Orchestrator) Tick(ctx context.Context) (model.ClosureDecision, error) {
	started := time.Now()
	budget := time.Duration(o.cfg.TickBudgetMS) * time.Millisecond
	tickCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	defer func() {
		if o.telem != nil {
			o.telem.ObserveTick(time.Since(started))
		}
	}()

	// Step 1: acquire the tick's single snapshot.
	snapshot, err := o.gateway.Snapshot(tickCtx, o.cfg.DefaultSymbol)
	if err != nil {
		return model.ClosureDecision{}, engineerr.Wrap(engineerr.KindTransientBroker, "snapshot failed", err)
	}
	o.tracker.SetLivePositions(snapshot.Positions)

	managed := snapshot.Managed(o.allowed)
	if len(managed) == 0 {
		return model.ClosureDecision{}, nil
	}

	// Step 2: derive the margin regime driving weight/threshold selection.
	regime := model.ClassifyMarginRegime(snapshot.Account.MarginLevel)

	// Step 3: score every managed position.
	scores, err := scoring.Score(tickCtx, managed, regime, o.cfg.WorkerPoolSize)
	if err != nil {
		return model.ClosureDecision{}, engineerr.Wrap(engineerr.KindBudgetOverrun, "scoring failed", err)
	}
	scoreByID := make(map[model.PositionID]model.PositionScore, len(scores))
	for _, s := range scores {
		scoreByID[s.PositionID] = s
	}

	// Step 4: read the trend and classify each position's purpose.
	trend, err := o.analyzer.Analyze(tickCtx, o.cfg.DefaultSymbol)
	if err != nil {
		trend = model.NeutralTrendAnalysis()
	}
	now := time.Now()
	cooldowned := o.tracker.Cooldowned(now, o.cfg.PurposeUpdateCooldown)
	previous := o.tracker.PurposeCache()
	purposeCfg := purpose.Config{
		HeavyLossThreshold:     o.cfg.HeavyLossThreshold,
		ProblemLossThreshold:   o.cfg.ProblemLossThreshold,
		ProfitTakeThreshold:    o.cfg.ProfitTakeThreshold,
		HelperDistanceMaxPips:  o.cfg.HelperDistanceMaxPips,
		TrendFollowMinStrength: o.cfg.TrendFollowMinStrength,
	}
	purposes := purpose.Classify(managed, regime, trend, purposeCfg, previous, cooldowned)
	for id, p := range purposes {
		if _, held := cooldowned[id]; !held {
			o.tracker.UpdatePurpose(id, p, now)
		}
	}

	// Step 5: derive the portfolio-health label from recent performance.
	health := o.assessor.Assess(o.tracker.History())
	if o.telem != nil {
		o.telem.SetHealth([]string{"Good", "Fair", "Poor", "VeryPoor"}, health.String())
	}

	// Step 6: look up the live broker spread for cost estimation.
	spread, err := o.gateway.SpreadPoints(tickCtx, o.cfg.DefaultSymbol)
	if err != nil {
		spread = o.cfg.DefaultSpreadPoints
	}
	costParams := costmodel.Params{
		DefaultSpreadPoints: o.cfg.DefaultSpreadPoints,
		CommissionPerStdLot: o.cfg.CommissionPerStdLot,
		SlippagePerStdLot:   o.cfg.SlippagePerStdLot,
		BufferPerStdLot:     o.cfg.BufferPerStdLot,
		PointValue:          o.cfg.PointValue,
	}

	// Step 7: search for closure candidates. Emergency mode — and the
	// relaxed threshold that comes with it — triggers on critical margin
	// or a VeryPoor health label, whichever fires first.
	minNetProfit := o.cfg.MinNetProfit
	if regime == model.RegimeCritical || health == model.HealthVeryPoor {
		minNetProfit = o.cfg.EmergencyMinNetProfit
	}
	pairingCfg := pairing.Config{
		MaxHelpers:              o.cfg.MaxHelpers,
		HelperDistanceMaxPips:   o.cfg.HelperDistanceMaxPips,
		CrossZoneMinNetProfit:   o.cfg.CrossZoneMinNetProfit,
		HelperEarlyExitFactor:   o.cfg.HelperEarlyExitFactor,
		MaxCombinationSize:      o.cfg.MaxCombinationSize,
		ReattemptDistanceFactor: o.cfg.ReattemptDistanceFactor,
		ZoneWidth:               o.cfg.ZoneWidth,
	}
	candidates, err := pairing.Find(tickCtx, managed, purposes, costParams, spread, minNetProfit, health, pairingCfg)
	if err != nil {
		return model.ClosureDecision{}, engineerr.Wrap(engineerr.KindBudgetOverrun, "pairing search failed", err)
	}
	if o.telem != nil {
		o.telem.CandidatesFound.Add(float64(len(candidates)))
	}

	// Step 8: evaluate candidates against the full invariant set.
	byID := make(map[model.PositionID]model.Position, len(managed))
	for _, p := range managed {
		byID[p.ID] = p
	}
	buys, sells := model.CountBySide(managed)
	decision := evaluator.Evaluate(evaluator.Input{
		Candidates:     candidates,
		Scores:         scoreByID,
		ByID:           byID,
		PendingClosure: o.tracker.PendingClosure(),
		CurrentBuys:    buys,
		CurrentSells:   sells,
		Regime:         regime,
		Health:         health,
		Cfg: evaluator.Config{
			MinNetProfit:          o.cfg.MinNetProfit,
			EmergencyMinNetProfit: o.cfg.EmergencyMinNetProfit,
		},
	})
	if !decision.ShouldClose {
		return decision, nil
	}
	decision.ID = uuid.NewString()
	if o.telem != nil {
		o.telem.CandidatesAccepted.Inc()
		o.telem.Log.Info("closure decision accepted",
			zap.String("decisionId", decision.ID),
			zap.String("method", decision.MethodLabel),
			zap.Int("members", len(decision.Members)),
			zap.String("netPnl", humanize.FormatFloat("#,###.##", decision.NetPnL)),
		)
	}

	// Step 9: enforce the closing cooldown, then execute and publish.
	if o.tracker.CooldownActive(now, time.Duration(o.cfg.ClosingCooldownSeconds)*time.Second) {
		return model.ClosureDecision{}, nil
	}
	if o.obs != nil {
		o.obs.OnDecision(decision)
	}

	result := executor.Execute(tickCtx, o.gateway, o.tracker, decision, now)
	o.tracker.RecordClosure(state.Decision{
		DecisionID:      decision.ID,
		At:              now,
		Success:         !result.PartialFailure,
		PredictedNetPnL: result.PredictedNetPnL,
		RealizedNetPnL:  result.RealizedPnL,
		LatencyMS:       result.LatencyMS,
	})
	if o.telem != nil {
		if result.PartialFailure {
			o.telem.ClosuresFailed.Inc()
		} else {
			o.telem.ClosuresExecuted.Inc()
		}
		o.telem.PendingClosureSize.Set(float64(len(o.tracker.PendingClosure())))
	}
	if o.obs != nil {
		o.obs.OnResult(result)
	}

	return decision, nil
}
