// Package broker defines the engine's external trading-connectivity
// boundary: the BrokerGateway and MarketAnalyzer interfaces, plus
// a deterministic in-memory BrokerGateway and a neutral-default
// MarketAnalyzer for tests and dry-run deployments. Real broker
// connectivity (MT5, or any other venue) is out of scope — a
// production deployment supplies its own BrokerGateway implementation.
package broker

import (
	"context"
	"sync"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// Gateway is the broker-facing boundary every closure ultimately crosses.
// ClosePosition must be idempotent: a second call after a
// successful close returns NotFound=true rather than an error.
type Gateway interface {
	Snapshot(ctx context.Context, symbol string) (model.PortfolioSnapshot, error)
	ClosePosition(ctx context.Context, id model.PositionID) (model.CloseOutcome, error)
	SpreadPoints(ctx context.Context, symbol string) (float64, error)
}

// MarketAnalyzer is the optional trend-reading collaborator consumed by the
// Purpose Classifier. A nil MarketAnalyzer is never passed
// around; callers without a real one use NeutralMarketAnalyzer instead.
type MarketAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (model.TrendAnalysis, error)
}

// NeutralMarketAnalyzer always reports the sideways/strength-50 default,
// the "no real analyzer wired in" stand-in.
type NeutralMarketAnalyzer struct{}

// Analyze implements MarketAnalyzer.
func (NeutralMarketAnalyzer) Analyze(ctx context.Context, symbol string) (model.TrendAnalysis, error) {
	return model.NeutralTrendAnalysis(), nil
}

// SimulatedGateway is a deterministic, in-memory Gateway used by tests and
// by cmd/hedge-engine's -dry-run mode. It never performs network I/O and
// models idempotent close semantics explicitly: closing an already-closed
// position returns NotFound=true and no error.
type SimulatedGateway struct {
	mu        sync.Mutex
	positions map[model.PositionID]model.Position
	closed    map[model.PositionID]struct{}
	account   model.Account
	spread    float64
}

// NewSimulatedGateway seeds a gateway with the given starting positions and
// account state.
func NewSimulatedGateway(positions []model.Position, account model.Account, spreadPoints float64) *SimulatedGateway {
	g := &SimulatedGateway{
		positions: make(map[model.PositionID]model.Position, len(positions)),
		closed:    make(map[model.PositionID]struct{}),
		account:   account,
		spread:    spreadPoints,
	}
	for _, p := range positions {
		g.positions[p.ID] = p
	}
	return g
}

// Snapshot implements Gateway.
func (g *SimulatedGateway) Snapshot(ctx context.Context, symbol string) (model.PortfolioSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[model.PositionID]model.Position, len(g.positions))
	for id, p := range g.positions {
		out[id] = p
	}
	return model.PortfolioSnapshot{
		Positions: out,
		Account:   g.account,
		Symbol:    symbol,
	}, nil
}

// ClosePosition implements Gateway's idempotent-close contract.
func (g *SimulatedGateway) ClosePosition(ctx context.Context, id model.PositionID) (model.CloseOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, alreadyClosed := g.closed[id]; alreadyClosed {
		return model.CloseOutcome{PositionID: id, Success: true, NotFound: true}, nil
	}
	p, ok := g.positions[id]
	if !ok {
		return model.CloseOutcome{PositionID: id, Success: true, NotFound: true}, nil
	}
	delete(g.positions, id)
	g.closed[id] = struct{}{}
	return model.CloseOutcome{PositionID: id, Success: true, RealizedPnL: p.UnrealizedPnL}, nil
}

// SpreadPoints implements Gateway.
func (g *SimulatedGateway) SpreadPoints(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.spread, nil
}

// SetSpread lets tests adjust the simulated spread mid-run.
func (g *SimulatedGateway) SetSpread(points float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spread = points
}
