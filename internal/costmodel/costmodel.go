// Package costmodel implements the closure cost estimator.
// It is a pure function over volume and the current broker spread — no I/O,
// no shared state.
package costmodel

// Params are the tunable inputs to the cost model, taken from config.
type Params struct {
	DefaultSpreadPoints float64
	CommissionPerStdLot float64
	SlippagePerStdLot   float64
	BufferPerStdLot     float64
	PointValue          float64
}

// lotStep is the standard-lot conversion factor:
// V_in_standard_lots = V / 0.01.
const lotStep = 0.01

// fallbackPerStdLot is the fallback cost when inputs are invalid: never
// return zero, fall back to 3.0 x V_in_standard_lots instead.
const fallbackPerStdLot = 3.0

// Estimate computes the cost in account currency of closing a group with
// total volume in lots, given the broker's current spread in points
// (brokerSpreadPoints <= 0 means "unavailable", use the default).
//
// Estimate is monotonically non-decreasing in volume and never returns
// zero or a negative cost.
func Estimate(p Params, volume, brokerSpreadPoints float64) float64 {
	if volume <= 0 || !isFinite(volume) {
		return fallbackPerStdLot
	}

	stdLots := volume / lotStep

	spreadPoints := p.DefaultSpreadPoints
	if brokerSpreadPoints > 0 && brokerSpreadPoints > spreadPoints {
		spreadPoints = brokerSpreadPoints
	}

	pointValue := p.PointValue
	if pointValue <= 0 || !isFinite(pointValue) {
		pointValue = 1.0
	}

	commission := p.CommissionPerStdLot
	slippage := p.SlippagePerStdLot
	buffer := p.BufferPerStdLot

	if !isFinite(spreadPoints) || !isFinite(commission) || !isFinite(slippage) || !isFinite(buffer) ||
		spreadPoints < 0 || commission < 0 || slippage < 0 || buffer < 0 {
		return fallbackPerStdLot * stdLots
	}

	spreadCost := spreadPoints * pointValue * stdLots
	commissionCost := commission * stdLots
	slippageCost := slippage * stdLots
	bufferCost := buffer * stdLots

	total := spreadCost + commissionCost + slippageCost + bufferCost
	if total <= 0 || !isFinite(total) {
		return fallbackPerStdLot * stdLots
	}
	return total
}

func isFinite(f float64) bool {
	return f == f && f < maxFinite && f > -maxFinite
}

// maxFinite avoids importing math just for IsInf/IsNaN checks in this
// otherwise dependency-free pure function.
const maxFinite = 1e308
