// Package balance implements the buy/sell balance-health formula shared by
// the Hedge Pair Finder's soft filters and the Combination
// Evaluator's hard balance non-regression rule.
package balance

// Score returns the balance health of a buy/sell count pair in [0,100]:
// 100 - 200*imbalance, where imbalance = |x-y| / max(1, x+y).
func Score(buys, sells int) float64 {
	total := buys + sells
	denom := total
	if denom < 1 {
		denom = 1
	}
	diff := buys - sells
	if diff < 0 {
		diff = -diff
	}
	imbalance := float64(diff) / float64(denom)
	score := 100 - 200*imbalance
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// NonRegresses implements step 4: a closure is acceptable if the
// post-close balance score is either >= the current score, within 10 of
// it, or the current score is already >= 80 (already well balanced).
func NonRegresses(currentBuys, currentSells, closedBuys, closedSells int) bool {
	current := Score(currentBuys, currentSells)
	if current >= 80 {
		return true
	}
	after := Score(currentBuys-closedBuys, currentSells-closedSells)
	return after >= current || (current-after) <= 10
}
