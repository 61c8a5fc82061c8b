package balance

import "testing"

func TestScore_PerfectBalance(t *testing.T) {
	if got := Score(5, 5); got != 100 {
		t.Fatalf("Score(5,5) = %v, want 100", got)
	}
}

func TestScore_Empty(t *testing.T) {
	if got := Score(0, 0); got != 100 {
		t.Fatalf("Score(0,0) = %v, want 100", got)
	}
}

func TestScore_Extreme(t *testing.T) {
	if got := Score(10, 0); got != 0 {
		t.Fatalf("Score(10,0) = %v, want 0", got)
	}
}

func TestNonRegresses_AlreadyWellBalancedAlwaysPasses(t *testing.T) {
	// current 10 vs 9 -> score ~89.5, >=80, so any closure passes.
	if !NonRegresses(10, 9, 10, 0) {
		t.Fatalf("expected pass when current score already >= 80")
	}
}

func TestNonRegresses_EmptyPortfolioIsTriviallyBalanced(t *testing.T) {
	// Closing absolutely everything always satisfies the literal formula
	// (0/0 scores as perfectly balanced). A preference for a smaller group
	// comes from the evaluator's tie-break rule, not from this formula.
	if !NonRegresses(10, 1, 10, 1) {
		t.Fatalf("expected pass: emptying the portfolio always satisfies the balance formula")
	}
}

func TestNonRegresses_SmallBalancedGroupPasses(t *testing.T) {
	// Closing the sell plus 2 balanced buys: 10->8, 1->0. Both ends clamp
	// to score 0, so after >= current and the closure passes.
	if !NonRegresses(10, 1, 2, 1) {
		t.Fatalf("expected a small balanced-group closure to pass")
	}
}
