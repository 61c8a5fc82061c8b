// Package pairing implements the Hedge Pair Finder: the
// combinatorial core that proposes closure candidates for the Combination
// Evaluator to validate and select from. Every strategy here is a cheap,
// soft filter — quickAccept, DensityGuard, the balance check — because the
// evaluator alone owns the authoritative invariant checks.
package pairing

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/isnooker21/huakuy-hedge-engine/internal/balance"
	"github.com/isnooker21/huakuy-hedge-engine/internal/costmodel"
	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
	"github.com/isnooker21/huakuy-hedge-engine/internal/zone"
)

// pipToPrice is the same XAUUSD pip convention used in internal/purpose;
// duplicated here as a local constant rather than an import to keep
// pairing's internal dependencies to model+zone+costmodel+balance.
const pipToPrice = 0.1

// Config carries the pairing-relevant tunables.
type Config struct {
	MaxHelpers              int
	HelperDistanceMaxPips   float64
	CrossZoneMinNetProfit   float64
	HelperEarlyExitFactor   float64
	MaxCombinationSize      int
	ReattemptDistanceFactor float64
	ZoneWidth               float64
}

// Profile tunes how hard the finder searches, derived from portfolio size
// and health: small portfolios analyze everything, medium/large ones cap
// analysis and enumeration and fan out strategies in parallel; a struggling
// portfolio gets a wider search budget since a missed recovery is costlier
// than the extra cpu.
type Profile struct {
	AnalyzeLimit     int
	EnumerationLimit int
	Parallel         bool
}

// SelectProfile picks a search profile from portfolio size and health.
func SelectProfile(portfolioSize int, health model.PortfolioHealth) Profile {
	var p Profile
	switch {
	case portfolioSize <= 20:
		p = Profile{AnalyzeLimit: portfolioSize, EnumerationLimit: 200, Parallel: false}
	case portfolioSize <= 60:
		p = Profile{AnalyzeLimit: 40, EnumerationLimit: 150, Parallel: true}
	default:
		p = Profile{AnalyzeLimit: 50, EnumerationLimit: 100, Parallel: true}
	}

	switch health {
	case model.HealthPoor, model.HealthVeryPoor:
		p.EnumerationLimit += 50
	case model.HealthGood:
		p.EnumerationLimit -= 30
	}
	if p.EnumerationLimit < 50 {
		p.EnumerationLimit = 50
	}
	return p
}

// quickAccept is the cheap early-exit filter every strategy uses before
// spending more search budget: a group below minNetProfit is never worth
// carrying forward, and an all-losing group always has gross<=0 so it can
// never pass this check either.
func quickAccept(netPnL, minNetProfit float64) bool {
	return netPnL >= minNetProfit
}

// Find runs strategies (a)-(e) and returns every candidate that passed its
// strategy's cheap acceptance filter, tagged with the method that produced
// it. It never makes the final closure decision — that is the evaluator's
// job operating over the full candidate set this returns.
func Find(
	ctx context.Context,
	positions []model.Position,
	purposes map[model.PositionID]model.Purpose,
	costParams costmodel.Params,
	spreadPoints float64,
	minNetProfit float64,
	health model.PortfolioHealth,
	cfg Config,
) ([]model.Candidate, error) {
	byID := make(map[model.PositionID]model.Position, len(positions))
	for _, p := range positions {
		byID[p.ID] = p
	}
	zones := zone.Partition(positions, cfg.ZoneWidth)
	profile := SelectProfile(len(positions), health)

	build := func(members []model.PositionID, method string) model.Candidate {
		return candidateFromMembers(byID, members, method, costParams, spreadPoints)
	}

	strategies := []func() []model.Candidate{
		func() []model.Candidate { return furthestFirst(positions, purposes, byID, minNetProfit, profile, build) },
		func() []model.Candidate {
			pairs := opposingPairEnumeration(positions, minNetProfit, cfg.HelperDistanceMaxPips, profile, build)
			if len(pairs) == 0 {
				pairs = opposingPairEnumeration(positions, minNetProfit, cfg.HelperDistanceMaxPips*cfg.ReattemptDistanceFactor, profile, build)
				for i := range pairs {
					pairs[i].Method = "reattempt_pair_enum"
				}
			}
			return pairs
		},
		func() []model.Candidate { return crossZonePairing(zones, byID, cfg.CrossZoneMinNetProfit, build) },
		func() []model.Candidate {
			return multiHelperAugmentation(positions, purposes, byID, minNetProfit, cfg, build)
		},
		func() []model.Candidate {
			return positiveCombinationSearch(positions, minNetProfit, cfg, profile, build)
		},
	}

	if !profile.Parallel {
		var out []model.Candidate
		for _, s := range strategies {
			out = append(out, s()...)
		}
		return out, nil
	}

	results := make([][]model.Candidate, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		i, s := i, s
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = s()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []model.Candidate
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func candidateFromMembers(
	byID map[model.PositionID]model.Position,
	members []model.PositionID,
	method string,
	costParams costmodel.Params,
	spreadPoints float64,
) model.Candidate {
	var gross, volume float64
	for _, id := range members {
		p := byID[id]
		gross += p.UnrealizedPnL
		volume += p.Volume
	}
	cost := costmodel.Estimate(costParams, volume, spreadPoints)
	return model.Candidate{Members: members, Method: method, GrossPnL: gross, Cost: cost}
}

// furthestFirst implements strategy (a): target problem positions furthest
// from the market first, pairing each with a helper already identified by
// the Purpose Classifier's relationship pass (NeedsHelpFrom).
func furthestFirst(
	positions []model.Position,
	purposes map[model.PositionID]model.Purpose,
	byID map[model.PositionID]model.Position,
	minNetProfit float64,
	profile Profile,
	build func([]model.PositionID, string) model.Candidate,
) []model.Candidate {
	var problems []model.Position
	for _, p := range positions {
		if purposes[p.ID].Kind == model.ProblemPosition {
			problems = append(problems, p)
		}
	}
	sort.Slice(problems, func(i, j int) bool {
		return problems[i].DistanceToMarket() > problems[j].DistanceToMarket()
	})
	if len(problems) > profile.AnalyzeLimit {
		problems = problems[:profile.AnalyzeLimit]
	}

	var out []model.Candidate
	for _, problem := range problems {
		for helperID := range purposes[problem.ID].NeedsHelpFrom {
			helper, ok := byID[helperID]
			if !ok {
				continue
			}
			c := build([]model.PositionID{problem.ID, helper.ID}, "furthest_first")
			if quickAccept(c.NetPnL(), minNetProfit) {
				out = append(out, c)
			}
		}
	}
	return out
}

// opposingPairEnumeration implements strategy (b): brute-force pairing of
// every opposite-side position within maxDistancePips of each other,
// bounded by the profile's enumeration limit.
func opposingPairEnumeration(
	positions []model.Position,
	minNetProfit, maxDistancePips float64,
	profile Profile,
	build func([]model.PositionID, string) model.Candidate,
) []model.Candidate {
	maxDistance := maxDistancePips * pipToPrice
	var out []model.Candidate
	checked := 0
	for i := range positions {
		for j := range positions {
			if checked >= profile.EnumerationLimit {
				return out
			}
			a, b := positions[i], positions[j]
			if a.ID >= b.ID || a.Side == b.Side {
				continue
			}
			checked++
			d := a.OpenPrice - b.OpenPrice
			if d < 0 {
				d = -d
			}
			if d > maxDistance {
				continue
			}
			c := build([]model.PositionID{a.ID, b.ID}, "pair_enum")
			if quickAccept(c.NetPnL(), minNetProfit) {
				out = append(out, c)
			}
		}
	}
	return out
}

// crossZonePairing implements strategy (c), delegating the search for a
// lone-position's opposite-side partner in another lone-sided zone to the
// Zone Partitioner.
func crossZonePairing(
	zones map[model.ZoneID]model.Zone,
	byID map[model.PositionID]model.Position,
	minNetProfit float64,
	build func([]model.PositionID, string) model.Candidate,
) []model.Candidate {
	var out []model.Candidate
	for _, z := range zone.LoneSided(zones) {
		var loneID model.PositionID
		var side model.Side
		switch {
		case len(z.Buys) == 1:
			loneID, side = z.Buys[0], model.Buy
		case len(z.Sells) == 1:
			loneID, side = z.Sells[0], model.Sell
		default:
			continue
		}
		partnerID, ok := zone.CrossZonePartner(zones, z.ID, side, byID)
		if !ok {
			continue
		}
		if !DensityGuard(zones, z.ID) {
			continue
		}
		c := build([]model.PositionID{loneID, partnerID}, "cross_zone")
		if quickAccept(c.NetPnL(), minNetProfit) {
			out = append(out, c)
		}
	}
	return out
}

// multiHelperAugmentation implements strategy (d): for each problem
// position, greedily accumulate up to MaxHelpers helpers, drawn from every
// unmatched profitable opposite-side position ordered by descending profit
// (not only the ones the purpose pass already flagged as NeedsHelpFrom),
// until the group clears minNetProfit scaled by HelperEarlyExitFactor, then
// stop — a cheap stand-in for searching every subset of helpers. A position
// consumed by one problem's group is never reused as a helper for another.
func multiHelperAugmentation(
	positions []model.Position,
	purposes map[model.PositionID]model.Purpose,
	byID map[model.PositionID]model.Position,
	minNetProfit float64,
	cfg Config,
	build func([]model.PositionID, string) model.Candidate,
) []model.Candidate {
	var out []model.Candidate
	target := minNetProfit * cfg.HelperEarlyExitFactor

	used := make(map[model.PositionID]struct{})

	for _, problem := range positions {
		if purposes[problem.ID].Kind != model.ProblemPosition {
			continue
		}
		var helpers []model.Position
		for _, p := range positions {
			if p.ID == problem.ID {
				continue
			}
			if _, taken := used[p.ID]; taken {
				continue
			}
			if p.Side == problem.Side || p.UnrealizedPnL <= 0 {
				continue
			}
			helpers = append(helpers, p)
		}
		if len(helpers) == 0 {
			continue
		}
		sort.Slice(helpers, func(i, j int) bool { return helpers[i].UnrealizedPnL > helpers[j].UnrealizedPnL })

		members := []model.PositionID{problem.ID}
		for _, h := range helpers {
			if len(members)-1 >= cfg.MaxHelpers {
				break
			}
			members = append(members, h.ID)
			c := build(members, "multi_helper")
			if c.NetPnL() >= target {
				out = append(out, c)
				for _, id := range members {
					used[id] = struct{}{}
				}
				break
			}
		}
	}
	return out
}

// positiveCombinationSearch implements strategy (e): a greedy search that
// grows one group of positions — profitable ones first, then the smallest
// losers that still leave the group net-non-negative — up to
// MaxCombinationSize members (capped by the profile's enumeration limit),
// and returns the grown prefix with the highest net pnl. A member whose
// addition would fail balance.NonRegresses is skipped; there is no second
// pass without that check. The evaluator re-checks balance as a hard
// invariant regardless.
func positiveCombinationSearch(
	positions []model.Position,
	minNetProfit float64,
	cfg Config,
	profile Profile,
	build func([]model.PositionID, string) model.Candidate,
) []model.Candidate {
	ordered := make([]model.Position, len(positions))
	copy(ordered, positions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].UnrealizedPnL > ordered[j].UnrealizedPnL })

	limit := cfg.MaxCombinationSize
	if limit > profile.EnumerationLimit {
		limit = profile.EnumerationLimit
	}

	currentBuys, currentSells := model.CountBySide(positions)

	var out []model.Candidate
	var members []model.PositionID
	var closedBuys, closedSells int
	var best model.Candidate
	bestSet := false

	for _, p := range ordered {
		if len(members) >= limit {
			break
		}
		trial := append(append([]model.PositionID{}, members...), p.ID)
		c := build(trial, "positive_combination")
		if c.NetPnL() < 0 {
			continue // never widen into a net-negative group
		}
		wouldBuys, wouldSells := closedBuys, closedSells
		if p.Side == model.Buy {
			wouldBuys++
		} else {
			wouldSells++
		}
		if !balance.NonRegresses(currentBuys, currentSells, wouldBuys, wouldSells) {
			continue // soft preference: skip a member that would hurt balance
		}
		members = trial
		closedBuys, closedSells = wouldBuys, wouldSells
		if !bestSet || c.NetPnL() > best.NetPnL() {
			best = c
			bestSet = true
		}
	}

	if bestSet && quickAccept(best.NetPnL(), minNetProfit) {
		out = append(out, best)
	}
	return out
}

// DensityGuard implements the soft clustering check supplemented from
// hedge_pairing_closer.py's dropped density/distribution validation: it
// rejects a target zone whose current occupancy is more than double the
// average occupancy across all zones. Only the cross-zone strategy consults
// it, before accepting a candidate; it is never an evaluator-level
// invariant.
func DensityGuard(zones map[model.ZoneID]model.Zone, target model.ZoneID) bool {
	if len(zones) == 0 {
		return true
	}
	var total int
	for _, z := range zones {
		total += z.Count()
	}
	average := float64(total) / float64(len(zones))
	if average <= 0 {
		return true
	}
	z, ok := zones[target]
	if !ok {
		return true
	}
	return float64(z.Count()) <= 2*average
}
