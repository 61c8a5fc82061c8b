// Package zone implements the Zone Partitioner: a pure function
// grouping positions into fixed-width price buckets and exposing queries
// over buy/sell imbalance and cross-zone pairing candidates.
package zone

import (
	"math"
	"sort"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

// Partition groups positions into zones keyed by
// floor(open_price / width). Every position belongs to exactly one zone.
func Partition(positions []model.Position, width float64) map[model.ZoneID]model.Zone {
	if width <= 0 {
		width = 3.0
	}
	zones := make(map[model.ZoneID]model.Zone)
	for _, p := range positions {
		id := model.ZoneID(math.Floor(p.OpenPrice / width))
		z, ok := zones[id]
		if !ok {
			z = model.Zone{ID: id}
		}
		if p.Side == model.Buy {
			z.Buys = append(z.Buys, p.ID)
		} else {
			z.Sells = append(z.Sells, p.ID)
		}
		zones[id] = z
	}
	return zones
}

// Sorted returns the zones ordered by ascending ZoneID, for deterministic
// iteration (e.g. in logs or tests).
func Sorted(zones map[model.ZoneID]model.Zone) []model.Zone {
	out := make([]model.Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoneSided returns every zone holding exactly one position.
func LoneSided(zones map[model.ZoneID]model.Zone) []model.Zone {
	var out []model.Zone
	for _, z := range zones {
		if z.IsLoneSided() {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CrossZonePartner finds the best-net opposite-side candidate for a lone
// position living in zone `from`, drawn from any other zone that is itself
// lone-sided on the opposite side: for each lone position in a single-side
// zone, search for an opposite-side partner in another zone. byID resolves
// a position id to its full Position for pnl lookup.
// Returns the partner id and true, or zero value and false if none exists.
func CrossZonePartner(
	zones map[model.ZoneID]model.Zone,
	from model.ZoneID,
	lonePositionSide model.Side,
	byID map[model.PositionID]model.Position,
) (model.PositionID, bool) {
	var best model.PositionID
	found := false
	bestPnL := math.Inf(-1)

	opposite := lonePositionSide.Opposite()

	for zoneID, z := range zones {
		if zoneID == from {
			continue
		}
		candidates := z.Sells
		if opposite == model.Buy {
			candidates = z.Buys
		}
		if len(candidates) != 1 || z.Count() != 1 {
			continue // only pair with zones that are themselves lone-sided
		}
		candidateID := candidates[0]
		pos, ok := byID[candidateID]
		if !ok {
			continue
		}
		if pos.UnrealizedPnL > bestPnL {
			bestPnL = pos.UnrealizedPnL
			best = candidateID
			found = true
		}
	}
	return best, found
}
