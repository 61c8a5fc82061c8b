package zone

import (
	"testing"

	"github.com/isnooker21/huakuy-hedge-engine/internal/model"
)

func TestPartition_SinglePositionOneZone(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, OpenPrice: 1900.5},
	}
	zones := Partition(positions, 3.0)
	if len(zones) != 1 {
		t.Fatalf("len(zones) = %d, want 1", len(zones))
	}
	z := zones[model.ZoneID(633)] // floor(1900.5/3) = 633
	if len(z.Buys) != 1 {
		t.Fatalf("expected position placed in zone 633, got %+v", zones)
	}
}

func TestPartition_NoPositionInTwoZones(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, OpenPrice: 1900},
		{ID: 2, Side: model.Sell, OpenPrice: 1902},
		{ID: 3, Side: model.Buy, OpenPrice: 2000},
	}
	zones := Partition(positions, 3.0)
	seen := map[model.PositionID]int{}
	for _, z := range zones {
		for _, id := range z.Buys {
			seen[id]++
		}
		for _, id := range z.Sells {
			seen[id]++
		}
	}
	for _, p := range positions {
		if seen[p.ID] != 1 {
			t.Fatalf("position %v appeared in %d zones, want 1", p.ID, seen[p.ID])
		}
	}
}

func TestZoneBalance(t *testing.T) {
	balanced := model.Zone{Buys: []model.PositionID{1, 2}, Sells: []model.PositionID{3}}
	if balanced.Balance() != model.ZoneBalanced {
		t.Fatalf("got %v, want Balanced", balanced.Balance())
	}
	buyHeavy := model.Zone{Buys: []model.PositionID{1, 2, 3}, Sells: []model.PositionID{4}}
	if buyHeavy.Balance() != model.ZoneBuyHeavy {
		t.Fatalf("got %v, want BuyHeavy", buyHeavy.Balance())
	}
	sellHeavy := model.Zone{Buys: []model.PositionID{1}, Sells: []model.PositionID{2, 3, 4}}
	if sellHeavy.Balance() != model.ZoneSellHeavy {
		t.Fatalf("got %v, want SellHeavy", sellHeavy.Balance())
	}
}

func TestCrossZonePartner_FindsBestNetFromOtherLoneZone(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, OpenPrice: 1900, UnrealizedPnL: -5},
		{ID: 2, Side: model.Sell, OpenPrice: 1950, UnrealizedPnL: 3},
		{ID: 3, Side: model.Sell, OpenPrice: 2000, UnrealizedPnL: 9},
	}
	zones := Partition(positions, 3.0)
	byID := map[model.PositionID]model.Position{1: positions[0], 2: positions[1], 3: positions[2]}

	loneZoneID := model.ZoneID(633) // floor(1900/3)
	partner, ok := CrossZonePartner(zones, loneZoneID, model.Buy, byID)
	if !ok {
		t.Fatalf("expected a cross-zone partner")
	}
	if partner != 3 {
		t.Fatalf("got partner %v, want 3 (best net pnl)", partner)
	}
}

func TestLoneSided(t *testing.T) {
	positions := []model.Position{
		{ID: 1, Side: model.Buy, OpenPrice: 1900},
		{ID: 2, Side: model.Buy, OpenPrice: 1950},
		{ID: 3, Side: model.Sell, OpenPrice: 1950},
	}
	zones := Partition(positions, 3.0)
	lone := LoneSided(zones)
	if len(lone) != 1 {
		t.Fatalf("len(lone) = %d, want 1", len(lone))
	}
}
