package exchange_test

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

// persistentVenue opens a fungible engine backed by a store at dir
func persistentVenue(t *testing.T, dir string) *exchange.Engine {
	t.Helper()

	reg := token.NewRegistry()
	baz := token.NewFungible("BAZ")
	usdx := token.NewFungible("USDX")
	reg.RegisterFungible(baz)
	reg.RegisterFungible(usdx)

	store, err := exchange.NewStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	eng, err := exchange.NewFungibleEngine("fungible", reg, store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	custody := eng.Custody()
	for _, addr := range []common.Address{alice, bob} {
		baz.Mint(addr, 1_000)
		usdx.Mint(addr, 10_000)
		baz.Approve(addr, custody, 1_000_000)
		usdx.Approve(addr, custody, 1_000_000)
	}
	return eng
}

func TestEngineStateSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fungible")

	eng := persistentVenue(t, dir)
	ex, err := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	buy, err := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 10, 7)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	sell, err := eng.PlaceSellingOffer(bob, ex.ID, common.Hash{}, 20, 6)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := eng.CancelBuyingOffer(bob, ex.ID, buy.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen: rows and counters come back from disk. Ledger balances are
	// consensus state and replay from blocks, so a fresh registry is fine.
	eng2 := persistentVenue(t, dir)
	defer eng2.Close()

	got, ok := eng2.GetExchange(ex.ID)
	if !ok {
		t.Fatal("exchange row lost")
	}
	if got.Name != "baz-usdx" || got.Amount != 100 || got.Price != 5 || got.Creator != alice {
		t.Errorf("exchange row mismatch: %+v", got)
	}

	gotBuy, ok := eng2.GetOffer(buy.ID)
	if !ok || gotBuy.Status != exchange.Cancelled {
		t.Errorf("cancelled offer not restored: ok=%v %+v", ok, gotBuy)
	}
	gotSell, ok := eng2.GetOffer(sell.ID)
	if !ok || gotSell.Status != exchange.Active {
		t.Errorf("active offer not restored: ok=%v %+v", ok, gotSell)
	}

	// Counters resume, no id reuse.
	ex2, err := eng2.CreateExchange(alice, "second", "BAZ", "USDX", common.Hash{}, 10, 2)
	if err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
	if ex2.ID != ex.ID+1 {
		t.Errorf("exchange id after reopen = %d, want %d", ex2.ID, ex.ID+1)
	}
	o, err := eng2.PlaceBuyingOffer(bob, ex2.ID, common.Hash{}, 1, 1)
	if err != nil {
		t.Fatalf("place after reopen: %v", err)
	}
	if o.ID != sell.ID+1 {
		t.Errorf("offer id after reopen = %d, want %d", o.ID, sell.ID+1)
	}
}
