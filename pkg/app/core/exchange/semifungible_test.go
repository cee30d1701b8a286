package exchange_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

var (
	goldID  = common.HexToHash("0x10")
	goldID2 = common.HexToHash("0x11")
)

// semiVenue builds a semi-fungible engine: alice and bob hold the gold
// series, everyone has payment funds and the custody allowance.
func semiVenue(t *testing.T) (*exchange.Engine, *token.SemiFungible, *token.Fungible) {
	t.Helper()

	reg := token.NewRegistry()
	gold := token.NewSemiFungible("GOLD")
	usdx := token.NewFungible("USDX")
	if err := reg.RegisterSemiFungible(gold); err != nil {
		t.Fatalf("register GOLD: %v", err)
	}
	if err := reg.RegisterFungible(usdx); err != nil {
		t.Fatalf("register USDX: %v", err)
	}

	eng, err := exchange.NewSemiFungibleEngine("semifungible", reg, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for _, addr := range []common.Address{alice, bob} {
		if err := gold.Mint(addr, goldID, 500); err != nil {
			t.Fatalf("mint GOLD: %v", err)
		}
	}
	for _, addr := range []common.Address{alice, bob, carol} {
		if err := usdx.Mint(addr, 10_000); err != nil {
			t.Fatalf("mint USDX: %v", err)
		}
		if err := usdx.Approve(addr, eng.Custody(), 1_000_000); err != nil {
			t.Fatalf("approve USDX: %v", err)
		}
	}
	gold.SetApprovalForAll(alice, eng.Custody(), true)
	return eng, gold, usdx
}

func TestSemiFungibleCreateEscrowsSeries(t *testing.T) {
	eng, gold, _ := semiVenue(t)

	ex, err := eng.CreateExchange(alice, "gold-sale", "GOLD", "USDX", goldID, 200, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ex.Amount != 200 {
		t.Errorf("amount = %d, want 200", ex.Amount)
	}
	if got := gold.BalanceOf(alice, goldID); got != 300 {
		t.Errorf("alice GOLD = %d, want 300", got)
	}
	if got := gold.BalanceOf(eng.Custody(), goldID); got != 200 {
		t.Errorf("custody GOLD = %d, want 200", got)
	}
}

func TestSemiFungiblePreconditions(t *testing.T) {
	eng, _, _ := semiVenue(t)

	if _, err := eng.CreateExchange(alice, "x", "GOLD", "USDX", goldID, 9_000, 3); !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Errorf("over-balance: got %v, want ErrInsufficientBalance", err)
	}
	// Bob holds the series but never approved custody.
	if _, err := eng.CreateExchange(bob, "x", "GOLD", "USDX", goldID, 100, 3); !errors.Is(err, exchange.ErrNotApproved) {
		t.Errorf("not approved: got %v, want ErrNotApproved", err)
	}
	if _, err := eng.CreateExchange(alice, "x", "GOLD", "USDX", goldID, 100, 0); !errors.Is(err, exchange.ErrInvalidPrice) {
		t.Errorf("zero price: got %v, want ErrInvalidPrice", err)
	}
}

func TestSemiFungibleRoundTrip(t *testing.T) {
	eng, gold, usdx := semiVenue(t)

	ex, err := eng.CreateExchange(alice, "gold-sale", "GOLD", "USDX", goldID, 200, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Alice asks 50 units at 4, carol lifts the offer.
	sell, err := eng.PlaceSellingOffer(alice, ex.ID, goldID, 50, 4)
	if err != nil {
		t.Fatalf("place sell: %v", err)
	}
	if err := eng.BuyFromOffer(carol, ex.ID, sell.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := gold.BalanceOf(carol, goldID); got != 50 {
		t.Errorf("carol GOLD = %d, want 50", got)
	}
	if got := usdx.BalanceOf(alice); got != 10_200 {
		t.Errorf("alice USDX = %d, want 10200", got)
	}

	// Carol bids 30 units at 5; bob needs approval before he can fill.
	buy, err := eng.PlaceBuyingOffer(carol, ex.ID, goldID, 30, 5)
	if err != nil {
		t.Fatalf("place buy: %v", err)
	}
	if err := eng.SellFromOffer(bob, ex.ID, buy.ID); !errors.Is(err, exchange.ErrNotApproved) {
		t.Errorf("unapproved taker: got %v, want ErrNotApproved", err)
	}
	gold.SetApprovalForAll(bob, eng.Custody(), true)
	if err := eng.SellFromOffer(bob, ex.ID, buy.ID); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if got := gold.BalanceOf(carol, goldID); got != 80 {
		t.Errorf("carol GOLD = %d, want 80", got)
	}
	if got := gold.BalanceOf(bob, goldID); got != 470 {
		t.Errorf("bob GOLD = %d, want 470", got)
	}
	if got := usdx.BalanceOf(bob); got != 10_150 {
		t.Errorf("bob USDX = %d, want 10150", got)
	}
	if got := usdx.BalanceOf(eng.Custody()); got != 0 {
		t.Errorf("custody USDX = %d, want 0", got)
	}
}

func TestSemiFungibleOfferOnSecondSeries(t *testing.T) {
	eng, gold, usdx := semiVenue(t)

	if err := gold.Mint(bob, goldID2, 100); err != nil {
		t.Fatalf("mint second series: %v", err)
	}
	gold.SetApprovalForAll(bob, eng.Custody(), true)

	ex, err := eng.CreateExchange(alice, "gold-sale", "GOLD", "USDX", goldID, 200, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Bob asks 40 units of the second series on alice's exchange.
	sell, err := eng.PlaceSellingOffer(bob, ex.ID, goldID2, 40, 2)
	if err != nil {
		t.Fatalf("place sell: %v", err)
	}
	if sell.TokenID != goldID2 {
		t.Errorf("offer token id = %s, want goldID2", sell.TokenID.Hex())
	}
	if got := gold.BalanceOf(eng.Custody(), goldID2); got != 40 {
		t.Errorf("custody goldID2 = %d, want 40", got)
	}

	// Cancelling refunds the second series and leaves the listing escrow
	// untouched.
	if err := eng.CancelSellingOffer(bob, ex.ID, sell.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := gold.BalanceOf(bob, goldID2); got != 100 {
		t.Errorf("bob goldID2 after cancel = %d, want 100", got)
	}
	if got := gold.BalanceOf(eng.Custody(), goldID); got != 200 {
		t.Errorf("custody goldID = %d, want 200", got)
	}

	// Placed again and lifted, the second series settles end to end.
	sell2, err := eng.PlaceSellingOffer(bob, ex.ID, goldID2, 40, 2)
	if err != nil {
		t.Fatalf("place sell again: %v", err)
	}
	if err := eng.BuyFromOffer(carol, ex.ID, sell2.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := gold.BalanceOf(carol, goldID2); got != 40 {
		t.Errorf("carol goldID2 = %d, want 40", got)
	}
	if got := usdx.BalanceOf(bob); got != 10_080 {
		t.Errorf("bob USDX = %d, want 10080", got)
	}

	// A bid pinned to the second series fills from bob's remaining units.
	buy, err := eng.PlaceBuyingOffer(carol, ex.ID, goldID2, 20, 3)
	if err != nil {
		t.Fatalf("place buy: %v", err)
	}
	if err := eng.SellFromOffer(bob, ex.ID, buy.ID); err != nil {
		t.Fatalf("sell into bid: %v", err)
	}
	if got := gold.BalanceOf(carol, goldID2); got != 60 {
		t.Errorf("carol goldID2 = %d, want 60", got)
	}
	if got := gold.BalanceOf(bob, goldID2); got != 40 {
		t.Errorf("bob goldID2 = %d, want 40", got)
	}
	if got := usdx.BalanceOf(bob); got != 10_140 {
		t.Errorf("bob USDX = %d, want 10140", got)
	}
	if got := usdx.BalanceOf(eng.Custody()); got != 0 {
		t.Errorf("custody USDX = %d, want 0", got)
	}
}
