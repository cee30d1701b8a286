package exchange_test

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	carol = common.HexToAddress("0xCA40100000000000000000000000000000000003")
)

// fungibleVenue builds a fungible engine over fresh BAZ/USDX ledgers with
// funded, custody-approved accounts.
func fungibleVenue(t *testing.T) (*exchange.Engine, *token.Fungible, *token.Fungible) {
	t.Helper()

	reg := token.NewRegistry()
	baz := token.NewFungible("BAZ")
	usdx := token.NewFungible("USDX")
	if err := reg.RegisterFungible(baz); err != nil {
		t.Fatalf("register BAZ: %v", err)
	}
	if err := reg.RegisterFungible(usdx); err != nil {
		t.Fatalf("register USDX: %v", err)
	}

	eng, err := exchange.NewFungibleEngine("fungible", reg, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	custody := eng.Custody()

	for _, addr := range []common.Address{alice, bob, carol} {
		if err := baz.Mint(addr, 1_000); err != nil {
			t.Fatalf("mint BAZ: %v", err)
		}
		if err := usdx.Mint(addr, 10_000); err != nil {
			t.Fatalf("mint USDX: %v", err)
		}
		if err := baz.Approve(addr, custody, 1_000_000); err != nil {
			t.Fatalf("approve BAZ: %v", err)
		}
		if err := usdx.Approve(addr, custody, 1_000_000); err != nil {
			t.Fatalf("approve USDX: %v", err)
		}
	}
	return eng, baz, usdx
}

func TestCreateExchangeEscrowsAsset(t *testing.T) {
	eng, baz, _ := fungibleVenue(t)

	ex, err := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ex.ID != 1 {
		t.Errorf("first exchange id = %d, want 1", ex.ID)
	}
	if got := baz.BalanceOf(alice); got != 900 {
		t.Errorf("alice BAZ = %d, want 900", got)
	}
	if got := baz.BalanceOf(eng.Custody()); got != 100 {
		t.Errorf("custody BAZ = %d, want 100", got)
	}
}

func TestCreateExchangeRejectsBadInput(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	if _, err := eng.CreateExchange(alice, "x", "BAZ", "USDX", common.Hash{}, 100, 0); !errors.Is(err, exchange.ErrInvalidPrice) {
		t.Errorf("zero price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := eng.CreateExchange(alice, "x", "BAZ", "USDX", common.Hash{}, 100, -3); !errors.Is(err, exchange.ErrInvalidPrice) {
		t.Errorf("negative price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := eng.CreateExchange(alice, "x", "BAZ", "USDX", common.Hash{}, 5_000, 1); !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Errorf("over-balance: got %v, want ErrInsufficientBalance", err)
	}
	// Balance is checked before price, matching the precondition order.
	if _, err := eng.CreateExchange(alice, "x", "BAZ", "USDX", common.Hash{}, 5_000, 0); !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Errorf("over-balance and zero price: got %v, want ErrInsufficientBalance", err)
	}
	if _, err := eng.CreateExchange(alice, "x", "BAZ", "NOPE", common.Hash{}, 100, 1); !errors.Is(err, token.ErrUnknownLedger) {
		t.Errorf("unknown payment ledger: got %v, want ErrUnknownLedger", err)
	}
	// Nothing should have been recorded.
	if n := len(eng.ListExchanges()); n != 0 {
		t.Errorf("exchanges recorded after failures: %d", n)
	}
}

func TestPlaceBuyingOfferEscrowsPayment(t *testing.T) {
	eng, _, usdx := fungibleVenue(t)

	ex, err := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	o, err := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 10, 7)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if o.Kind != exchange.Buying || o.Status != exchange.Active {
		t.Errorf("offer kind=%v status=%v, want Buying/Active", o.Kind, o.Status)
	}
	if got := usdx.BalanceOf(bob); got != 10_000-70 {
		t.Errorf("bob USDX = %d, want %d", got, 10_000-70)
	}
	if got := usdx.BalanceOf(eng.Custody()); got != 70 {
		t.Errorf("custody USDX = %d, want 70", got)
	}
}

func TestPlaceOfferAgainstUnknownExchange(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	if _, err := eng.PlaceBuyingOffer(bob, 42, common.Hash{}, 10, 7); !errors.Is(err, token.ErrUnknownLedger) {
		t.Errorf("buying: got %v, want ErrUnknownLedger", err)
	}
	if _, err := eng.PlaceSellingOffer(bob, 42, common.Hash{}, 10, 7); !errors.Is(err, token.ErrUnknownLedger) {
		t.Errorf("selling: got %v, want ErrUnknownLedger", err)
	}
}

func TestPlaceSellingOfferEscrowsAsset(t *testing.T) {
	eng, baz, _ := fungibleVenue(t)

	ex, err := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	o, err := eng.PlaceSellingOffer(bob, ex.ID, common.Hash{}, 50, 6)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if o.Kind != exchange.Selling {
		t.Errorf("offer kind = %v, want Selling", o.Kind)
	}
	if got := baz.BalanceOf(bob); got != 950 {
		t.Errorf("bob BAZ = %d, want 950", got)
	}
	// Custody holds alice's 100 listing escrow plus bob's 50 ask escrow.
	if got := baz.BalanceOf(eng.Custody()); got != 150 {
		t.Errorf("custody BAZ = %d, want 150", got)
	}
}

func TestCancelBuyingOfferRefunds(t *testing.T) {
	eng, _, usdx := fungibleVenue(t)

	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	o, err := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 10, 7)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if err := eng.CancelBuyingOffer(bob, ex.ID, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := usdx.BalanceOf(bob); got != 10_000 {
		t.Errorf("bob USDX after refund = %d, want 10000", got)
	}
	got, _ := eng.GetOffer(o.ID)
	if got.Status != exchange.Cancelled {
		t.Errorf("status = %v, want Cancelled", got.Status)
	}
	// Second cancel hits the terminal status.
	if err := eng.CancelBuyingOffer(bob, ex.ID, o.ID); !errors.Is(err, exchange.ErrOfferNotActive) {
		t.Errorf("double cancel: got %v, want ErrOfferNotActive", err)
	}
}

func TestCancelPreconditionOrder(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	o, err := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 10, 7)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if err := eng.CancelBuyingOffer(bob, ex.ID, 999); !errors.Is(err, exchange.ErrOfferNotActive) {
		t.Errorf("missing offer: got %v, want ErrOfferNotActive", err)
	}
	// Wrong caller outranks the wrong exchange id.
	if err := eng.CancelBuyingOffer(carol, ex.ID+1, o.ID); !errors.Is(err, exchange.ErrNotOwner) {
		t.Errorf("stranger cancel: got %v, want ErrNotOwner", err)
	}
	if err := eng.CancelBuyingOffer(bob, ex.ID+1, o.ID); !errors.Is(err, exchange.ErrExchangeMismatch) {
		t.Errorf("wrong exchange: got %v, want ErrExchangeMismatch", err)
	}
	if err := eng.CancelSellingOffer(bob, ex.ID, o.ID); !errors.Is(err, exchange.ErrWrongOfferKind) {
		t.Errorf("wrong kind: got %v, want ErrWrongOfferKind", err)
	}
	// The offer survived every rejected attempt.
	got, _ := eng.GetOffer(o.ID)
	if got.Status != exchange.Active {
		t.Errorf("status after rejected cancels = %v, want Active", got.Status)
	}
}

func TestBuyFromOfferSettles(t *testing.T) {
	eng, baz, usdx := fungibleVenue(t)

	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	o, err := eng.PlaceSellingOffer(bob, ex.ID, common.Hash{}, 50, 6)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	var settled []exchange.Settlement
	eng.OnSettlement = func(s exchange.Settlement) { settled = append(settled, s) }

	if err := eng.BuyFromOffer(carol, ex.ID, o.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// Carol pays bob directly, the escrowed asset leaves custody for carol.
	if got := usdx.BalanceOf(carol); got != 10_000-300 {
		t.Errorf("carol USDX = %d, want %d", got, 10_000-300)
	}
	if got := usdx.BalanceOf(bob); got != 10_000+300 {
		t.Errorf("bob USDX = %d, want %d", got, 10_000+300)
	}
	if got := baz.BalanceOf(carol); got != 1_050 {
		t.Errorf("carol BAZ = %d, want 1050", got)
	}
	// Only alice's listing escrow remains in custody.
	if got := baz.BalanceOf(eng.Custody()); got != 100 {
		t.Errorf("custody BAZ = %d, want 100", got)
	}

	got, _ := eng.GetOffer(o.ID)
	if got.Status != exchange.Filled {
		t.Errorf("status = %v, want Filled", got.Status)
	}
	if len(settled) != 1 {
		t.Fatalf("settlements = %d, want 1", len(settled))
	}
	s := settled[0]
	if s.Maker != bob || s.Taker != carol || s.Kind != exchange.Selling || s.Amount != 50 || s.Price != 6 {
		t.Errorf("unexpected settlement %+v", s)
	}

	// Settled offers cannot be matched or cancelled again.
	if err := eng.BuyFromOffer(carol, ex.ID, o.ID); !errors.Is(err, exchange.ErrOfferNotActive) {
		t.Errorf("double settle: got %v, want ErrOfferNotActive", err)
	}
	if err := eng.CancelSellingOffer(bob, ex.ID, o.ID); !errors.Is(err, exchange.ErrOfferNotActive) {
		t.Errorf("cancel after settle: got %v, want ErrOfferNotActive", err)
	}
}

func TestSellFromOfferSettles(t *testing.T) {
	eng, baz, usdx := fungibleVenue(t)

	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	o, err := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 20, 8)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if err := eng.SellFromOffer(carol, ex.ID, o.ID); err != nil {
		t.Fatalf("sell: %v", err)
	}

	// Carol's asset goes to bob directly, the escrowed payment to carol.
	if got := baz.BalanceOf(carol); got != 1_000-20 {
		t.Errorf("carol BAZ = %d, want 980", got)
	}
	if got := baz.BalanceOf(bob); got != 1_020 {
		t.Errorf("bob BAZ = %d, want 1020", got)
	}
	if got := usdx.BalanceOf(carol); got != 10_000+160 {
		t.Errorf("carol USDX = %d, want %d", got, 10_000+160)
	}
	if got := usdx.BalanceOf(eng.Custody()); got != 0 {
		t.Errorf("custody USDX = %d, want 0", got)
	}
}

func TestMatchPreconditionOrder(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	sell, _ := eng.PlaceSellingOffer(bob, ex.ID, common.Hash{}, 10, 5)
	buy, _ := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 10, 5)

	if err := eng.BuyFromOffer(carol, ex.ID, 999); !errors.Is(err, exchange.ErrOfferNotActive) {
		t.Errorf("missing offer: got %v, want ErrOfferNotActive", err)
	}
	if err := eng.BuyFromOffer(carol, ex.ID+1, sell.ID); !errors.Is(err, exchange.ErrExchangeMismatch) {
		t.Errorf("wrong exchange: got %v, want ErrExchangeMismatch", err)
	}
	if err := eng.BuyFromOffer(carol, ex.ID, buy.ID); !errors.Is(err, exchange.ErrWrongOfferKind) {
		t.Errorf("buying a buying offer: got %v, want ErrWrongOfferKind", err)
	}
	if err := eng.SellFromOffer(carol, ex.ID, sell.ID); !errors.Is(err, exchange.ErrWrongOfferKind) {
		t.Errorf("selling to a selling offer: got %v, want ErrWrongOfferKind", err)
	}
}

func TestMatchWithoutAllowanceSurfacesLedgerError(t *testing.T) {
	eng, baz, usdx := fungibleVenue(t)

	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	o, _ := eng.PlaceSellingOffer(bob, ex.ID, common.Hash{}, 50, 6)

	// Carol revokes her payment allowance; the failure comes from the
	// ledger, not an engine precondition.
	if err := usdx.Approve(carol, eng.Custody(), 0); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := eng.BuyFromOffer(carol, ex.ID, o.ID); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("got %v, want token.ErrInsufficientAllowance", err)
	}

	// The failed match left the offer live and the escrow intact.
	got, _ := eng.GetOffer(o.ID)
	if got.Status != exchange.Active {
		t.Errorf("status = %v, want Active", got.Status)
	}
	if bal := baz.BalanceOf(eng.Custody()); bal != 150 {
		t.Errorf("custody BAZ = %d, want 150", bal)
	}
}

func TestOfferIDsSharedAcrossKinds(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	b, _ := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 1, 1)
	s, _ := eng.PlaceSellingOffer(bob, ex.ID, common.Hash{}, 1, 1)
	b2, _ := eng.PlaceBuyingOffer(carol, ex.ID, common.Hash{}, 1, 1)

	if b.ID != 1 || s.ID != 2 || b2.ID != 3 {
		t.Errorf("offer ids = %d,%d,%d, want 1,2,3", b.ID, s.ID, b2.ID)
	}
}

func TestListOffersFiltersByExchange(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	ex1, _ := eng.CreateExchange(alice, "one", "BAZ", "USDX", common.Hash{}, 100, 5)
	ex2, _ := eng.CreateExchange(alice, "two", "BAZ", "USDX", common.Hash{}, 100, 5)
	eng.PlaceBuyingOffer(bob, ex1.ID, common.Hash{}, 1, 1)
	eng.PlaceBuyingOffer(bob, ex2.ID, common.Hash{}, 1, 1)
	eng.PlaceSellingOffer(carol, ex1.ID, common.Hash{}, 1, 1)

	if n := len(eng.ListOffers(ex1.ID)); n != 2 {
		t.Errorf("offers on ex1 = %d, want 2", n)
	}
	if n := len(eng.ListOffers(ex2.ID)); n != 1 {
		t.Errorf("offers on ex2 = %d, want 1", n)
	}
	if n := len(eng.ListOffers(-1)); n != 3 {
		t.Errorf("all offers = %d, want 3", n)
	}
}

func TestStateDigestTracksMutations(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	d0 := eng.StateDigest()
	ex, _ := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	d1 := eng.StateDigest()
	if d0 == d1 {
		t.Error("digest unchanged after create")
	}
	o, _ := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 10, 7)
	d2 := eng.StateDigest()
	if d1 == d2 {
		t.Error("digest unchanged after place")
	}
	eng.CancelBuyingOffer(bob, ex.ID, o.ID)
	d3 := eng.StateDigest()
	if d2 == d3 {
		t.Error("digest unchanged after cancel")
	}
	if d3 != eng.StateDigest() {
		t.Error("digest not stable across reads")
	}
}

func TestOfferTotalOverflowRejected(t *testing.T) {
	eng, _, _ := fungibleVenue(t)

	ex, err := eng.CreateExchange(alice, "baz-usdx", "BAZ", "USDX", common.Hash{}, 100, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// price * amount would wrap int64; no balance can ever cover it.
	if _, err := eng.PlaceBuyingOffer(bob, ex.ID, common.Hash{}, 4, math.MaxInt64/2); !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Errorf("overflowing bid: got %v, want ErrInsufficientBalance", err)
	}
	if _, err := eng.PlaceSellingOffer(bob, ex.ID, common.Hash{}, 4, math.MaxInt64/2); !errors.Is(err, exchange.ErrInvalidPrice) {
		t.Errorf("overflowing ask: got %v, want ErrInvalidPrice", err)
	}
	if n := len(eng.ListOffers(ex.ID)); n != 0 {
		t.Errorf("offers recorded after overflow: %d", n)
	}
}
