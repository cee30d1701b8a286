package exchange_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

var (
	deed1 = common.HexToHash("0x01")
	deed2 = common.HexToHash("0x02")
)

// uniqueVenue builds a unique engine: alice owns deed1, bob owns deed2,
// everyone holds payment funds and has the custody allowance set.
func uniqueVenue(t *testing.T) (*exchange.Engine, *token.Unique, *token.Fungible) {
	t.Helper()

	reg := token.NewRegistry()
	deeds := token.NewUnique("DEED")
	usdx := token.NewFungible("USDX")
	if err := reg.RegisterUnique(deeds); err != nil {
		t.Fatalf("register DEED: %v", err)
	}
	if err := reg.RegisterFungible(usdx); err != nil {
		t.Fatalf("register USDX: %v", err)
	}

	eng, err := exchange.NewUniqueEngine("unique", reg, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if err := deeds.Mint(alice, deed1); err != nil {
		t.Fatalf("mint deed1: %v", err)
	}
	if err := deeds.Mint(bob, deed2); err != nil {
		t.Fatalf("mint deed2: %v", err)
	}
	for _, addr := range []common.Address{alice, bob, carol} {
		if err := usdx.Mint(addr, 10_000); err != nil {
			t.Fatalf("mint USDX: %v", err)
		}
		if err := usdx.Approve(addr, eng.Custody(), 1_000_000); err != nil {
			t.Fatalf("approve USDX: %v", err)
		}
	}
	deeds.SetApprovalForAll(alice, eng.Custody(), true)
	return eng, deeds, usdx
}

func TestUniqueCreatePinsAmountToOne(t *testing.T) {
	eng, deeds, _ := uniqueVenue(t)

	ex, err := eng.CreateExchange(alice, "deed-sale", "DEED", "USDX", deed1, 99, 500)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ex.Amount != 1 {
		t.Errorf("amount = %d, want 1", ex.Amount)
	}
	owner, err := deeds.OwnerOf(deed1)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != eng.Custody() {
		t.Errorf("deed1 owner = %s, want custody", owner.Hex())
	}
}

func TestUniqueCreateRequiresOwnershipAndApproval(t *testing.T) {
	eng, _, _ := uniqueVenue(t)

	// Bob does not own deed1.
	if _, err := eng.CreateExchange(bob, "x", "DEED", "USDX", deed1, 1, 500); !errors.Is(err, exchange.ErrNotOwner) {
		t.Errorf("not owner: got %v, want ErrNotOwner", err)
	}
	// Bob owns deed2 but never approved custody.
	if _, err := eng.CreateExchange(bob, "x", "DEED", "USDX", deed2, 1, 500); !errors.Is(err, exchange.ErrNotApproved) {
		t.Errorf("not approved: got %v, want ErrNotApproved", err)
	}
	// Unknown token id propagates from the ledger.
	if _, err := eng.CreateExchange(alice, "x", "DEED", "USDX", common.HexToHash("0xff"), 1, 500); !errors.Is(err, token.ErrNoSuchToken) {
		t.Errorf("unknown id: got %v, want token.ErrNoSuchToken", err)
	}

	// Ownership is checked before the price.
	if _, err := eng.CreateExchange(bob, "x", "DEED", "USDX", deed1, 1, 0); !errors.Is(err, exchange.ErrNotOwner) {
		t.Errorf("not owner with zero price: got %v, want ErrNotOwner", err)
	}
}

func TestUniqueSellingOfferRequiresOwnership(t *testing.T) {
	eng, _, _ := uniqueVenue(t)

	ex, err := eng.CreateExchange(alice, "deed-sale", "DEED", "USDX", deed1, 1, 500)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The listed deed moved into custody at creation; even its lister
	// cannot offer it again.
	if _, err := eng.PlaceSellingOffer(alice, ex.ID, deed1, 1, 700); !errors.Is(err, exchange.ErrNotOwner) {
		t.Errorf("listed deed: got %v, want ErrNotOwner", err)
	}
	// Nor can she offer a deed someone else owns.
	if _, err := eng.PlaceSellingOffer(alice, ex.ID, deed2, 1, 700); !errors.Is(err, exchange.ErrNotOwner) {
		t.Errorf("foreign deed: got %v, want ErrNotOwner", err)
	}
	if n := len(eng.ListOffers(ex.ID)); n != 0 {
		t.Errorf("offers recorded after failures: %d", n)
	}
}

func TestUniqueBuyFromOfferTransfersDeed(t *testing.T) {
	eng, deeds, usdx := uniqueVenue(t)

	ex, err := eng.CreateExchange(alice, "deed-sale", "DEED", "USDX", deed1, 1, 500)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Bob sells his own deed on alice's exchange; the offer names a token
	// id different from the listed one.
	deeds.SetApprovalForAll(bob, eng.Custody(), true)
	o, err := eng.PlaceSellingOffer(bob, ex.ID, deed2, 1, 700)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if o.TokenID != deed2 {
		t.Errorf("offer token id = %s, want deed2", o.TokenID.Hex())
	}

	if err := eng.BuyFromOffer(carol, ex.ID, o.ID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	owner, _ := deeds.OwnerOf(deed2)
	if owner != carol {
		t.Errorf("deed2 owner = %s, want carol", owner.Hex())
	}
	if got := usdx.BalanceOf(bob); got != 10_700 {
		t.Errorf("bob USDX = %d, want 10700", got)
	}
	if got := usdx.BalanceOf(carol); got != 9_300 {
		t.Errorf("carol USDX = %d, want 9300", got)
	}
	// The listed deed is untouched by the side trade.
	owner, _ = deeds.OwnerOf(deed1)
	if owner != eng.Custody() {
		t.Errorf("deed1 owner = %s, want custody", owner.Hex())
	}
}

func TestUniqueCancelSellingOfferReturnsDeed(t *testing.T) {
	eng, deeds, _ := uniqueVenue(t)

	ex, err := eng.CreateExchange(alice, "deed-sale", "DEED", "USDX", deed1, 1, 500)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	deeds.SetApprovalForAll(bob, eng.Custody(), true)
	o, err := eng.PlaceSellingOffer(bob, ex.ID, deed2, 1, 650)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if owner, _ := deeds.OwnerOf(deed2); owner != eng.Custody() {
		t.Errorf("deed2 owner = %s, want custody", owner.Hex())
	}

	if err := eng.CancelSellingOffer(bob, ex.ID, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if owner, _ := deeds.OwnerOf(deed2); owner != bob {
		t.Errorf("deed2 owner after cancel = %s, want bob", owner.Hex())
	}
	if err := eng.BuyFromOffer(carol, ex.ID, o.ID); !errors.Is(err, exchange.ErrOfferNotActive) {
		t.Errorf("match after cancel: got %v, want ErrOfferNotActive", err)
	}
}

func TestUniqueSellFromOfferChecksTakerApproval(t *testing.T) {
	eng, deeds, usdx := uniqueVenue(t)

	ex, err := eng.CreateExchange(alice, "deed-sale", "DEED", "USDX", deed1, 1, 500)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Carol bids for bob's deed.
	o, err := eng.PlaceBuyingOffer(carol, ex.ID, deed2, 1, 600)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	// Bob holds the deed but never granted custody approval.
	if err := eng.SellFromOffer(bob, ex.ID, o.ID); !errors.Is(err, exchange.ErrNotApproved) {
		t.Errorf("unapproved taker: got %v, want ErrNotApproved", err)
	}

	deeds.SetApprovalForAll(bob, eng.Custody(), true)
	if err := eng.SellFromOffer(bob, ex.ID, o.ID); err != nil {
		t.Fatalf("sell: %v", err)
	}
	owner, _ := deeds.OwnerOf(deed2)
	if owner != carol {
		t.Errorf("deed2 owner = %s, want carol", owner.Hex())
	}
	if got := usdx.BalanceOf(bob); got != 10_600 {
		t.Errorf("bob USDX = %d, want 10600", got)
	}
	if got := usdx.BalanceOf(carol); got != 9_400 {
		t.Errorf("carol USDX = %d, want 9400", got)
	}
}
