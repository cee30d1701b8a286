package token_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	spender  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	receiver = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func TestFungibleTransfer(t *testing.T) {
	f := token.NewFungible("BAZ")
	if err := f.Mint(owner, 100); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := f.Transfer(owner, receiver, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := f.BalanceOf(owner); got != 60 {
		t.Errorf("owner = %d, want 60", got)
	}
	if got := f.BalanceOf(receiver); got != 40 {
		t.Errorf("receiver = %d, want 40", got)
	}

	if err := f.Transfer(owner, receiver, 100); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
	if err := f.Transfer(owner, receiver, 0); !errors.Is(err, token.ErrInvalidAmount) {
		t.Errorf("zero amount: got %v, want ErrInvalidAmount", err)
	}
}

func TestFungibleAllowance(t *testing.T) {
	f := token.NewFungible("BAZ")
	f.Mint(owner, 100)

	// No allowance yet.
	if err := f.TransferFrom(spender, owner, receiver, 10); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("no allowance: got %v, want ErrInsufficientAllowance", err)
	}

	f.Approve(owner, spender, 50)
	if err := f.TransferFrom(spender, owner, receiver, 30); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := f.Allowance(owner, spender); got != 20 {
		t.Errorf("allowance = %d, want 20", got)
	}
	if err := f.TransferFrom(spender, owner, receiver, 30); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("over allowance: got %v, want ErrInsufficientAllowance", err)
	}

	// The holder moving their own funds needs no allowance.
	if err := f.TransferFrom(owner, owner, receiver, 30); err != nil {
		t.Errorf("self-operated: %v", err)
	}
}

func TestUniqueOwnership(t *testing.T) {
	u := token.NewUnique("DEED")
	id := common.HexToHash("0x01")

	if err := u.Mint(owner, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := u.Mint(owner, id); err == nil {
		t.Error("double mint of the same id succeeded")
	}

	got, err := u.OwnerOf(id)
	if err != nil || got != owner {
		t.Fatalf("OwnerOf = %v, %v", got, err)
	}
	if _, err := u.OwnerOf(common.HexToHash("0xff")); !errors.Is(err, token.ErrNoSuchToken) {
		t.Errorf("unknown id: got %v, want ErrNoSuchToken", err)
	}

	// Operator needs approval-for-all unless moving their own token.
	if err := u.TransferFrom(spender, owner, receiver, id); !errors.Is(err, token.ErrNotApproved) {
		t.Errorf("unapproved operator: got %v, want ErrNotApproved", err)
	}
	u.SetApprovalForAll(owner, spender, true)
	if err := u.TransferFrom(spender, owner, receiver, id); err != nil {
		t.Fatalf("approved transfer: %v", err)
	}
	got, _ = u.OwnerOf(id)
	if got != receiver {
		t.Errorf("owner after transfer = %v, want receiver", got)
	}

	// The stale approval does not cover the new owner's token.
	if err := u.TransferFrom(spender, receiver, owner, id); !errors.Is(err, token.ErrNotApproved) {
		t.Errorf("stale approval: got %v, want ErrNotApproved", err)
	}
	// And from cannot be a non-owner.
	if err := u.TransferFrom(owner, owner, receiver, id); !errors.Is(err, token.ErrNotOwner) {
		t.Errorf("non-owner from: got %v, want ErrNotOwner", err)
	}
}

func TestSemiFungibleBalances(t *testing.T) {
	s := token.NewSemiFungible("GOLD")
	id := common.HexToHash("0x10")

	if err := s.Mint(owner, id, 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := s.BalanceOf(owner, id); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}

	if err := s.TransferFrom(spender, owner, receiver, id, 10); !errors.Is(err, token.ErrNotApproved) {
		t.Errorf("unapproved operator: got %v, want ErrNotApproved", err)
	}
	s.SetApprovalForAll(owner, spender, true)
	if err := s.TransferFrom(spender, owner, receiver, id, 10); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := s.TransferFrom(spender, owner, receiver, id, 1_000); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
	if got := s.BalanceOf(receiver, id); got != 10 {
		t.Errorf("receiver = %d, want 10", got)
	}
}

func TestRegistryResolution(t *testing.T) {
	reg := token.NewRegistry()
	if err := reg.RegisterFungible(token.NewFungible("BAZ")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterFungible(token.NewFungible("BAZ")); !errors.Is(err, token.ErrLedgerExists) {
		t.Errorf("duplicate: got %v, want ErrLedgerExists", err)
	}
	if _, err := reg.Fungible("BAZ"); err != nil {
		t.Errorf("lookup: %v", err)
	}
	if _, err := reg.Fungible("NOPE"); !errors.Is(err, token.ErrUnknownLedger) {
		t.Errorf("unknown: got %v, want ErrUnknownLedger", err)
	}
	// Symbols are namespaced per class.
	if _, err := reg.Unique("BAZ"); !errors.Is(err, token.ErrUnknownLedger) {
		t.Errorf("cross-class lookup: got %v, want ErrUnknownLedger", err)
	}
}

func TestStateDigestChangesWithState(t *testing.T) {
	f := token.NewFungible("BAZ")
	d0 := f.StateDigest()
	f.Mint(owner, 100)
	d1 := f.StateDigest()
	if d0 == d1 {
		t.Error("digest unchanged after mint")
	}
	f.Transfer(owner, receiver, 1)
	if d1 == f.StateDigest() {
		t.Error("digest unchanged after transfer")
	}
}
