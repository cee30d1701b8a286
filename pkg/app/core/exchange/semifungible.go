package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

// semiOps trades quantities of one token id on a multi-token ledger.
// Like uniqueOps it requires approval-for-all before escrow.
type semiOps struct {
	ledgers *token.Registry
	custody common.Address
}

func (s semiOps) checkHolding(symbol string, holder common.Address, tokenID common.Hash, amount int64) error {
	led, err := s.ledgers.SemiFungible(symbol)
	if err != nil {
		return err
	}
	if led.BalanceOf(holder, tokenID) < amount {
		return ErrInsufficientBalance
	}
	return nil
}

func (s semiOps) checkApproval(symbol string, holder common.Address) error {
	led, err := s.ledgers.SemiFungible(symbol)
	if err != nil {
		return err
	}
	if !led.IsApprovedForAll(holder, s.custody) {
		return ErrNotApproved
	}
	return nil
}

func (s semiOps) transfer(symbol string, from, to common.Address, tokenID common.Hash, amount int64) error {
	led, err := s.ledgers.SemiFungible(symbol)
	if err != nil {
		return err
	}
	return led.TransferFrom(s.custody, from, to, tokenID, amount)
}

// NewSemiFungibleEngine creates an engine trading semi-fungible assets
// (token id plus quantity). store may be nil for memory-only operation.
func NewSemiFungibleEngine(name string, ledgers *token.Registry, store *Store) (*Engine, error) {
	ops := semiOps{ledgers: ledgers, custody: CustodyAddress(name)}
	return newEngine(name, SemiFungible, ledgers, ops, store)
}
