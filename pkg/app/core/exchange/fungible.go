package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

// fungibleOps trades quantity-based assets. There is no approval pre-check;
// a missing allowance surfaces from the ledger at transfer time, same as
// the payment side.
type fungibleOps struct {
	ledgers *token.Registry
	custody common.Address
}

func (f fungibleOps) checkHolding(symbol string, holder common.Address, _ common.Hash, amount int64) error {
	led, err := f.ledgers.Fungible(symbol)
	if err != nil {
		return err
	}
	if led.BalanceOf(holder) < amount {
		return ErrInsufficientBalance
	}
	return nil
}

func (f fungibleOps) checkApproval(string, common.Address) error { return nil }

func (f fungibleOps) transfer(symbol string, from, to common.Address, _ common.Hash, amount int64) error {
	led, err := f.ledgers.Fungible(symbol)
	if err != nil {
		return err
	}
	return led.TransferFrom(f.custody, from, to, amount)
}

// NewFungibleEngine creates an engine trading fungible assets against a
// fungible payment token. store may be nil for memory-only operation.
func NewFungibleEngine(name string, ledgers *token.Registry, store *Store) (*Engine, error) {
	ops := fungibleOps{ledgers: ledgers, custody: CustodyAddress(name)}
	return newEngine(name, Fungible, ledgers, ops, store)
}
