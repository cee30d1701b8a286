package exchange

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

// uniqueOps trades single-unit assets. Holding means owning the token id,
// and custody must hold approval-for-all before any escrow.
type uniqueOps struct {
	ledgers *token.Registry
	custody common.Address
}

func (u uniqueOps) checkHolding(symbol string, holder common.Address, tokenID common.Hash, _ int64) error {
	led, err := u.ledgers.Unique(symbol)
	if err != nil {
		return err
	}
	owner, err := led.OwnerOf(tokenID)
	if err != nil {
		return err
	}
	if owner != holder {
		return ErrNotOwner
	}
	return nil
}

func (u uniqueOps) checkApproval(symbol string, holder common.Address) error {
	led, err := u.ledgers.Unique(symbol)
	if err != nil {
		return err
	}
	if !led.IsApprovedForAll(holder, u.custody) {
		return ErrNotApproved
	}
	return nil
}

func (u uniqueOps) transfer(symbol string, from, to common.Address, tokenID common.Hash, _ int64) error {
	led, err := u.ledgers.Unique(symbol)
	if err != nil {
		return err
	}
	return led.TransferFrom(u.custody, from, to, tokenID)
}

// NewUniqueEngine creates an engine trading unique (single-unit) assets.
// Amounts are pinned to 1 throughout. store may be nil for memory-only
// operation.
func NewUniqueEngine(name string, ledgers *token.Registry, store *Store) (*Engine, error) {
	ops := uniqueOps{ledgers: ledgers, custody: CustodyAddress(name)}
	return newEngine(name, Unique, ledgers, ops, store)
}
