package bazaar

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

// Genesis declares the ledgers and initial holdings the chain starts
// with. Minting only happens here; after genesis, supply moves but never
// grows.
type Genesis struct {
	Fungible     []FungibleGenesis     `json:"fungible"`
	Unique       []UniqueGenesis       `json:"unique"`
	SemiFungible []SemiFungibleGenesis `json:"semifungible"`
}

type FungibleGenesis struct {
	Symbol   string           `json:"symbol"`
	Balances map[string]int64 `json:"balances"` // address hex -> amount
}

type UniqueGenesis struct {
	Symbol string            `json:"symbol"`
	Tokens map[string]string `json:"tokens"` // token id hex -> owner address hex
}

type SemiFungibleGenesis struct {
	Symbol   string                      `json:"symbol"`
	Balances map[string]map[string]int64 `json:"balances"` // token id hex -> address hex -> amount
}

func (a *App) applyGenesis(g *Genesis) error {
	for _, fg := range g.Fungible {
		led := token.NewFungible(fg.Symbol)
		for addr, amount := range fg.Balances {
			if err := led.Mint(common.HexToAddress(addr), amount); err != nil {
				return fmt.Errorf("mint %s to %s: %w", fg.Symbol, addr, err)
			}
		}
		if err := a.ledgers.RegisterFungible(led); err != nil {
			return err
		}
	}

	for _, ug := range g.Unique {
		led := token.NewUnique(ug.Symbol)
		for id, addr := range ug.Tokens {
			if err := led.Mint(common.HexToAddress(addr), common.HexToHash(id)); err != nil {
				return fmt.Errorf("mint %s token %s: %w", ug.Symbol, id, err)
			}
		}
		if err := a.ledgers.RegisterUnique(led); err != nil {
			return err
		}
	}

	for _, sg := range g.SemiFungible {
		led := token.NewSemiFungible(sg.Symbol)
		for id, holders := range sg.Balances {
			for addr, amount := range holders {
				if err := led.Mint(common.HexToAddress(addr), common.HexToHash(id), amount); err != nil {
					return fmt.Errorf("mint %s token %s to %s: %w", sg.Symbol, id, addr, err)
				}
			}
		}
		if err := a.ledgers.RegisterSemiFungible(led); err != nil {
			return err
		}
	}

	return nil
}
