package token

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Fungible is an in-state fungible token ledger (ERC20-style capability set:
// balanceOf, transfer, approve/allowance, transferFrom).
// All amounts are int64; negative amounts are rejected at the boundary.
type Fungible struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[common.Address]int64
	allowances map[common.Address]map[common.Address]int64 // owner -> spender -> remaining
}

// NewFungible creates an empty fungible ledger identified by symbol
func NewFungible(symbol string) *Fungible {
	return &Fungible{
		symbol:     symbol,
		balances:   make(map[common.Address]int64),
		allowances: make(map[common.Address]map[common.Address]int64),
	}
}

func (f *Fungible) Symbol() string { return f.symbol }

// Mint credits newly issued units to an account
func (f *Fungible) Mint(to common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[to] += amount
	return nil
}

// BalanceOf returns the current balance of an account
func (f *Fungible) BalanceOf(addr common.Address) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.balances[addr]
}

// Transfer moves units from the sender's own balance
func (f *Fungible) Transfer(from, to common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moveLocked(from, to, amount)
}

// Approve sets the remaining allowance a spender may transfer on the
// owner's behalf. Overwrites any previous allowance (ERC20 semantics).
func (f *Fungible) Approve(owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowances[owner] == nil {
		f.allowances[owner] = make(map[common.Address]int64)
	}
	f.allowances[owner][spender] = amount
	return nil
}

// Allowance returns the remaining amount spender may transfer from owner
func (f *Fungible) Allowance(owner, spender common.Address) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.allowances[owner][spender]
}

// TransferFrom moves units out of `from` on behalf of `spender`,
// consuming allowance. A spender moving its own funds needs no allowance.
func (f *Fungible) TransferFrom(spender, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if spender != from {
		remaining := f.allowances[from][spender]
		if remaining < amount {
			return ErrInsufficientAllowance
		}
		f.allowances[from][spender] = remaining - amount
	}
	return f.moveLocked(from, to, amount)
}

// moveLocked performs the balance update (assumes lock held)
func (f *Fungible) moveLocked(from, to common.Address, amount int64) error {
	if f.balances[from] < amount {
		return ErrInsufficientBalance
	}
	f.balances[from] -= amount
	f.balances[to] += amount
	return nil
}

// StateDigest returns a deterministic hash of the ledger state.
// Entries are visited in sorted order so every node computes the same digest.
func (f *Fungible) StateDigest() [32]byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h := sha256.New()
	h.Write([]byte("fungible:" + f.symbol))

	addrs := make([]common.Address, 0, len(f.balances))
	for a := range f.balances {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })

	var buf [8]byte
	for _, a := range addrs {
		h.Write(a.Bytes())
		binary.BigEndian.PutUint64(buf[:], uint64(f.balances[a]))
		h.Write(buf[:])
	}

	owners := make([]common.Address, 0, len(f.allowances))
	for o := range f.allowances {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].Cmp(owners[j]) < 0 })
	for _, o := range owners {
		spenders := make([]common.Address, 0, len(f.allowances[o]))
		for s := range f.allowances[o] {
			spenders = append(spenders, s)
		}
		sort.Slice(spenders, func(i, j int) bool { return spenders[i].Cmp(spenders[j]) < 0 })
		for _, s := range spenders {
			h.Write(o.Bytes())
			h.Write(s.Bytes())
			binary.BigEndian.PutUint64(buf[:], uint64(f.allowances[o][s]))
			h.Write(buf[:])
		}
	}

	return sha256.Sum256(h.Sum(nil))
}
