package token

import (
	"crypto/sha256"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Unique is an in-state non-fungible token ledger (ERC721-style capability
// set: ownerOf, setApprovalForAll/isApprovedForAll, transferFrom).
// Token ids are 32-byte values.
type Unique struct {
	mu        sync.RWMutex
	symbol    string
	owners    map[common.Hash]common.Address
	operators map[common.Address]map[common.Address]bool // owner -> operator -> approved
}

// NewUnique creates an empty unique-asset ledger identified by symbol
func NewUnique(symbol string) *Unique {
	return &Unique{
		symbol:    symbol,
		owners:    make(map[common.Hash]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

func (u *Unique) Symbol() string { return u.symbol }

// Mint assigns a fresh token id to an owner.
// Re-minting an existing id is rejected.
func (u *Unique) Mint(to common.Address, id common.Hash) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.owners[id]; exists {
		return ErrLedgerExists
	}
	u.owners[id] = to
	return nil
}

// OwnerOf returns the current owner of a token id
func (u *Unique) OwnerOf(id common.Hash) (common.Address, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	owner, ok := u.owners[id]
	if !ok {
		return common.Address{}, ErrNoSuchToken
	}
	return owner, nil
}

// BalanceOf returns how many tokens an account owns
func (u *Unique) BalanceOf(addr common.Address) int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	var n int64
	for _, owner := range u.owners {
		if owner == addr {
			n++
		}
	}
	return n
}

// SetApprovalForAll grants or revokes an operator's right to move any of
// the owner's tokens
func (u *Unique) SetApprovalForAll(owner, operator common.Address, approved bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.operators[owner] == nil {
		u.operators[owner] = make(map[common.Address]bool)
	}
	u.operators[owner][operator] = approved
}

// IsApprovedForAll reports whether operator may move owner's tokens
func (u *Unique) IsApprovedForAll(owner, operator common.Address) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.operators[owner][operator]
}

// TransferFrom moves a token on behalf of `operator`.
// `from` must be the current owner, and the operator must either be the
// owner or hold approval-for-all.
func (u *Unique) TransferFrom(operator, from, to common.Address, id common.Hash) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	owner, ok := u.owners[id]
	if !ok {
		return ErrNoSuchToken
	}
	if owner != from {
		return ErrNotOwner
	}
	if operator != from && !u.operators[from][operator] {
		return ErrNotApproved
	}
	u.owners[id] = to
	return nil
}

// StateDigest returns a deterministic hash of the ledger state
func (u *Unique) StateDigest() [32]byte {
	u.mu.RLock()
	defer u.mu.RUnlock()

	h := sha256.New()
	h.Write([]byte("unique:" + u.symbol))

	ids := make([]common.Hash, 0, len(u.owners))
	for id := range u.owners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	for _, id := range ids {
		h.Write(id.Bytes())
		h.Write(u.owners[id].Bytes())
	}

	owners := make([]common.Address, 0, len(u.operators))
	for o := range u.operators {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].Cmp(owners[j]) < 0 })
	for _, o := range owners {
		ops := make([]common.Address, 0, len(u.operators[o]))
		for op, approved := range u.operators[o] {
			if approved {
				ops = append(ops, op)
			}
		}
		sort.Slice(ops, func(i, j int) bool { return ops[i].Cmp(ops[j]) < 0 })
		for _, op := range ops {
			h.Write(o.Bytes())
			h.Write(op.Bytes())
		}
	}

	return sha256.Sum256(h.Sum(nil))
}
