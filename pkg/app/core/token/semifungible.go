package token

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// SemiFungible is an in-state multi-token ledger (ERC1155-style capability
// set: balanceOf(addr, id), setApprovalForAll/isApprovedForAll,
// transferFrom(id, amount)). Each 32-byte token id has its own quantity space.
type SemiFungible struct {
	mu        sync.RWMutex
	symbol    string
	balances  map[common.Hash]map[common.Address]int64 // id -> holder -> quantity
	operators map[common.Address]map[common.Address]bool
}

// NewSemiFungible creates an empty semi-fungible ledger identified by symbol
func NewSemiFungible(symbol string) *SemiFungible {
	return &SemiFungible{
		symbol:    symbol,
		balances:  make(map[common.Hash]map[common.Address]int64),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

func (s *SemiFungible) Symbol() string { return s.symbol }

// Mint credits newly issued units of a token id to an account
func (s *SemiFungible) Mint(to common.Address, id common.Hash, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[id] == nil {
		s.balances[id] = make(map[common.Address]int64)
	}
	s.balances[id][to] += amount
	return nil
}

// BalanceOf returns the holder's quantity of one token id
func (s *SemiFungible) BalanceOf(addr common.Address, id common.Hash) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[id][addr]
}

// SetApprovalForAll grants or revokes an operator's right to move any of
// the owner's units
func (s *SemiFungible) SetApprovalForAll(owner, operator common.Address, approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.operators[owner] == nil {
		s.operators[owner] = make(map[common.Address]bool)
	}
	s.operators[owner][operator] = approved
}

// IsApprovedForAll reports whether operator may move owner's units
func (s *SemiFungible) IsApprovedForAll(owner, operator common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operators[owner][operator]
}

// TransferFrom moves units of a token id on behalf of `operator`.
// The operator must either be the holder or hold approval-for-all.
func (s *SemiFungible) TransferFrom(operator, from, to common.Address, id common.Hash, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if operator != from && !s.operators[from][operator] {
		return ErrNotApproved
	}
	if s.balances[id][from] < amount {
		return ErrInsufficientBalance
	}
	s.balances[id][from] -= amount
	s.balances[id][to] += amount
	return nil
}

// StateDigest returns a deterministic hash of the ledger state
func (s *SemiFungible) StateDigest() [32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := sha256.New()
	h.Write([]byte("semifungible:" + s.symbol))

	ids := make([]common.Hash, 0, len(s.balances))
	for id := range s.balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })

	var buf [8]byte
	for _, id := range ids {
		holders := make([]common.Address, 0, len(s.balances[id]))
		for a := range s.balances[id] {
			holders = append(holders, a)
		}
		sort.Slice(holders, func(i, j int) bool { return holders[i].Cmp(holders[j]) < 0 })
		for _, a := range holders {
			h.Write(id.Bytes())
			h.Write(a.Bytes())
			binary.BigEndian.PutUint64(buf[:], uint64(s.balances[id][a]))
			h.Write(buf[:])
		}
	}

	owners := make([]common.Address, 0, len(s.operators))
	for o := range s.operators {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].Cmp(owners[j]) < 0 })
	for _, o := range owners {
		ops := make([]common.Address, 0, len(s.operators[o]))
		for op, approved := range s.operators[o] {
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
