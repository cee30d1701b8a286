package token

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves token references (symbols) to ledgers.
// Exchange rows store asset/payment token refs as registry symbols.
type Registry struct {
	mu       sync.RWMutex
	fungible map[string]*Fungible
	unique   map[string]*Unique
	semi     map[string]*SemiFungible
}

// NewRegistry creates an empty ledger registry
func NewRegistry() *Registry {
	return &Registry{
		fungible: make(map[string]*Fungible),
		unique:   make(map[string]*Unique),
		semi:     make(map[string]*SemiFungible),
	}
}

// RegisterFungible adds a fungible ledger under its symbol
func (r *Registry) RegisterFungible(f *Fungible) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fungible[f.Symbol()]; exists {
		return fmt.Errorf("%w: %s", ErrLedgerExists, f.Symbol())
	}
	r.fungible[f.Symbol()] = f
	return nil
}

// RegisterUnique adds a unique-asset ledger under its symbol
func (r *Registry) RegisterUnique(u *Unique) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.unique[u.Symbol()]; exists {
		return fmt.Errorf("%w: %s", ErrLedgerExists, u.Symbol())
	}
	r.unique[u.Symbol()] = u
	return nil
}

// RegisterSemiFungible adds a semi-fungible ledger under its symbol
func (r *Registry) RegisterSemiFungible(s *SemiFungible) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.semi[s.Symbol()]; exists {
		return fmt.Errorf("%w: %s", ErrLedgerExists, s.Symbol())
	}
	r.semi[s.Symbol()] = s
	return nil
}

// Fungible resolves a fungible ledger by symbol
func (r *Registry) Fungible(symbol string) (*Fungible, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fungible[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, symbol)
	}
	return f, nil
}

// Unique resolves a unique-asset ledger by symbol
func (r *Registry) Unique(symbol string) (*Unique, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.unique[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, symbol)
	}
	return u, nil
}

// SemiFungible resolves a semi-fungible ledger by symbol
func (r *Registry) SemiFungible(symbol string) (*SemiFungible, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.semi[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, symbol)
	}
	return s, nil
}

// Symbols returns all registered symbols in deterministic (sorted) order,
// grouped as fungible, unique, semi-fungible
func (r *Registry) Symbols() (fungible, unique, semi []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for s := range r.fungible {
		fungible = append(fungible, s)
	}
	for s := range r.unique {
		unique = append(unique, s)
	}
	for s := range r.semi {
		semi = append(semi, s)
	}
	sort.Strings(fungible)
	sort.Strings(unique)
	sort.Strings(semi)
	return
}
