package token

import "errors"

// Ledger failures are distinct from the exchange engine's own taxonomy.
// The engine propagates these unwrapped so callers can tell a collaborator
// rejection apart from an engine precondition failure.
var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: transfer amount exceeds allowance")
	ErrNotApproved           = errors.New("token: operator not approved for all")
	ErrNotOwner              = errors.New("token: sender is not the owner")
	ErrNoSuchToken           = errors.New("token: unknown token id")
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrUnknownLedger         = errors.New("token: ledger not registered")
	ErrLedgerExists          = errors.New("token: ledger already registered")
)
