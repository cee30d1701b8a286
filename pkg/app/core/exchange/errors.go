package exchange

import "errors"

// Engine error taxonomy. Every failing operation returns exactly one of
// these (first violated precondition wins), or an unwrapped ledger error
// when the collaborator token ledger itself rejects a transfer.
var (
	// ErrInsufficientBalance: caller's asset or payment balance cannot
	// cover the requested escrow.
	ErrInsufficientBalance = errors.New("exchange: balance is not enough")

	// ErrInvalidPrice: price is zero or negative.
	ErrInvalidPrice = errors.New("exchange: price can't be lower or equal to zero")

	// ErrNotApproved: engine custody lacks transfer authorization from the
	// caller on the asset ledger.
	ErrNotApproved = errors.New("exchange: owner has not approved")

	// ErrNotOwner: caller does not own the unique asset, or is not the
	// offer's creator (cancellation).
	ErrNotOwner = errors.New("exchange: caller is not the owner")

	// ErrExchangeMismatch: supplied exchange id does not match the offer's
	// recorded exchange id.
	ErrExchangeMismatch = errors.New("exchange: should be the same exchange id")

	// ErrWrongOfferKind: operation expected a buying offer but found a
	// selling one, or vice versa.
	ErrWrongOfferKind = errors.New("exchange: wrong offer kind")

	// ErrOfferNotActive: offer is unknown, already filled, or already
	// cancelled. Covers double-cancel, double-settle and stale-offer races.
	ErrOfferNotActive = errors.New("exchange: offer is not active")
)
