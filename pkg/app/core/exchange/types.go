package exchange

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AssetKind selects the custody shape of an engine instance
type AssetKind int8

const (
	Fungible     AssetKind = iota // quantity-based escrow (ERC20-style asset)
	Unique                        // single-unit escrow (ERC721-style asset)
	SemiFungible                  // unit id + quantity escrow (ERC1155-style asset)
)

func (k AssetKind) String() string {
	switch k {
	case Fungible:
		return "fungible"
	case Unique:
		return "unique"
	case SemiFungible:
		return "semifungible"
	default:
		return "unknown"
	}
}

// OfferKind is fixed at placement and never mutated
type OfferKind int8

const (
	Buying OfferKind = iota + 1
	Selling
)

func (k OfferKind) String() string {
	switch k {
	case Buying:
		return "buying"
	case Selling:
		return "selling"
	default:
		return "unknown"
	}
}

// OfferStatus tracks the offer lifecycle explicitly. Filled and Cancelled
// are terminal; an id never returns to Active.
type OfferStatus int8

const (
	Active OfferStatus = iota
	Filled
	Cancelled
)

func (s OfferStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Exchange is a standing listing: an initial asset escrow at a fixed unit
// price. AssetToken/PaymentToken/Creator are immutable after creation and
// the row persists for the life of the engine.
type Exchange struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	AssetToken   string         `json:"asset_token"`   // ledger registry symbol
	PaymentToken string         `json:"payment_token"` // ledger registry symbol
	Creator      common.Address `json:"creator"`
	TokenID      common.Hash    `json:"token_id,omitempty"` // unique/semi-fungible only
	Amount       int64          `json:"amount"`             // escrowed quantity (1 for unique)
	Price        int64          `json:"price"`              // unit price
}

// Offer is a standing buy or sell commitment scoped to one exchange.
// Ids are unique across the whole engine instance, monotonically assigned
// from 1, shared sequence for both kinds, never reused.
type Offer struct {
	ID         int64          `json:"id"`
	ExchangeID int64          `json:"exchange_id"`
	Kind       OfferKind      `json:"kind"`
	Creator    common.Address `json:"creator"`
	TokenID    common.Hash    `json:"token_id,omitempty"`
	Amount     int64          `json:"amount"` // 1 for unique
	Price      int64          `json:"price"`  // unit price
	Status     OfferStatus    `json:"status"`
}

// Total returns the full payment value of the offer (unit price x quantity)
func (o *Offer) Total() int64 { return o.Price * o.Amount }

// Settlement describes a completed match, reported through the engine's
// OnSettlement hook
type Settlement struct {
	ExchangeID int64
	OfferID    int64
	Kind       OfferKind // kind of the matched (maker) offer
	Maker      common.Address
	Taker      common.Address
	TokenID    common.Hash
	Amount     int64
	Price      int64
}

// CustodyAddress derives the deterministic address under which an engine
// instance escrows assets and payments on the token ledgers
func CustodyAddress(name string) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("bazaard/custody/" + name)))
}
