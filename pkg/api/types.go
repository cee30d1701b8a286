package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// VenueInfo describes one exchange engine
type VenueInfo struct {
	Name      string `json:"name"`      // "fungible" | "unique" | "semifungible"
	AssetKind string `json:"assetKind"` // custody shape
	Custody   string `json:"custody"`   // escrow address on the token ledgers
	Exchanges int    `json:"exchanges"` // number of listings
}

// ExchangeInfo represents one standing listing
type ExchangeInfo struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	AssetToken   string `json:"assetToken"`
	PaymentToken string `json:"paymentToken"`
	Creator      string `json:"creator"`
	TokenID      string `json:"tokenId,omitempty"`
	Amount       int64  `json:"amount"`
	Price        int64  `json:"price"`
}

// OfferInfo represents one standing offer
type OfferInfo struct {
	ID         int64  `json:"id"`
	ExchangeID int64  `json:"exchangeId"`
	Kind       string `json:"kind"` // "buying" | "selling"
	Creator    string `json:"creator"`
	TokenID    string `json:"tokenId,omitempty"`
	Amount     int64  `json:"amount"`
	Price      int64  `json:"price"`
	Total      int64  `json:"total"`
	Status     string `json:"status"` // "active" | "filled" | "cancelled"
}

// SettlementInfo represents a completed match
type SettlementInfo struct {
	Venue      string `json:"venue"`
	ExchangeID int64  `json:"exchangeId"`
	OfferID    int64  `json:"offerId"`
	Kind       string `json:"kind"` // kind of the matched offer
	Maker      string `json:"maker"`
	Taker      string `json:"taker"`
	TokenID    string `json:"tokenId,omitempty"`
	Amount     int64  `json:"amount"`
	Price      int64  `json:"price"`
	Timestamp  int64  `json:"timestamp"` // Unix milliseconds
}

// LedgerInfo lists registered token ledgers by class
type LedgerInfo struct {
	Fungible     []string `json:"fungible"`
	Unique       []string `json:"unique"`
	SemiFungible []string `json:"semifungible"`
}

// BalanceInfo represents one holder's balance on one ledger
type BalanceInfo struct {
	Ledger  string `json:"ledger"`
	Address string `json:"address"`
	TokenID string `json:"tokenId,omitempty"` // semi-fungible only
	Balance int64  `json:"balance"`
}

// NonceInfo is the last accepted nonce for an address
type NonceInfo struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// ChainStatus represents consensus layer status
type ChainStatus struct {
	Height       int64   `json:"height"`       // Current block height
	View         int64   `json:"view"`         // Current consensus view
	AvgBlockTime float64 `json:"avgBlockTime"` // Average block time (ms)
	Validators   int     `json:"validators"`   // Active validator count
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["settlements:fungible", "offers:unique"]
}

// SettlementUpdate is broadcast when an offer settles
type SettlementUpdate struct {
	Type string `json:"type"` // "settlement"
	SettlementInfo
}

// OfferUpdate is broadcast when an offer is placed, cancelled or filled
type OfferUpdate struct {
	Type  string `json:"type"` // "offer"
	Venue string `json:"venue"`
	OfferInfo
}

// ==============================
// REST Request Types
// ==============================

// Transaction submissions use signed JSON transactions (EIP-712 format).
// See pkg/app/core/transaction/types.go for the SignedTransaction layout.

// SubmitTxResponse is the response from transaction submission
type SubmitTxResponse struct {
	Status  string `json:"status"` // "submitted", "rejected"
	TxID    string `json:"txId"`   // Short id derived from the signature
	Message string `json:"message,omitempty"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
