package transaction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/crypto"
)

// TxType represents the type of transaction
type TxType string

const (
	TxTypeExchange TxType = "exchange" // Exchange engine operation (signed)
	TxTypeToken    TxType = "token"    // Token ledger operation (signed)
)

// Exchange action names. The action string is part of the signed message,
// so an action cannot be replayed as a different one.
const (
	ActionCreateExchange     = "create_exchange"
	ActionPlaceBuyingOffer   = "place_buying_offer"
	ActionPlaceSellingOffer  = "place_selling_offer"
	ActionCancelBuyingOffer  = "cancel_buying_offer"
	ActionCancelSellingOffer = "cancel_selling_offer"
	ActionBuyFromOffer       = "buy_from_offer"
	ActionSellFromOffer      = "sell_from_offer"
)

// Token ledger action names
const (
	ActionTransfer          = "transfer"
	ActionApprove           = "approve"
	ActionSetApprovalForAll = "set_approval_for_all"
)

// SignedTransaction is the wire format every client submits: a typed
// payload plus an EIP-712 signature over it
type SignedTransaction struct {
	Type      TxType           `json:"type"`
	Exchange  *ExchangePayload `json:"exchange,omitempty"` // if type=exchange
	Token     *TokenPayload    `json:"token,omitempty"`    // if type=token
	Signature string           `json:"signature"`          // Hex-encoded signature (0x...)
}

// ExchangePayload carries one exchange engine operation. Numeric fields are
// decimal strings so the JSON round-trips through wallet tooling unchanged.
type ExchangePayload struct {
	Action       string `json:"action"`
	Venue        string `json:"venue"` // "fungible" | "unique" | "semifungible"
	Name         string `json:"name,omitempty"`
	AssetToken   string `json:"asset_token,omitempty"`
	PaymentToken string `json:"payment_token,omitempty"`
	TokenID      string `json:"token_id,omitempty"` // 0x-prefixed 32-byte hex
	ExchangeID   string `json:"exchange_id,omitempty"`
	OfferID      string `json:"offer_id,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Price        string `json:"price,omitempty"`
	Nonce        string `json:"nonce"`
	Owner        string `json:"owner"` // Ethereum address (0x...)
}

// TokenPayload carries one token ledger operation
type TokenPayload struct {
	Action       string `json:"action"`
	Ledger       string `json:"ledger"`                 // registry symbol
	TokenID      string `json:"token_id,omitempty"`     // unique/semi-fungible
	Counterparty string `json:"counterparty,omitempty"` // recipient, spender or operator
	Amount       string `json:"amount,omitempty"`
	Approved     bool   `json:"approved,omitempty"`
	Nonce        string `json:"nonce"`
	Owner        string `json:"owner"`
}

// ToEIP712Action converts ExchangePayload to crypto.ExchangeActionEIP712
// for signing/verification. Absent numeric fields sign as zero.
func (p *ExchangePayload) ToEIP712Action() (*crypto.ExchangeActionEIP712, error) {
	exchangeID, err := parseBigInt("exchange_id", p.ExchangeID)
	if err != nil {
		return nil, err
	}
	offerID, err := parseBigInt("offer_id", p.OfferID)
	if err != nil {
		return nil, err
	}
	amount, err := parseBigInt("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	price, err := parseBigInt("price", p.Price)
	if err != nil {
		return nil, err
	}
	nonce, err := parseBigInt("nonce", p.Nonce)
	if err != nil {
		return nil, err
	}

	return &crypto.ExchangeActionEIP712{
		Action:       p.Action,
		Venue:        p.Venue,
		Name:         p.Name,
		AssetToken:   p.AssetToken,
		PaymentToken: p.PaymentToken,
		TokenID:      common.HexToHash(p.TokenID),
		ExchangeID:   exchangeID,
		OfferID:      offerID,
		Amount:       amount,
		Price:        price,
		Nonce:        nonce,
		Owner:        common.HexToAddress(p.Owner),
	}, nil
}

// ToEIP712Action converts TokenPayload to crypto.TokenActionEIP712
func (p *TokenPayload) ToEIP712Action() (*crypto.TokenActionEIP712, error) {
	amount, err := parseBigInt("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	nonce, err := parseBigInt("nonce", p.Nonce)
	if err != nil {
		return nil, err
	}

	var approved uint8
	if p.Approved {
		approved = 1
	}

	return &crypto.TokenActionEIP712{
		Action:       p.Action,
		Ledger:       p.Ledger,
		TokenID:      common.HexToHash(p.TokenID),
		Counterparty: common.HexToAddress(p.Counterparty),
		Amount:       amount,
		Approved:     approved,
		Nonce:        nonce,
		Owner:        common.HexToAddress(p.Owner),
	}, nil
}

func parseBigInt(field, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %s", field, s)
	}
	return n, nil
}

// Serialize converts SignedTransaction to JSON bytes
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into SignedTransaction
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Validate performs basic validation on transaction structure
func (tx *SignedTransaction) Validate() error {
	if tx.Type == "" {
		return fmt.Errorf("missing transaction type")
	}

	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}

	switch tx.Type {
	case TxTypeExchange:
		if tx.Exchange == nil {
			return fmt.Errorf("exchange type requires exchange payload")
		}
		if !validExchangeAction(tx.Exchange.Action) {
			return fmt.Errorf("unknown exchange action: %s", tx.Exchange.Action)
		}
		if tx.Exchange.Venue == "" {
			return fmt.Errorf("missing venue")
		}
		if tx.Exchange.Owner == "" {
			return fmt.Errorf("missing exchange action owner")
		}

	case TxTypeToken:
		if tx.Token == nil {
			return fmt.Errorf("token type requires token payload")
		}
		if !validTokenAction(tx.Token.Action) {
			return fmt.Errorf("unknown token action: %s", tx.Token.Action)
		}
		if tx.Token.Ledger == "" {
			return fmt.Errorf("missing token ledger")
		}
		if tx.Token.Owner == "" {
			return fmt.Errorf("missing token action owner")
		}

	default:
		return fmt.Errorf("unknown transaction type: %s", tx.Type)
	}

	return nil
}

func validExchangeAction(a string) bool {
	switch a {
	case ActionCreateExchange, ActionPlaceBuyingOffer, ActionPlaceSellingOffer,
		ActionCancelBuyingOffer, ActionCancelSellingOffer,
		ActionBuyFromOffer, ActionSellFromOffer:
		return true
	}
	return false
}

func validTokenAction(a string) bool {
	switch a {
	case ActionTransfer, ActionApprove, ActionSetApprovalForAll:
		return true
	}
	return false
}

// IsCancel reports whether the transaction withdraws a standing offer.
// Used by the mempool to order cancellations ahead of new flow.
func (tx *SignedTransaction) IsCancel() bool {
	if tx.Type != TxTypeExchange || tx.Exchange == nil {
		return false
	}
	return tx.Exchange.Action == ActionCancelBuyingOffer ||
		tx.Exchange.Action == ActionCancelSellingOffer
}

// ParseTransaction parses and structurally validates a raw transaction
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	tx, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}

	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}

	return tx, nil
}

// Example wire format:
//   {
//     "type": "exchange",
//     "exchange": {
//       "action": "place_buying_offer",
//       "venue": "fungible",
//       "exchange_id": "1",
//       "amount": "100",
//       "price": "5",
//       "nonce": "42",
//       "owner": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"
//     },
//     "signature": "0x1234567890abcdef..."
//   }
