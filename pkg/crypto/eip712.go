package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay attacks across different chains/deployments
type EIP712Domain struct {
	Name              string         // Protocol name (e.g., "Bazaard")
	Version           string         // Protocol version (e.g., "1")
	ChainID           *big.Int       // Chain ID (1337 for local dev)
	VerifyingContract common.Address // Zero address for off-chain signing
}

// ExchangeActionEIP712 is the typed data users sign for every exchange
// operation (create exchange, place/cancel offer, buy/sell from offer).
// Fields an action does not use stay at their zero value and are still
// part of the signed message.
type ExchangeActionEIP712 struct {
	Action       string         // Operation name (e.g., "create_exchange")
	Venue        string         // Engine: "fungible" | "unique" | "semifungible"
	Name         string         // Listing name (create only)
	AssetToken   string         // Asset ledger symbol (create only)
	PaymentToken string         // Payment ledger symbol (create only)
	TokenID      common.Hash    // Asset token id (unique/semi-fungible)
	ExchangeID   *big.Int       // Target exchange id
	OfferID      *big.Int       // Target offer id (cancel/match)
	Amount       *big.Int       // Asset quantity
	Price        *big.Int       // Unit price
	Nonce        *big.Int       // Nonce for replay protection
	Owner        common.Address // Action owner address
}

// TokenActionEIP712 is the typed data users sign for ledger operations
// (transfer, approve, set approval-for-all)
type TokenActionEIP712 struct {
	Action       string         // "transfer" | "approve" | "set_approval_for_all"
	Ledger       string         // Ledger registry symbol
	TokenID      common.Hash    // Token id (unique/semi-fungible)
	Counterparty common.Address // Recipient, spender, or operator
	Amount       *big.Int       // Quantity or allowance
	Approved     uint8          // 1 = grant, 0 = revoke (approval-for-all)
	Nonce        *big.Int       // Nonce for replay protection
	Owner        common.Address // Action owner address
}

// EIP712Signer handles EIP-712 typed data signing for bazaar actions
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a new EIP-712 signer with given domain
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain for Bazaard
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "Bazaard",
		Version:           "1",
		ChainID:           big.NewInt(1337), // Local dev chain
		VerifyingContract: common.Address{}, // Zero address for off-chain signing
	}
}

var exchangeActionType = []apitypes.Type{
	{Name: "action", Type: "string"},
	{Name: "venue", Type: "string"},
	{Name: "name", Type: "string"},
	{Name: "assetToken", Type: "string"},
	{Name: "paymentToken", Type: "string"},
	{Name: "tokenId", Type: "bytes32"},
	{Name: "exchangeId", Type: "uint256"},
	{Name: "offerId", Type: "uint256"},
	{Name: "amount", Type: "uint256"},
	{Name: "price", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "owner", Type: "address"},
}

var tokenActionType = []apitypes.Type{
	{Name: "action", Type: "string"},
	{Name: "ledger", Type: "string"},
	{Name: "tokenId", Type: "bytes32"},
	{Name: "counterparty", Type: "address"},
	{Name: "amount", Type: "uint256"},
	{Name: "approved", Type: "uint8"},
	{Name: "nonce", Type: "uint256"},
	{Name: "owner", Type: "address"},
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

func (e *EIP712Signer) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

// digest computes keccak256("\x19\x01" || domainSeparator || typedDataHash)
func digest(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// HashExchangeAction hashes an exchange action according to EIP-712 spec.
// Returns the digest that should be signed.
func (e *EIP712Signer) HashExchangeAction(act *ExchangeActionEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":   domainType,
			"ExchangeAction": exchangeActionType,
		},
		PrimaryType: "ExchangeAction",
		Domain:      e.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"action":       act.Action,
			"venue":        act.Venue,
			"name":         act.Name,
			"assetToken":   act.AssetToken,
			"paymentToken": act.PaymentToken,
			"tokenId":      act.TokenID.Hex(),
			"exchangeId":   act.ExchangeID.String(),
			"offerId":      act.OfferID.String(),
			"amount":       act.Amount.String(),
			"price":        act.Price.String(),
			"nonce":        act.Nonce.String(),
			"owner":        act.Owner.Hex(),
		},
	}
	return digest(typedData)
}

// HashTokenAction hashes a ledger action according to EIP-712 spec
func (e *EIP712Signer) HashTokenAction(act *TokenActionEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"TokenAction":  tokenActionType,
		},
		PrimaryType: "TokenAction",
		Domain:      e.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"action":       act.Action,
			"ledger":       act.Ledger,
			"tokenId":      act.TokenID.Hex(),
			"counterparty": act.Counterparty.Hex(),
			"amount":       act.Amount.String(),
			"approved":     fmt.Sprintf("%d", act.Approved),
			"nonce":        act.Nonce.String(),
			"owner":        act.Owner.Hex(),
		},
	}
	return digest(typedData)
}

// SignExchangeAction signs an exchange action and returns the signature
func (e *EIP712Signer) SignExchangeAction(signer *Signer, act *ExchangeActionEIP712) ([]byte, error) {
	hash, err := e.HashExchangeAction(act)
	if err != nil {
		return nil, fmt.Errorf("failed to hash action: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign action: %w", err)
	}

	return signature, nil
}

// SignTokenAction signs a ledger action and returns the signature
func (e *EIP712Signer) SignTokenAction(signer *Signer, act *TokenActionEIP712) ([]byte, error) {
	hash, err := e.HashTokenAction(act)
	if err != nil {
		return nil, fmt.Errorf("failed to hash action: %w", err)
	}

	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign action: %w", err)
	}

	return signature, nil
}

// VerifyExchangeSignature verifies that an exchange action signature is
// valid. Returns true if the signature matches the claimed owner.
func (e *EIP712Signer) VerifyExchangeSignature(act *ExchangeActionEIP712, signature []byte) (bool, error) {
	hash, err := e.HashExchangeAction(act)
	if err != nil {
		return false, fmt.Errorf("failed to hash action: %w", err)
	}

	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	return recoveredAddr == act.Owner, nil
}

// VerifyTokenSignature verifies that a ledger action signature is valid
func (e *EIP712Signer) VerifyTokenSignature(act *TokenActionEIP712, signature []byte) (bool, error) {
	hash, err := e.HashTokenAction(act)
	if err != nil {
		return false, fmt.Errorf("failed to hash action: %w", err)
	}

	recoveredAddr, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	return recoveredAddr == act.Owner, nil
}

// RecoverExchangeSigner recovers the address that signed an exchange action.
// Useful for extracting the owner from a signature without prior knowledge.
func (e *EIP712Signer) RecoverExchangeSigner(act *ExchangeActionEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashExchangeAction(act)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash action: %w", err)
	}

	return RecoverAddress(hash, signature)
}

// ExchangeActionToJSON converts an exchange action to the JSON layout
// wallets expect for eth_signTypedData_v4
func (e *EIP712Signer) ExchangeActionToJSON(act *ExchangeActionEIP712) (string, error) {
	typedData := map[string]interface{}{
		"types": map[string]interface{}{
			"EIP712Domain": []map[string]string{
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"},
			},
			"ExchangeAction": []map[string]string{
				{"name": "action", "type": "string"},
				{"name": "venue", "type": "string"},
				{"name": "name", "type": "string"},
				{"name": "assetToken", "type": "string"},
				{"name": "paymentToken", "type": "string"},
				{"name": "tokenId", "type": "bytes32"},
				{"name": "exchangeId", "type": "uint256"},
				{"name": "offerId", "type": "uint256"},
				{"name": "amount", "type": "uint256"},
				{"name": "price", "type": "uint256"},
				{"name": "nonce", "type": "uint256"},
				{"name": "owner", "type": "address"},
			},
		},
		"primaryType": "ExchangeAction",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"action":       act.Action,
			"venue":        act.Venue,
			"name":         act.Name,
			"assetToken":   act.AssetToken,
			"paymentToken": act.PaymentToken,
			"tokenId":      act.TokenID.Hex(),
			"exchangeId":   act.ExchangeID.String(),
			"offerId":      act.OfferID.String(),
			"amount":       act.Amount.String(),
			"price":        act.Price.String(),
			"nonce":        act.Nonce.String(),
			"owner":        act.Owner.Hex(),
		},
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(jsonBytes), nil
}
