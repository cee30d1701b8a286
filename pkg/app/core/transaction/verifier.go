package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/crypto"
)

// Verifier handles transaction signature verification
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

// NewVerifier creates a new transaction verifier
func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{
		eip712Signer: crypto.NewEIP712Signer(domain),
	}
}

// VerifyExchangeTransaction verifies a signed exchange transaction.
// Returns (owner address, valid, error).
func (v *Verifier) VerifyExchangeTransaction(tx *SignedTransaction) (common.Address, bool, error) {
	if tx.Type != TxTypeExchange {
		return common.Address{}, false, fmt.Errorf("not an exchange transaction")
	}

	if tx.Exchange == nil {
		return common.Address{}, false, fmt.Errorf("missing exchange payload")
	}

	act, err := tx.Exchange.ToEIP712Action()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid exchange payload: %w", err)
	}

	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid signature: %w", err)
	}

	valid, err := v.eip712Signer.VerifyExchangeSignature(act, sigBytes)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("signature verification failed: %w", err)
	}

	if !valid {
		return common.Address{}, false, fmt.Errorf("signature invalid")
	}

	return act.Owner, true, nil
}

// VerifyTokenTransaction verifies a signed token ledger transaction
func (v *Verifier) VerifyTokenTransaction(tx *SignedTransaction) (common.Address, bool, error) {
	if tx.Type != TxTypeToken {
		return common.Address{}, false, fmt.Errorf("not a token transaction")
	}

	if tx.Token == nil {
		return common.Address{}, false, fmt.Errorf("missing token payload")
	}

	act, err := tx.Token.ToEIP712Action()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid token payload: %w", err)
	}

	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid signature: %w", err)
	}

	valid, err := v.eip712Signer.VerifyTokenSignature(act, sigBytes)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("signature verification failed: %w", err)
	}

	if !valid {
		return common.Address{}, false, fmt.Errorf("signature invalid")
	}

	return act.Owner, true, nil
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}

// RecoverSigner recovers the address that signed a transaction.
// Useful for debugging or extracting the owner without prior knowledge.
func (v *Verifier) RecoverSigner(tx *SignedTransaction) (common.Address, error) {
	switch tx.Type {
	case TxTypeExchange:
		owner, valid, err := v.VerifyExchangeTransaction(tx)
		if err != nil {
			return common.Address{}, err
		}
		if !valid {
			return common.Address{}, fmt.Errorf("invalid signature")
		}
		return owner, nil

	case TxTypeToken:
		owner, valid, err := v.VerifyTokenTransaction(tx)
		if err != nil {
			return common.Address{}, err
		}
		if !valid {
			return common.Address{}, fmt.Errorf("invalid signature")
		}
		return owner, nil

	default:
		return common.Address{}, fmt.Errorf("unsupported transaction type: %s", tx.Type)
	}
}
