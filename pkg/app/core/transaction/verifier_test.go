package transaction_test

import (
	"fmt"
	"testing"

	"github.com/bazaarchain/bazaard/pkg/app/core/transaction"
	"github.com/bazaarchain/bazaard/pkg/crypto"
)

func signedExchangeTx(t *testing.T, signer *crypto.Signer, p *transaction.ExchangePayload) *transaction.SignedTransaction {
	t.Helper()
	p.Owner = signer.Address().Hex()

	act, err := p.ToEIP712Action()
	if err != nil {
		t.Fatalf("typed data: %v", err)
	}
	sig, err := crypto.NewEIP712Signer(crypto.DefaultDomain()).SignExchangeAction(signer, act)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return &transaction.SignedTransaction{
		Type:      transaction.TxTypeExchange,
		Exchange:  p,
		Signature: fmt.Sprintf("0x%x", sig),
	}
}

func TestVerifyExchangeTransaction(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	tx := signedExchangeTx(t, signer, &transaction.ExchangePayload{
		Action:     transaction.ActionPlaceBuyingOffer,
		Venue:      "fungible",
		ExchangeID: "1",
		Amount:     "100",
		Price:      "5",
		Nonce:      "1",
	})

	verifier := transaction.NewVerifier(crypto.DefaultDomain())
	owner, valid, err := verifier.VerifyExchangeTransaction(tx)
	if err != nil || !valid {
		t.Fatalf("verify: valid=%v err=%v", valid, err)
	}
	if owner != signer.Address() {
		t.Errorf("recovered %s, want %s", owner.Hex(), signer.Address().Hex())
	}

	// Any field change invalidates the signature.
	tx.Exchange.Price = "6"
	if _, valid, _ := verifier.VerifyExchangeTransaction(tx); valid {
		t.Error("tampered payload verified")
	}
}

func TestVerifierRejectsWrongOwner(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()

	tx := signedExchangeTx(t, signer, &transaction.ExchangePayload{
		Action: transaction.ActionBuyFromOffer,
		Venue:  "unique",
		Nonce:  "7",
	})
	// Claiming someone else's address must fail even with a real signature.
	tx.Exchange.Owner = other.Address().Hex()

	verifier := transaction.NewVerifier(crypto.DefaultDomain())
	if _, valid, _ := verifier.VerifyExchangeTransaction(tx); valid {
		t.Error("owner substitution verified")
	}
}

func TestParseTransactionValidation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"valid exchange", `{"type":"exchange","exchange":{"action":"create_exchange","venue":"fungible","nonce":"1","owner":"0x01"},"signature":"0xab"}`, true},
		{"valid token", `{"type":"token","token":{"action":"approve","ledger":"BAZ","nonce":"1","owner":"0x01"},"signature":"0xab"}`, true},
		{"not json", `garbage`, false},
		{"missing type", `{"signature":"0xab"}`, false},
		{"missing signature", `{"type":"exchange","exchange":{"action":"create_exchange","venue":"fungible","nonce":"1","owner":"0x01"}}`, false},
		{"unknown action", `{"type":"exchange","exchange":{"action":"steal_funds","venue":"fungible","nonce":"1","owner":"0x01"},"signature":"0xab"}`, false},
		{"missing venue", `{"type":"exchange","exchange":{"action":"create_exchange","nonce":"1","owner":"0x01"},"signature":"0xab"}`, false},
		{"payload type mismatch", `{"type":"token","exchange":{"action":"create_exchange","venue":"fungible","nonce":"1","owner":"0x01"},"signature":"0xab"}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := transaction.ParseTransaction([]byte(tc.raw))
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
