package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bazaarchain/bazaard/pkg/app/core/transaction"
	"github.com/bazaarchain/bazaard/pkg/crypto"
)

// Walkthrough: generate a key, sign an exchange action with EIP-712,
// wrap it into a transaction and verify the signature. The printed JSON
// is ready for POST /api/v1/tx.
func main() {
	// Step 1: Generate or load key
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Create an exchange action (list BAZ for sale against USDX)
	payload := &transaction.ExchangePayload{
		Action:       transaction.ActionCreateExchange,
		Venue:        "fungible",
		Name:         "baz-usdx",
		AssetToken:   "BAZ",
		PaymentToken: "USDX",
		Amount:       "100",
		Price:        "25",
		Nonce:        "1",
		Owner:        signer.Address().Hex(),
	}

	fmt.Println("Exchange Action:")
	fmt.Printf("  Action: %s\n", payload.Action)
	fmt.Printf("  Venue: %s\n", payload.Venue)
	fmt.Printf("  Name: %s\n", payload.Name)
	fmt.Printf("  Asset: %s / Payment: %s\n", payload.AssetToken, payload.PaymentToken)
	fmt.Printf("  Amount: %s @ Price: %s\n", payload.Amount, payload.Price)
	fmt.Printf("  Owner: %s\n\n", payload.Owner)

	// Step 3: Sign with EIP-712
	action, err := payload.ToEIP712Action()
	if err != nil {
		fmt.Printf("Error building typed data: %v\n", err)
		os.Exit(1)
	}
	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	signature, err := eip712Signer.SignExchangeAction(signer, action)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Step 4: Create signed transaction
	signedTx := &transaction.SignedTransaction{
		Type:      transaction.TxTypeExchange,
		Exchange:  payload,
		Signature: fmt.Sprintf("0x%x", signature),
	}

	// Step 5: Serialize to JSON
	txJSON, err := json.MarshalIndent(signedTx, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Transaction (JSON):")
	fmt.Println(string(txJSON))
	fmt.Println()

	// Step 6: Verify signature
	fmt.Println("Verifying signature...")
	verifier := transaction.NewVerifier(crypto.DefaultDomain())
	recoveredOwner, valid, err := verifier.VerifyExchangeTransaction(signedTx)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}

	if !valid {
		fmt.Println("✗ Signature INVALID")
		os.Exit(1)
	}

	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Signer: %s\n", recoveredOwner.Hex())
	fmt.Printf("  Matches owner: %v\n\n", recoveredOwner.Hex() == payload.Owner)

	// Step 7: Show how to submit to the node
	fmt.Println("To submit this transaction to Bazaard:")
	fmt.Println("  POST http://localhost:8080/api/v1/tx")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(txJSON))
}
