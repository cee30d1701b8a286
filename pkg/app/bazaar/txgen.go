package bazaar

import (
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/app/core/transaction"
	"github.com/bazaarchain/bazaard/pkg/crypto"
)

// SignedTxGenerator creates signed demo transactions: a population of
// keypairs trading one fungible asset against one payment token. Actions
// are random; some get rejected by the engine, which is realistic load.
type SignedTxGenerator struct {
	signers []*crypto.Signer
	rng     *rand.Rand
	nonces  map[string]uint64
	eip712  *crypto.EIP712Signer

	assetSymbol   string
	paymentSymbol string

	// local guesses at live ids; the engine is the source of truth
	createdExchanges int64
	placedOffers     int64
}

// NewSignedTxGenerator creates a generator with numAccounts fresh keypairs
func NewSignedTxGenerator(numAccounts int, assetSymbol, paymentSymbol string, domain crypto.EIP712Domain) *SignedTxGenerator {
	signers := make([]*crypto.Signer, numAccounts)
	nonces := make(map[string]uint64)

	for i := 0; i < numAccounts; i++ {
		signer, _ := crypto.GenerateKey()
		signers[i] = signer
		nonces[signer.Address().Hex()] = 0
	}

	return &SignedTxGenerator{
		signers:       signers,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		nonces:        nonces,
		eip712:        crypto.NewEIP712Signer(domain),
		assetSymbol:   assetSymbol,
		paymentSymbol: paymentSymbol,
	}
}

// DemoGenesis returns genesis state funding every generator account on
// both ledgers
func (g *SignedTxGenerator) DemoGenesis() *Genesis {
	asset := map[string]int64{}
	payment := map[string]int64{}
	for _, s := range g.signers {
		asset[s.Address().Hex()] = 1_000_000
		payment[s.Address().Hex()] = 10_000_000
	}
	return &Genesis{
		Fungible: []FungibleGenesis{
			{Symbol: g.assetSymbol, Balances: asset},
			{Symbol: g.paymentSymbol, Balances: payment},
		},
	}
}

// ApprovalTxs returns one allowance grant per account per ledger, so the
// fungible venue custody can move demo funds. Feed these before any
// exchange traffic.
func (g *SignedTxGenerator) ApprovalTxs() [][]byte {
	custody := exchange.CustodyAddress(VenueFungible)
	var out [][]byte
	for i := range g.signers {
		for _, sym := range []string{g.assetSymbol, g.paymentSymbol} {
			if tx := g.signedTokenApprove(i, sym, custody, 1_000_000_000); tx != nil {
				out = append(out, tx)
			}
		}
	}
	return out
}

// GenerateTx creates one random signed exchange transaction
func (g *SignedTxGenerator) GenerateTx() []byte {
	idx := g.rng.Intn(len(g.signers))

	// 20% create, 50% place offer, 15% cancel, 15% match
	r := g.rng.Intn(100)
	switch {
	case r < 20 || g.createdExchanges == 0:
		g.createdExchanges++
		return g.signedExchangeTx(idx, &transaction.ExchangePayload{
			Action:       transaction.ActionCreateExchange,
			Venue:        VenueFungible,
			Name:         fmt.Sprintf("demo-%d", g.createdExchanges),
			AssetToken:   g.assetSymbol,
			PaymentToken: g.paymentSymbol,
			Amount:       fmt.Sprintf("%d", g.rng.Intn(100)+1),
			Price:        fmt.Sprintf("%d", g.rng.Intn(50)+1),
		})

	case r < 70 || g.placedOffers == 0:
		g.placedOffers++
		action := transaction.ActionPlaceBuyingOffer
		if g.rng.Intn(2) == 1 {
			action = transaction.ActionPlaceSellingOffer
		}
		return g.signedExchangeTx(idx, &transaction.ExchangePayload{
			Action:     action,
			Venue:      VenueFungible,
			ExchangeID: fmt.Sprintf("%d", g.rng.Int63n(g.createdExchanges)+1),
			Amount:     fmt.Sprintf("%d", g.rng.Intn(50)+1),
			Price:      fmt.Sprintf("%d", g.rng.Intn(50)+1),
		})

	case r < 85:
		action := transaction.ActionCancelBuyingOffer
		if g.rng.Intn(2) == 1 {
			action = transaction.ActionCancelSellingOffer
		}
		return g.signedExchangeTx(idx, &transaction.ExchangePayload{
			Action:     action,
			Venue:      VenueFungible,
			ExchangeID: fmt.Sprintf("%d", g.rng.Int63n(g.createdExchanges)+1),
			OfferID:    fmt.Sprintf("%d", g.rng.Int63n(g.placedOffers)+1),
		})

	default:
		action := transaction.ActionBuyFromOffer
		if g.rng.Intn(2) == 1 {
			action = transaction.ActionSellFromOffer
		}
		return g.signedExchangeTx(idx, &transaction.ExchangePayload{
			Action:     action,
			Venue:      VenueFungible,
			ExchangeID: fmt.Sprintf("%d", g.rng.Int63n(g.createdExchanges)+1),
			OfferID:    fmt.Sprintf("%d", g.rng.Int63n(g.placedOffers)+1),
		})
	}
}

// GenerateBatch creates n random transactions
func (g *SignedTxGenerator) GenerateBatch(n int) [][]byte {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if tx := g.GenerateTx(); tx != nil {
			out = append(out, tx)
		}
	}
	return out
}

func (g *SignedTxGenerator) nextNonce(idx int) uint64 {
	addr := g.signers[idx].Address().Hex()
	g.nonces[addr]++
	return g.nonces[addr]
}

func (g *SignedTxGenerator) signedExchangeTx(idx int, p *transaction.ExchangePayload) []byte {
	signer := g.signers[idx]
	p.Nonce = fmt.Sprintf("%d", g.nextNonce(idx))
	p.Owner = signer.Address().Hex()

	act, err := p.ToEIP712Action()
	if err != nil {
		return nil
	}
	sig, err := g.eip712.SignExchangeAction(signer, act)
	if err != nil {
		return nil
	}

	tx := &transaction.SignedTransaction{
		Type:      transaction.TxTypeExchange,
		Exchange:  p,
		Signature: fmt.Sprintf("0x%x", sig),
	}
	out, err := json.Marshal(tx)
	if err != nil {
		return nil
	}
	return out
}

func (g *SignedTxGenerator) signedTokenApprove(idx int, symbol string, spender common.Address, amount int64) []byte {
	signer := g.signers[idx]
	p := &transaction.TokenPayload{
		Action:       transaction.ActionApprove,
		Ledger:       symbol,
		Counterparty: spender.Hex(),
		Amount:       big.NewInt(amount).String(),
		Nonce:        fmt.Sprintf("%d", g.nextNonce(idx)),
		Owner:        signer.Address().Hex(),
	}

	act, err := p.ToEIP712Action()
	if err != nil {
		return nil
	}
	sig, err := g.eip712.SignTokenAction(signer, act)
	if err != nil {
		return nil
	}

	tx := &transaction.SignedTransaction{
		Type:      transaction.TxTypeToken,
		Token:     p,
		Signature: fmt.Sprintf("0x%x", sig),
	}
	out, err := json.Marshal(tx)
	if err != nil {
		return nil
	}
	return out
}

// GetSigners returns all signers (for testing/debugging)
func (g *SignedTxGenerator) GetSigners() []*crypto.Signer {
	return g.signers
}
