package exchange

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/token"
)

// assetOps is the custody capability one asset kind plugs into the engine.
// Payment handling is identical for every kind (always a fungible ledger),
// so only the asset side varies.
type assetOps interface {
	// checkHolding verifies holder can cover amount of tokenID on the
	// asset ledger named by symbol
	checkHolding(symbol string, holder common.Address, tokenID common.Hash, amount int64) error

	// checkApproval verifies engine custody may move holder's assets.
	// Fungible assets skip this and let the allowance surface from the
	// ledger during transfer.
	checkApproval(symbol string, holder common.Address) error

	// transfer moves amount of tokenID from->to with engine custody
	// acting as the operator
	transfer(symbol string, from, to common.Address, tokenID common.Hash, amount int64) error
}

// Engine runs the listing-and-offer protocol for one asset kind. The
// protocol is identical across kinds; the assetOps implementation supplies
// the kind-specific custody behavior.
//
// All operations hold the engine mutex end to end, so an operation either
// fully settles or leaves no trace beyond ledger errors.
type Engine struct {
	mu      sync.Mutex
	name    string
	kind    AssetKind
	custody common.Address
	ledgers *token.Registry
	asset   assetOps
	book    *Book

	// OnSettlement, when set, is invoked after every successful match
	// while the engine mutex is held. Keep it fast.
	OnSettlement func(Settlement)
}

func newEngine(name string, kind AssetKind, ledgers *token.Registry, asset assetOps, store *Store) (*Engine, error) {
	book, err := NewBook(store)
	if err != nil {
		return nil, err
	}
	return &Engine{
		name:    name,
		kind:    kind,
		custody: CustodyAddress(name),
		ledgers: ledgers,
		asset:   asset,
		book:    book,
	}, nil
}

// Name returns the engine instance name
func (e *Engine) Name() string { return e.name }

// Close releases the underlying store, if any
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.book.store == nil {
		return nil
	}
	return e.book.store.Close()
}

// Kind returns the asset kind this engine trades
func (e *Engine) Kind() AssetKind { return e.kind }

// Custody returns the address under which the engine escrows assets and
// payments on the token ledgers
func (e *Engine) Custody() common.Address { return e.custody }

// CreateExchange opens a listing: the creator's initial asset amount is
// escrowed and a standing exchange row is recorded at the given unit price.
// Nothing is recorded when any precondition or the escrow transfer fails.
func (e *Engine) CreateExchange(creator common.Address, name, assetToken, paymentToken string, tokenID common.Hash, amount, price int64) (*Exchange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.kind == Unique {
		amount = 1
	}
	if err := e.asset.checkHolding(assetToken, creator, tokenID, amount); err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	if err := e.asset.checkApproval(assetToken, creator); err != nil {
		return nil, err
	}
	if _, err := e.ledgers.Fungible(paymentToken); err != nil {
		return nil, err
	}
	if err := e.asset.transfer(assetToken, creator, e.custody, tokenID, amount); err != nil {
		return nil, err
	}

	ex := &Exchange{
		ID:           e.book.nextExchangeID(),
		Name:         name,
		AssetToken:   assetToken,
		PaymentToken: paymentToken,
		Creator:      creator,
		TokenID:      tokenID,
		Amount:       amount,
		Price:        price,
	}
	if err := e.book.putExchange(ex); err != nil {
		return nil, err
	}
	return ex, nil
}

// PlaceBuyingOffer records a standing bid against an exchange and escrows
// the full payment (unit price x amount) from the creator. tokenID names
// the asset unit the bid asks for; it may differ from the exchange's
// listed unit. Fungible venues ignore it.
func (e *Engine) PlaceBuyingOffer(creator common.Address, exchangeID int64, tokenID common.Hash, amount, price int64) (*Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ex := e.lookupExchange(exchangeID)
	if e.kind == Unique {
		amount = 1
	}

	pay, err := e.ledgers.Fungible(ex.PaymentToken)
	if err != nil {
		return nil, err
	}
	total, ok := totalOf(price, amount)
	if !ok || pay.BalanceOf(creator) < total {
		return nil, ErrInsufficientBalance
	}
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	if err := pay.TransferFrom(e.custody, creator, e.custody, total); err != nil {
		return nil, err
	}

	o := &Offer{
		ID:         e.book.nextOfferID(),
		ExchangeID: ex.ID,
		Kind:       Buying,
		Creator:    creator,
		TokenID:    tokenID,
		Amount:     amount,
		Price:      price,
		Status:     Active,
	}
	if err := e.book.putOffer(o); err != nil {
		return nil, err
	}
	return o, nil
}

// PlaceSellingOffer records a standing ask against an exchange and escrows
// the offered asset amount from the creator. tokenID names the asset unit
// being sold; it may differ from the exchange's listed unit (which sits in
// custody already). Fungible venues ignore it.
func (e *Engine) PlaceSellingOffer(creator common.Address, exchangeID int64, tokenID common.Hash, amount, price int64) (*Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ex := e.lookupExchange(exchangeID)
	if e.kind == Unique {
		amount = 1
	}

	if err := e.asset.checkHolding(ex.AssetToken, creator, tokenID, amount); err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, ErrInvalidPrice
	}
	if _, ok := totalOf(price, amount); !ok {
		return nil, ErrInvalidPrice
	}
	if err := e.asset.checkApproval(ex.AssetToken, creator); err != nil {
		return nil, err
	}
	if err := e.asset.transfer(ex.AssetToken, creator, e.custody, tokenID, amount); err != nil {
		return nil, err
	}

	o := &Offer{
		ID:         e.book.nextOfferID(),
		ExchangeID: ex.ID,
		Kind:       Selling,
		Creator:    creator,
		TokenID:    tokenID,
		Amount:     amount,
		Price:      price,
		Status:     Active,
	}
	if err := e.book.putOffer(o); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelBuyingOffer withdraws the caller's own buying offer and refunds its
// payment escrow. Only the offer's creator may cancel; the offer id must
// belong to the given exchange and the offer must still be active.
func (e *Engine) CancelBuyingOffer(caller common.Address, exchangeID, offerID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.cancellable(caller, exchangeID, offerID, Buying)
	if err != nil {
		return err
	}
	ex, _ := e.book.exchange(o.ExchangeID)

	pay, err := e.ledgers.Fungible(ex.PaymentToken)
	if err != nil {
		return err
	}

	// Flip to terminal before releasing escrow so the id cannot be
	// cancelled or matched twice.
	o.Status = Cancelled
	if err := e.book.putOffer(o); err != nil {
		o.Status = Active
		return err
	}
	if err := pay.TransferFrom(e.custody, e.custody, o.Creator, o.Total()); err != nil {
		o.Status = Active
		_ = e.book.putOffer(o)
		return err
	}
	return nil
}

// CancelSellingOffer withdraws the caller's own selling offer and returns
// its asset escrow
func (e *Engine) CancelSellingOffer(caller common.Address, exchangeID, offerID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.cancellable(caller, exchangeID, offerID, Selling)
	if err != nil {
		return err
	}
	ex, _ := e.book.exchange(o.ExchangeID)

	o.Status = Cancelled
	if err := e.book.putOffer(o); err != nil {
		o.Status = Active
		return err
	}
	if err := e.asset.transfer(ex.AssetToken, e.custody, o.Creator, o.TokenID, o.Amount); err != nil {
		o.Status = Active
		_ = e.book.putOffer(o)
		return err
	}
	return nil
}

// BuyFromOffer settles a selling offer: the caller pays the offer's creator
// directly and receives the escrowed asset. The offer becomes Filled.
func (e *Engine) BuyFromOffer(taker common.Address, exchangeID, offerID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.matchable(exchangeID, offerID, Selling)
	if err != nil {
		return err
	}
	ex, _ := e.book.exchange(o.ExchangeID)

	pay, err := e.ledgers.Fungible(ex.PaymentToken)
	if err != nil {
		return err
	}

	o.Status = Filled
	if err := e.book.putOffer(o); err != nil {
		o.Status = Active
		return err
	}
	// Taker pays the maker directly; only the asset sits in custody.
	if err := pay.TransferFrom(e.custody, taker, o.Creator, o.Total()); err != nil {
		o.Status = Active
		_ = e.book.putOffer(o)
		return err
	}
	if err := e.asset.transfer(ex.AssetToken, e.custody, taker, o.TokenID, o.Amount); err != nil {
		o.Status = Active
		_ = e.book.putOffer(o)
		return err
	}

	e.settled(o, taker)
	return nil
}

// SellFromOffer settles a buying offer: the caller's asset moves to the
// offer's creator directly and the escrowed payment is released to the
// caller. The offer becomes Filled.
func (e *Engine) SellFromOffer(taker common.Address, exchangeID, offerID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.matchable(exchangeID, offerID, Buying)
	if err != nil {
		return err
	}
	ex, _ := e.book.exchange(o.ExchangeID)

	if err := e.asset.checkApproval(ex.AssetToken, taker); err != nil {
		return err
	}
	pay, err := e.ledgers.Fungible(ex.PaymentToken)
	if err != nil {
		return err
	}

	o.Status = Filled
	if err := e.book.putOffer(o); err != nil {
		o.Status = Active
		return err
	}
	// Taker's asset goes to the maker directly; only the payment sits in
	// custody.
	if err := e.asset.transfer(ex.AssetToken, taker, o.Creator, o.TokenID, o.Amount); err != nil {
		o.Status = Active
		_ = e.book.putOffer(o)
		return err
	}
	if err := pay.TransferFrom(e.custody, e.custody, taker, o.Total()); err != nil {
		o.Status = Active
		_ = e.book.putOffer(o)
		return err
	}

	e.settled(o, taker)
	return nil
}

// GetExchange returns an exchange row by id
func (e *Engine) GetExchange(id int64) (*Exchange, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ex, ok := e.book.exchange(id)
	if !ok {
		return nil, false
	}
	cp := *ex
	return &cp, true
}

// GetOffer returns an offer row by id
func (e *Engine) GetOffer(id int64) (*Offer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.book.offer(id)
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// ListExchanges returns all exchange rows ordered by id
func (e *Engine) ListExchanges() []*Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.book.listExchanges()
	out := make([]*Exchange, len(rows))
	for i, ex := range rows {
		cp := *ex
		out[i] = &cp
	}
	return out
}

// ListOffers returns all offers for one exchange ordered by id.
// A negative exchangeID lists every offer.
func (e *Engine) ListOffers(exchangeID int64) []*Offer {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows := e.book.listOffers(exchangeID)
	out := make([]*Offer, len(rows))
	for i, o := range rows {
		cp := *o
		out[i] = &cp
	}
	return out
}

// totalOf multiplies unit price by quantity, reporting overflow. Ledger
// balances are int64, so a product outside that range can never settle.
func totalOf(price, amount int64) (int64, bool) {
	if price > 0 && amount > 0 && amount > math.MaxInt64/price {
		return 0, false
	}
	return price * amount, true
}

// lookupExchange resolves an exchange row for offer placement. A missing
// id yields a zero row whose empty token symbols fail ledger resolution,
// so placement against an unknown exchange reports an unknown ledger.
func (e *Engine) lookupExchange(id int64) *Exchange {
	if ex, ok := e.book.exchange(id); ok {
		return ex
	}
	return &Exchange{ID: id}
}

// cancellable validates a cancellation request and returns the live offer
// row. Precondition order: existence, creator, exchange id, kind, status.
func (e *Engine) cancellable(caller common.Address, exchangeID, offerID int64, want OfferKind) (*Offer, error) {
	o, ok := e.book.offer(offerID)
	if !ok {
		return nil, ErrOfferNotActive
	}
	if o.Creator != caller {
		return nil, ErrNotOwner
	}
	if o.ExchangeID != exchangeID {
		return nil, ErrExchangeMismatch
	}
	if o.Kind != want {
		return nil, ErrWrongOfferKind
	}
	if o.Status != Active {
		return nil, ErrOfferNotActive
	}
	return o, nil
}

// matchable validates a settlement request and returns the live offer row.
// Precondition order: existence and status, exchange id, kind.
func (e *Engine) matchable(exchangeID, offerID int64, want OfferKind) (*Offer, error) {
	o, ok := e.book.offer(offerID)
	if !ok || o.Status != Active {
		return nil, ErrOfferNotActive
	}
	if o.ExchangeID != exchangeID {
		return nil, ErrExchangeMismatch
	}
	if o.Kind != want {
		return nil, ErrWrongOfferKind
	}
	return o, nil
}

// StateDigest returns a deterministic hash of every exchange and offer row
// plus the id counters. Rows are folded in id order.
func (e *Engine) StateDigest() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := sha256.New()
	h.Write([]byte("engine:" + e.name))

	var buf [8]byte
	writeInt := func(v int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeInt(e.book.lastExchangeID)
	writeInt(e.book.lastOfferID)

	for _, ex := range e.book.listExchanges() {
		writeInt(ex.ID)
		h.Write([]byte(ex.Name))
		h.Write([]byte(ex.AssetToken))
		h.Write([]byte(ex.PaymentToken))
		h.Write(ex.Creator.Bytes())
		h.Write(ex.TokenID.Bytes())
		writeInt(ex.Amount)
		writeInt(ex.Price)
	}
	for _, o := range e.book.listOffers(-1) {
		writeInt(o.ID)
		writeInt(o.ExchangeID)
		writeInt(int64(o.Kind))
		h.Write(o.Creator.Bytes())
		h.Write(o.TokenID.Bytes())
		writeInt(o.Amount)
		writeInt(o.Price)
		writeInt(int64(o.Status))
	}

	return sha256.Sum256(h.Sum(nil))
}

func (e *Engine) settled(o *Offer, taker common.Address) {
	if e.OnSettlement == nil {
		return
	}
	e.OnSettlement(Settlement{
		ExchangeID: o.ExchangeID,
		OfferID:    o.ID,
		Kind:       o.Kind,
		Maker:      o.Creator,
		Taker:      taker,
		TokenID:    o.TokenID,
		Amount:     o.Amount,
		Price:      o.Price,
	})
}
