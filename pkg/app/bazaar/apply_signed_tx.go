package bazaar

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/transaction"
)

// applyTx verifies and executes one committed transaction. Returns true
// when the state changed. Rejections only log; a bad transaction in a
// committed block must not halt the chain.
func (a *App) applyTx(txBytes []byte) bool {
	tx, err := transaction.ParseTransaction(txBytes)
	if err != nil {
		a.log.Warnw("invalid transaction", "err", err)
		return false
	}

	switch tx.Type {
	case transaction.TxTypeExchange:
		return a.applyExchangeTx(tx)
	case transaction.TxTypeToken:
		return a.applyTokenTx(tx)
	default:
		a.log.Warnw("unsupported transaction type", "type", tx.Type)
		return false
	}
}

// checkNonce enforces strictly increasing nonces per address and records
// the accepted one
func (a *App) checkNonce(owner common.Address, nonceStr string) bool {
	nonce, err := strconv.ParseUint(nonceStr, 10, 64)
	if err != nil {
		a.log.Warnw("invalid nonce", "owner", owner.Hex(), "nonce", nonceStr)
		return false
	}
	if nonce <= a.nonces[owner] {
		a.log.Warnw("nonce too low", "owner", owner.Hex(),
			"nonce", nonce, "last", a.nonces[owner])
		return false
	}
	a.nonces[owner] = nonce
	return true
}

func (a *App) applyExchangeTx(tx *transaction.SignedTransaction) bool {
	owner, valid, err := a.verifier.VerifyExchangeTransaction(tx)
	if err != nil || !valid {
		a.log.Warnw("exchange signature rejected", "err", err)
		return false
	}

	p := tx.Exchange
	eng := a.engines[p.Venue]
	if eng == nil {
		a.log.Warnw("unknown venue", "venue", p.Venue)
		return false
	}

	if !a.checkNonce(owner, p.Nonce) {
		return false
	}

	exchangeID, err1 := parseID(p.ExchangeID)
	offerID, err2 := parseID(p.OfferID)
	amount, err3 := parseID(p.Amount)
	price, err4 := parseID(p.Price)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		a.log.Warnw("bad numeric field in exchange tx", "action", p.Action)
		return false
	}
	tokenID := common.HexToHash(p.TokenID)

	switch p.Action {
	case transaction.ActionCreateExchange:
		ex, err := eng.CreateExchange(owner, p.Name, p.AssetToken, p.PaymentToken, tokenID, amount, price)
		if err != nil {
			a.log.Infow("create exchange rejected", "venue", p.Venue, "owner", owner.Hex(), "err", err)
			return false
		}
		a.log.Infow("exchange created", "venue", p.Venue, "id", ex.ID, "creator", owner.Hex())
		return true

	case transaction.ActionPlaceBuyingOffer:
		o, err := eng.PlaceBuyingOffer(owner, exchangeID, tokenID, amount, price)
		if err != nil {
			a.log.Infow("buying offer rejected", "venue", p.Venue, "exchange", exchangeID, "err", err)
			return false
		}
		a.log.Infow("buying offer placed", "venue", p.Venue, "offer", o.ID, "exchange", exchangeID)
		return true

	case transaction.ActionPlaceSellingOffer:
		o, err := eng.PlaceSellingOffer(owner, exchangeID, tokenID, amount, price)
		if err != nil {
			a.log.Infow("selling offer rejected", "venue", p.Venue, "exchange", exchangeID, "err", err)
			return false
		}
		a.log.Infow("selling offer placed", "venue", p.Venue, "offer", o.ID, "exchange", exchangeID)
		return true

	case transaction.ActionCancelBuyingOffer:
		if err := eng.CancelBuyingOffer(owner, exchangeID, offerID); err != nil {
			a.log.Infow("buying cancel rejected", "venue", p.Venue, "offer", offerID, "err", err)
			return false
		}
		a.log.Infow("buying offer cancelled", "venue", p.Venue, "offer", offerID)
		return true

	case transaction.ActionCancelSellingOffer:
		if err := eng.CancelSellingOffer(owner, exchangeID, offerID); err != nil {
			a.log.Infow("selling cancel rejected", "venue", p.Venue, "offer", offerID, "err", err)
			return false
		}
		a.log.Infow("selling offer cancelled", "venue", p.Venue, "offer", offerID)
		return true

	case transaction.ActionBuyFromOffer:
		if err := eng.BuyFromOffer(owner, exchangeID, offerID); err != nil {
			a.log.Infow("buy from offer rejected", "venue", p.Venue, "offer", offerID, "err", err)
			return false
		}
		a.log.Infow("offer bought", "venue", p.Venue, "offer", offerID, "taker", owner.Hex())
		return true

	case transaction.ActionSellFromOffer:
		if err := eng.SellFromOffer(owner, exchangeID, offerID); err != nil {
			a.log.Infow("sell from offer rejected", "venue", p.Venue, "offer", offerID, "err", err)
			return false
		}
		a.log.Infow("offer sold into", "venue", p.Venue, "offer", offerID, "taker", owner.Hex())
		return true

	default:
		a.log.Warnw("unknown exchange action", "action", p.Action)
		return false
	}
}

func (a *App) applyTokenTx(tx *transaction.SignedTransaction) bool {
	owner, valid, err := a.verifier.VerifyTokenTransaction(tx)
	if err != nil || !valid {
		a.log.Warnw("token signature rejected", "err", err)
		return false
	}

	p := tx.Token
	if !a.checkNonce(owner, p.Nonce) {
		return false
	}

	amount, err := parseID(p.Amount)
	if err != nil {
		a.log.Warnw("bad amount in token tx", "amount", p.Amount)
		return false
	}
	tokenID := common.HexToHash(p.TokenID)
	counterparty := common.HexToAddress(p.Counterparty)

	if err := a.execTokenAction(owner, p.Action, p.Ledger, tokenID, counterparty, amount, p.Approved); err != nil {
		a.log.Infow("token action rejected", "action", p.Action, "ledger", p.Ledger, "err", err)
		return false
	}
	a.log.Infow("token action applied", "action", p.Action, "ledger", p.Ledger, "owner", owner.Hex())
	return true
}

// execTokenAction resolves the ledger by symbol across the three classes
// and runs the action on whichever one matches
func (a *App) execTokenAction(owner common.Address, action, symbol string, tokenID common.Hash, counterparty common.Address, amount int64, approved bool) error {
	if led, err := a.ledgers.Fungible(symbol); err == nil {
		switch action {
		case transaction.ActionTransfer:
			return led.Transfer(owner, counterparty, amount)
		case transaction.ActionApprove:
			return led.Approve(owner, counterparty, amount)
		default:
			return fmt.Errorf("action %s not supported on fungible ledger %s", action, symbol)
		}
	}

	if led, err := a.ledgers.Unique(symbol); err == nil {
		switch action {
		case transaction.ActionTransfer:
			return led.TransferFrom(owner, owner, counterparty, tokenID)
		case transaction.ActionSetApprovalForAll:
			led.SetApprovalForAll(owner, counterparty, approved)
			return nil
		default:
			return fmt.Errorf("action %s not supported on unique ledger %s", action, symbol)
		}
	}

	if led, err := a.ledgers.SemiFungible(symbol); err == nil {
		switch action {
		case transaction.ActionTransfer:
			return led.TransferFrom(owner, owner, counterparty, tokenID, amount)
		case transaction.ActionSetApprovalForAll:
			led.SetApprovalForAll(owner, counterparty, approved)
			return nil
		default:
			return fmt.Errorf("action %s not supported on semi-fungible ledger %s", action, symbol)
		}
	}

	return fmt.Errorf("unknown ledger: %s", symbol)
}

// parseID parses an optional decimal int64 field; empty means zero
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
