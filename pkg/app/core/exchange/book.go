package exchange

import (
	"fmt"
	"sort"
)

// Book holds the in-memory exchange and offer tables for one engine
// instance, with optional Pebble persistence behind it. All mutation goes
// through the owning Engine's mutex; the Book itself does no locking.
//
// Ids are assigned monotonically from 1. Exchanges and offers each have
// their own sequence; buying and selling offers share the offer sequence.
type Book struct {
	exchanges map[int64]*Exchange
	offers    map[int64]*Offer

	lastExchangeID int64
	lastOfferID    int64

	store *Store // nil means memory-only
}

// NewBook creates an empty book. store may be nil for memory-only use;
// when non-nil, previously persisted rows and counters are loaded.
func NewBook(store *Store) (*Book, error) {
	b := &Book{
		exchanges: make(map[int64]*Exchange),
		offers:    make(map[int64]*Offer),
		store:     store,
	}
	if store == nil {
		return b, nil
	}

	lastEx, lastOf, err := store.LoadCounters()
	if err != nil {
		return nil, fmt.Errorf("failed to restore counters: %w", err)
	}
	b.lastExchangeID = lastEx
	b.lastOfferID = lastOf

	exchanges, err := store.LoadExchanges()
	if err != nil {
		return nil, fmt.Errorf("failed to restore exchanges: %w", err)
	}
	for _, ex := range exchanges {
		b.exchanges[ex.ID] = ex
	}

	offers, err := store.LoadOffers()
	if err != nil {
		return nil, fmt.Errorf("failed to restore offers: %w", err)
	}
	for _, o := range offers {
		b.offers[o.ID] = o
	}
	return b, nil
}

// nextExchangeID assigns the next exchange id
func (b *Book) nextExchangeID() int64 {
	b.lastExchangeID++
	return b.lastExchangeID
}

// nextOfferID assigns the next offer id (shared across both offer kinds)
func (b *Book) nextOfferID() int64 {
	b.lastOfferID++
	return b.lastOfferID
}

// putExchange records an exchange row and persists it
func (b *Book) putExchange(ex *Exchange) error {
	b.exchanges[ex.ID] = ex
	if b.store != nil {
		if err := b.store.SaveExchange(ex); err != nil {
			return err
		}
		return b.store.SaveCounters(b.lastExchangeID, b.lastOfferID)
	}
	return nil
}

// putOffer records or updates an offer row and persists it
func (b *Book) putOffer(o *Offer) error {
	b.offers[o.ID] = o
	if b.store != nil {
		if err := b.store.SaveOffer(o); err != nil {
			return err
		}
		return b.store.SaveCounters(b.lastExchangeID, b.lastOfferID)
	}
	return nil
}

// exchange looks up an exchange row by id
func (b *Book) exchange(id int64) (*Exchange, bool) {
	ex, ok := b.exchanges[id]
	return ex, ok
}

// offer looks up an offer row by id
func (b *Book) offer(id int64) (*Offer, bool) {
	o, ok := b.offers[id]
	return o, ok
}

// listExchanges returns all exchange rows sorted by id
func (b *Book) listExchanges() []*Exchange {
	out := make([]*Exchange, 0, len(b.exchanges))
	for _, ex := range b.exchanges {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// listOffers returns offers for one exchange sorted by id.
// exchangeID < 0 lists every offer in the book.
func (b *Book) listOffers(exchangeID int64) []*Offer {
	out := make([]*Offer, 0, len(b.offers))
	for _, o := range b.offers {
		if exchangeID >= 0 && o.ExchangeID != exchangeID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
