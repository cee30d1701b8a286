package exchange

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store persists exchange and offer rows plus the id counters to Pebble.
// One store per engine instance; all writes go through the Book's mutex.
//
// Key schema:
//   ex:<8-byte-big-endian-id>  exchange row (JSON)
//   of:<8-byte-big-endian-id>  offer row (JSON)
//   seq:ex / seq:of            last assigned ids
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

func exchangeKey(id int64) []byte { return idKey("ex:", id) }
func offerKey(id int64) []byte    { return idKey("of:", id) }

func idKey(prefix string, id int64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(id))
	return key
}

var (
	keySeqExchange = []byte("seq:ex")
	keySeqOffer    = []byte("seq:of")
)

// SaveExchange persists an exchange row
func (s *Store) SaveExchange(ex *Exchange) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("failed to marshal exchange: %w", err)
	}
	if err := s.db.Set(exchangeKey(ex.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

// SaveOffer persists an offer row
func (s *Store) SaveOffer(o *Offer) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %w", err)
	}
	if err := s.db.Set(offerKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save offer: %w", err)
	}
	return nil
}

// SaveCounters persists the last assigned ids
func (s *Store) SaveCounters(lastExchangeID, lastOfferID int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(lastExchangeID))
	if err := s.db.Set(keySeqExchange, buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save exchange counter: %w", err)
	}
	binary.BigEndian.PutUint64(buf[:], uint64(lastOfferID))
	if err := s.db.Set(keySeqOffer, buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save offer counter: %w", err)
	}
	return nil
}

// LoadCounters returns the persisted id counters (zero if never written)
func (s *Store) LoadCounters() (lastExchangeID, lastOfferID int64, err error) {
	read := func(key []byte) (int64, error) {
		val, closer, err := s.db.Get(key)
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer closer.Close()
		return int64(binary.BigEndian.Uint64(val)), nil
	}
	if lastExchangeID, err = read(keySeqExchange); err != nil {
		return 0, 0, fmt.Errorf("failed to load exchange counter: %w", err)
	}
	if lastOfferID, err = read(keySeqOffer); err != nil {
		return 0, 0, fmt.Errorf("failed to load offer counter: %w", err)
	}
	return lastExchangeID, lastOfferID, nil
}

// LoadExchanges loads all persisted exchange rows
func (s *Store) LoadExchanges() ([]*Exchange, error) {
	return loadRange[Exchange](s.db, []byte("ex:"))
}

// LoadOffers loads all persisted offer rows
func (s *Store) LoadOffers() ([]*Offer, error) {
	return loadRange[Offer](s.db, []byte("of:"))
}

func loadRange[T any](db *pebble.DB, prefix []byte) ([]*T, error) {
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*T
	for iter.First(); iter.Valid(); iter.Next() {
		var row T
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row %q: %w", iter.Key(), err)
		}
		out = append(out, &row)
	}
	return out, nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
