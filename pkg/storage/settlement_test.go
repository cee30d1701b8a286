package storage_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/storage"
)

func TestSettlementHistoryRoundTrip(t *testing.T) {
	store, err := storage.NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	maker := common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	taker := common.HexToAddress("0xB0B0000000000000000000000000000000000002")

	for i, ts := range []int64{1_000, 2_000, 3_000} {
		rec := &storage.SettlementRecord{
			Venue:     "fungible",
			Timestamp: ts,
			Settlement: exchange.Settlement{
				ExchangeID: 1,
				OfferID:    int64(i + 1),
				Kind:       exchange.Selling,
				Maker:      maker,
				Taker:      taker,
				Amount:     10,
				Price:      5,
			},
		}
		if err := store.SaveSettlement(rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	// A different venue must not leak into the scan.
	if err := store.SaveSettlement(&storage.SettlementRecord{
		Venue:     "unique",
		Timestamp: 9_000,
		Settlement: exchange.Settlement{
			ExchangeID: 7,
			OfferID:    9,
			Kind:       exchange.Selling,
			Maker:      maker,
			Taker:      taker,
			Amount:     1,
			Price:      500,
		},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	recs, err := store.LoadRecentSettlements("fungible", 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	// Newest first.
	if recs[0].Timestamp != 3_000 || recs[1].Timestamp != 2_000 {
		t.Errorf("timestamps = %d, %d; want 3000, 2000", recs[0].Timestamp, recs[1].Timestamp)
	}
	if recs[0].OfferID != 3 {
		t.Errorf("newest offer id = %d, want 3", recs[0].OfferID)
	}

	all, err := store.LoadRecentSettlements("fungible", 10)
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all records = %d, want 3", len(all))
	}

	u, err := store.LoadRecentSettlements("unique", 10)
	if err != nil {
		t.Fatalf("load unique: %v", err)
	}
	if len(u) != 1 || u[0].OfferID != 9 {
		t.Errorf("unique records = %+v, want the single offer 9", u)
	}
}
