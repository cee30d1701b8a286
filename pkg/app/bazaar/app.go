package bazaar

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bazaarchain/bazaard/pkg/abci"
	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/app/core/mempool"
	"github.com/bazaarchain/bazaard/pkg/app/core/token"
	"github.com/bazaarchain/bazaard/pkg/app/core/transaction"
	"github.com/bazaarchain/bazaard/pkg/crypto"
)

// Venue names. Each venue is one engine instance with its own custody
// address, id sequences and persistence.
const (
	VenueFungible     = "fungible"
	VenueUnique       = "unique"
	VenueSemiFungible = "semifungible"
)

// Config controls app construction
type Config struct {
	DataDir string              // "" disables persistence
	Domain  crypto.EIP712Domain // EIP-712 signing domain
	Genesis *Genesis            // nil means empty state
	Logger  *zap.SugaredLogger  // nil means no-op logger
}

// App is the replicated state machine: three exchange engines over a
// shared token ledger registry, fed by signed transactions in committed
// blocks. It implements abci.Application.
type App struct {
	mu       sync.Mutex
	log      *zap.SugaredLogger
	mempool  *mempool.Mempool
	verifier *transaction.Verifier
	ledgers  *token.Registry
	engines  map[string]*exchange.Engine
	nonces   map[common.Address]uint64

	lastHeight int64

	// OnSettlement, when set, receives every completed match across all
	// venues. Called during FinalizeBlock; keep it fast.
	OnSettlement func(venue string, s exchange.Settlement)
}

// NewApp builds the app, opens engine persistence under cfg.DataDir and
// applies genesis state
func NewApp(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	a := &App{
		log:      logger,
		mempool:  mempool.NewMempool(),
		verifier: transaction.NewVerifier(cfg.Domain),
		ledgers:  token.NewRegistry(),
		engines:  make(map[string]*exchange.Engine),
		nonces:   make(map[common.Address]uint64),
	}

	openStore := func(venue string) (*exchange.Store, error) {
		if cfg.DataDir == "" {
			return nil, nil
		}
		return exchange.NewStore(filepath.Join(cfg.DataDir, "exchange", venue))
	}

	type engineCtor func(string, *token.Registry, *exchange.Store) (*exchange.Engine, error)
	ctors := map[string]engineCtor{
		VenueFungible:     exchange.NewFungibleEngine,
		VenueUnique:       exchange.NewUniqueEngine,
		VenueSemiFungible: exchange.NewSemiFungibleEngine,
	}
	for _, venue := range []string{VenueFungible, VenueUnique, VenueSemiFungible} {
		store, err := openStore(venue)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", venue, err)
		}
		eng, err := ctors[venue](venue, a.ledgers, store)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s engine: %w", venue, err)
		}
		venue := venue
		eng.OnSettlement = func(s exchange.Settlement) { a.settled(venue, s) }
		a.engines[venue] = eng
	}

	if cfg.Genesis != nil {
		if err := a.applyGenesis(cfg.Genesis); err != nil {
			return nil, fmt.Errorf("failed to apply genesis: %w", err)
		}
	}
	return a, nil
}

// Close releases engine persistence
func (a *App) Close() error {
	var firstErr error
	for _, eng := range a.engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PushTx admits a raw transaction into the mempool
func (a *App) PushTx(b []byte) { a.mempool.PushRaw(b) }

// Ledgers exposes the token ledger registry (reads and API)
func (a *App) Ledgers() *token.Registry { return a.ledgers }

// Engine returns the engine for a venue, or nil for an unknown venue
func (a *App) Engine(venue string) *exchange.Engine { return a.engines[venue] }

// Venues returns all venue names in deterministic order
func (a *App) Venues() []string {
	return []string{VenueFungible, VenueUnique, VenueSemiFungible}
}

// Height returns the last finalized block height
func (a *App) Height() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastHeight
}

// Nonce returns the last accepted nonce for an address
func (a *App) Nonce(addr common.Address) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nonces[addr]
}

func (a *App) settled(venue string, s exchange.Settlement) {
	if a.OnSettlement != nil {
		a.OnSettlement(venue, s)
	}
}

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	txs := a.mempool.SelectForProposal(req.MaxTxBytes)
	return abci.ResponsePrepareProposal{Txs: txs}
}

func (a *App) ProcessProposal(req abci.RequestProcessProposal) abci.ResponseProcessProposal {
	// Structural validation only; signatures and state checks run at
	// FinalizeBlock so every replica rejects identically.
	for _, tx := range req.Txs {
		if _, err := transaction.ParseTransaction(tx); err != nil {
			return abci.ResponseProcessProposal{Accept: false}
		}
	}
	return abci.ResponseProcessProposal{Accept: true}
}

func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	a.mu.Lock()
	defer a.mu.Unlock()

	applied := 0
	for _, tx := range req.Txs {
		if a.applyTx(tx) {
			applied++
		}
	}

	a.lastHeight = req.Height
	appHash := a.computeStateHash(req.Height, req.Timestamp)

	if len(req.Txs) > 0 {
		a.log.Infow("finalized block",
			"height", req.Height, "txs", len(req.Txs), "applied", applied,
			"apphash", fmt.Sprintf("0x%x", appHash[:8]))
	}

	return abci.ResponseFinalizeBlock{
		Events:  []string{"commit"},
		AppHash: appHash,
	}
}

// computeStateHash folds the full application state into a deterministic
// 32-byte hash: height, timestamp, every ledger digest (sorted by symbol),
// every engine digest (fixed venue order) and all account nonces (sorted
// by address).
func (a *App) computeStateHash(height, timestamp int64) [32]byte {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(timestamp))
	h.Write(buf[:])

	fungible, unique, semi := a.ledgers.Symbols()
	for _, sym := range fungible {
		led, _ := a.ledgers.Fungible(sym)
		d := led.StateDigest()
		h.Write(d[:])
	}
	for _, sym := range unique {
		led, _ := a.ledgers.Unique(sym)
		d := led.StateDigest()
		h.Write(d[:])
	}
	for _, sym := range semi {
		led, _ := a.ledgers.SemiFungible(sym)
		d := led.StateDigest()
		h.Write(d[:])
	}

	for _, venue := range a.Venues() {
		d := a.engines[venue].StateDigest()
		h.Write(d[:])
	}

	addrs := make([]common.Address, 0, len(a.nonces))
	for addr := range a.nonces {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })
	for _, addr := range addrs {
		h.Write(addr.Bytes())
		binary.BigEndian.PutUint64(buf[:], a.nonces[addr])
		h.Write(buf[:])
	}

	return sha256.Sum256(h.Sum(nil))
}
