package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bazaarchain/bazaard/params"
	"github.com/bazaarchain/bazaard/pkg/abci"
	"github.com/bazaarchain/bazaard/pkg/api"
	"github.com/bazaarchain/bazaard/pkg/app/bazaar"
	"github.com/bazaarchain/bazaard/pkg/app/core/exchange"
	"github.com/bazaarchain/bazaard/pkg/consensus"
	"github.com/bazaarchain/bazaard/pkg/crypto"
	"github.com/bazaarchain/bazaard/pkg/p2p"
	"github.com/bazaarchain/bazaard/pkg/storage"
	"github.com/bazaarchain/bazaard/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, "node.log")
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- App: token exchange venues ----
	// Demo mode (ENABLE_TXGEN=true) seeds genesis from the generator's
	// keypairs; otherwise the chain starts empty and balances must come
	// from a genesis file or stay zero.
	domain := crypto.DefaultDomain()

	var gen *bazaar.SignedTxGenerator
	var genesis *bazaar.Genesis
	var txCfg bazaar.TxFeederConfig
	if os.Getenv("ENABLE_TXGEN") == "true" {
		switch os.Getenv("TXGEN_MODE") {
		case "high":
			txCfg = bazaar.HighLoadConfig()
			sugar.Infow("txgen_enabled", "mode", "high_load", "target_tps", txCfg.TxPerSecond)
		default:
			txCfg = bazaar.DefaultFeederConfig()
			sugar.Infow("txgen_enabled", "mode", "default", "target_tps", txCfg.TxPerSecond)
		}
		gen = bazaar.NewSignedTxGenerator(txCfg.NumAccounts, txCfg.AssetSymbol, txCfg.PaySymbol, domain)
		genesis = gen.DemoGenesis()
	}

	app, err := bazaar.NewApp(bazaar.Config{
		DataDir: cfg.Node.DataDir,
		Domain:  domain,
		Genesis: genesis,
		Logger:  sugar,
	})
	if err != nil {
		sugar.Fatalw("app_init_failed", "err", err)
	}
	defer app.Close()

	bridge := &abci.Bridge{App: app}

	// ---- Consensus ----
	selfID := consensus.NodeID(cfg.Consensus.Validators[0])

	// Build validator set from config
	var ids []consensus.NodeID
	for _, s := range cfg.Consensus.Validators {
		ids = append(ids, consensus.NodeID(s))
	}

	// For single-node development: only use this validator
	// For multi-node: use all validators
	// TODO: Proper peer discovery & dynamic validator set
	singleNodeMode := cfg.Node.SingleNode
	if singleNodeMode {
		ids = []consensus.NodeID{selfID}
	}

	// Quorum: N validators, need 2f+1 = 2*t+1 where N=3t+1
	// For N=1: t=0, need 1 vote (single-node dev mode)
	// For N=4: t=1, need 3 votes
	// For N=7: t=2, need 5 votes
	n := len(ids)
	t := (n - 1) / 3

	state := &consensus.State{
		Q:       consensus.Quorum{N: n, T: t},
		SelfID:  selfID,
		Blocks:  make(map[consensus.Hash]consensus.Block),
		Genesis: consensus.GenesisBlock(),
	}
	safety := consensus.NewSafety(state)
	pm := consensus.NewPacemaker(
		consensus.PacemakerTimers{Ppc: cfg.Consensus.Ppc, Delta: cfg.Consensus.Delta},
		util.RealClock{},
		state,
	)

	// Network: always use libp2p (works for any number of validators)
	elec := consensus.RoundRobinElector{IDs: ids}
	var signer interface{} = crypto.DummySigner{}

	lpn, err := p2p.NewLibp2pNet(context.Background(), p2p.Libp2pConfig{
		ListenAddr: os.Getenv("LISTEN"),
		Bootstrap:  []string{},
		SelfID:     state.SelfID,
		Quorum:     state.Q,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("libp2p_init_failed", "err", err)
	}
	net := lpn

	engine := consensus.NewEngine(state, safety, pm, bridge, net, elec, signer)
	engine.Logger = sugar
	engine.MinBlockTime = cfg.Node.MinBlockTime // Apply block time throttle from config

	// Consensus storage: durable when a data dir is configured
	var settleStore *storage.PebbleStore
	if cfg.Node.DataDir != "" {
		ps, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "consensus"))
		if err != nil {
			sugar.Fatalw("pebble_init_failed", "err", err)
		}
		defer ps.Close()
		engine.Store = ps
		settleStore = ps
	} else {
		engine.Store = storage.NewInMemoryBlockStore()
	}

	// Control logging verbosity via env var (default: quiet)
	if os.Getenv("VERBOSE") == "true" {
		engine.VerboseLogging = true
		sugar.Info("verbose logging enabled")
	}

	sugar.Infow("block_time_config", "min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Transaction Feeder (optional) ----
	if gen != nil {
		cancelFeeder := bazaar.StartTxFeeder(ctx, app, gen, txCfg)
		defer cancelFeeder()
	} else {
		sugar.Info("txgen_disabled - submit signed transactions via the API")
	}

	// Logging control: log every N blocks to reduce noise
	logInterval := consensus.Height(100)
	lastLoggedHeight := consensus.Height(0)

	sugar.Infow("node_starting",
		"config_validators", len(cfg.Consensus.Validators),
		"active_validators", len(ids),
		"single_node_mode", singleNodeMode,
		"quorum_need", 2*t+1)

	// ---- API Server ----
	// Start HTTP/WebSocket server for wallets and explorers
	apiServer := api.NewServer(app)
	if settleStore != nil {
		apiServer.SetSettlementHistory(settleStore)
	}
	apiAddr := os.Getenv("API_ADDR")
	if apiAddr == "" {
		apiAddr = ":8080"
	}

	go func() {
		sugar.Infow("api_server_starting", "addr", apiAddr)
		if err := apiServer.Start(apiAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// Hook app to API server and history: fan out every settled match
	app.OnSettlement = func(venue string, st exchange.Settlement) {
		apiServer.BroadcastSettlement(venue, st)
		if settleStore != nil {
			rec := &storage.SettlementRecord{
				Venue:      venue,
				Timestamp:  time.Now().UnixMilli(),
				Settlement: st,
			}
			if err := settleStore.SaveSettlement(rec); err != nil {
				sugar.Warnw("settlement_save_failed", "err", err)
			}
		}
	}

	// Start consensus engine (HotStuff Run loop)
	// Leader actively proposes, followers reactively respond
	go func() {
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Fatalw("engine_failed", "err", err)
		}
	}()

	// Progress logging loop
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Log progress every logInterval blocks
			if state.Height-lastLoggedHeight >= logInterval || state.Height <= 5 {
				sugar.Infow("consensus_progress",
					"height", state.Height,
					"view", state.View,
					"blocks_since_last_log", state.Height-lastLoggedHeight)
				lastLoggedHeight = state.Height
			}
		}
	}
}
