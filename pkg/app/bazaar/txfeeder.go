package bazaar

import (
	"context"
	"time"
)

// TxFeederConfig controls demo transaction generation rate
type TxFeederConfig struct {
	TxPerSecond int           // Target transactions per second
	BatchSize   int           // Number of txs to generate per batch
	Interval    time.Duration // How often to generate batches
	NumAccounts int           // Number of simulated traders
	AssetSymbol string        // Fungible asset ledger
	PaySymbol   string        // Payment ledger
}

// DefaultFeederConfig returns reasonable defaults for local testing
func DefaultFeederConfig() TxFeederConfig {
	return TxFeederConfig{
		TxPerSecond: 100,
		BatchSize:   10,
		Interval:    100 * time.Millisecond,
		NumAccounts: 50,
		AssetSymbol: "BAZ",
		PaySymbol:   "USDX",
	}
}

// HighLoadConfig returns config for stress testing
func HighLoadConfig() TxFeederConfig {
	return TxFeederConfig{
		TxPerSecond: 1000,
		BatchSize:   100,
		Interval:    100 * time.Millisecond,
		NumAccounts: 200,
		AssetSymbol: "BAZ",
		PaySymbol:   "USDX",
	}
}

// StartTxFeeder starts a background goroutine that continuously feeds
// signed demo transactions into the app mempool. The generator must be
// the one whose DemoGenesis seeded the app, otherwise everything gets
// rejected for missing balances.
//
// Returns a cancel function to stop the feeder.
func StartTxFeeder(ctx context.Context, app *App, gen *SignedTxGenerator, cfg TxFeederConfig) context.CancelFunc {
	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		// Allowances first so the fungible venue can move demo funds
		for _, tx := range gen.ApprovalTxs() {
			app.PushTx(tx)
		}

		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		startTime := time.Now()
		totalTxs := 0

		app.log.Infow("txfeeder started",
			"target_tps", cfg.TxPerSecond, "batch", cfg.BatchSize, "interval", cfg.Interval)

		for {
			select {
			case <-feedCtx.Done():
				elapsed := time.Since(startTime)
				app.log.Infow("txfeeder stopped",
					"total", totalTxs, "elapsed", elapsed.Round(time.Second),
					"tps", float64(totalTxs)/elapsed.Seconds())
				return

			case <-ticker.C:
				batch := gen.GenerateBatch(cfg.BatchSize)
				for _, tx := range batch {
					app.PushTx(tx)
				}
				totalTxs += len(batch)
			}
		}
	}()

	return cancel
}
