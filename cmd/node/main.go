package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openrails/fiatlock/params"
	"github.com/openrails/fiatlock/pkg/api"
	"github.com/openrails/fiatlock/pkg/app/core/book"
	"github.com/openrails/fiatlock/pkg/app/core/mempool"
	"github.com/openrails/fiatlock/pkg/app/core/proof"
	"github.com/openrails/fiatlock/pkg/app/escrow"
	"github.com/openrails/fiatlock/pkg/sequencer"
	"github.com/openrails/fiatlock/pkg/storage"
	"github.com/openrails/fiatlock/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	if err := os.MkdirAll(filepath.Dir(cfg.Node.LogFile), 0o755); err != nil {
		log.Fatalf("log dir: %v", err)
	}
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Storage ----
	store, err := storage.NewPebbleStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Application ----
	bookCfg := book.Config{
		MinTokenAmount:    cfg.Engine.MinTokenAmount,
		MaxValidityPeriod: cfg.Engine.MaxValidityPeriod,
		LockPeriod:        cfg.Engine.LockPeriod,
	}
	app := escrow.NewApp(bookCfg, proof.MockVerifier{}, store, sugar)
	if err := app.LoadState(store); err != nil {
		sugar.Fatalw("state_load_failed", "err", err)
	}

	// ---- Sequencer ----
	pool := mempool.NewMempool()
	seq := sequencer.New(app, pool, store)
	seq.Logger = sugar
	seq.MinBlockTime = cfg.Node.MinBlockTime

	if height, blockHash, appHash, ok, err := store.GetTip(); err != nil {
		sugar.Fatalw("tip_load_failed", "err", err)
	} else if ok {
		seq.Resume(height, blockHash, appHash)
		sugar.Infow("chain_resumed", "height", height, "app_hash", appHash.String())
	}

	// ---- API ----
	apiServer := api.NewServer(app, pool, seq, sugar)
	seq.OnBlockCommit = apiServer.BroadcastBlock
	app.OnOrderEvent = apiServer.BroadcastOrderEvent

	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("node_starting",
		"min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds(),
		"api_addr", cfg.Node.APIAddr,
		"db_path", cfg.Node.DBPath)

	go func() {
		if err := seq.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Fatalw("sequencer_failed", "err", err)
		}
	}()

	// Progress logging loop
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	var lastLogged uint64
	for {
		select {
		case <-ctx.Done():
			sugar.Infow("node_stopping", "height", seq.Height())
			return
		case <-ticker.C:
			h := seq.Height()
			if h != lastLogged {
				sugar.Infow("chain_progress", "height", h, "mempool", pool.Len())
				lastLogged = h
			}
		}
	}
}
