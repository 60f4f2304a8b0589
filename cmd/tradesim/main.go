package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/uhyunpark/tradesim/params"
	"github.com/uhyunpark/tradesim/pkg/api"
	"github.com/uhyunpark/tradesim/pkg/engine/book"
	"github.com/uhyunpark/tradesim/pkg/engine/marketdata"
	"github.com/uhyunpark/tradesim/pkg/engine/sim"
	"github.com/uhyunpark/tradesim/pkg/engine/strategy"
	"github.com/uhyunpark/tradesim/pkg/storage"
	"github.com/uhyunpark/tradesim/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Data.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Data.LogFile)

	// ---- Storage ----
	var store *storage.TradeStore
	if cfg.Data.TradeDB != "" {
		store, err = storage.NewTradeStore(cfg.Data.TradeDB)
		if err != nil {
			sugar.Fatalw("trade_store_open_failed", "err", err)
		}
		defer store.Close()
	}

	var wal storage.WAL = storage.NewNopWAL()
	if cfg.Data.WALFile != "" {
		fileWAL, err := storage.NewFileWAL(cfg.Data.WALFile)
		if err != nil {
			sugar.Fatalw("wal_open_failed", "err", err)
		}
		defer fileWAL.Close()
		wal = fileWAL
	}

	// ---- Market data ----
	source, err := buildSource(cfg.Source)
	if err != nil {
		sugar.Fatalw("source_build_failed", "err", err)
	}

	// ---- Engine ----
	b := book.New(cfg.Source.Symbol)
	engine := sim.New(b, source, store, wal, sugar)

	if cfg.Strategy.Enabled {
		st := strategy.NewMeanReversion(strategy.MeanReversionConfig{
			Alpha:       cfg.Strategy.Alpha,
			Threshold:   cfg.Strategy.Threshold,
			OrderQty:    cfg.Strategy.OrderQty,
			MaxPosition: cfg.Strategy.MaxPosition,
		}, engine.NextOrderID, sugar)
		if err := engine.AddStrategy(st); err != nil {
			sugar.Fatalw("strategy_init_failed", "err", err)
		}
	}

	// ---- API ----
	server := api.NewServer(engine, sugar)
	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	if err := engine.Start(); err != nil {
		sugar.Fatalw("engine_start_failed", "err", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	sugar.Infow("shutting_down")
	engine.Stop()
}

func buildSource(cfg params.Source) (marketdata.Source, error) {
	switch cfg.Kind {
	case "replay":
		if cfg.ReplayFile == "" {
			return nil, fmt.Errorf("replay source needs REPLAY_FILE")
		}
		return marketdata.NewReplaySource(cfg.ReplayFile, cfg.Speed), nil
	case "synthetic":
		sc := marketdata.DefaultSyntheticConfig(cfg.Symbol)
		sc.BasePrice = cfg.BasePrice
		sc.TickSize = cfg.TickSize
		sc.Spread = cfg.Spread
		sc.Interval = cfg.Interval
		return marketdata.NewSyntheticSource(sc), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
