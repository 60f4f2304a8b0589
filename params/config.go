package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type API struct {
	Addr string
}

type Data struct {
	Dir     string // base data directory
	LogFile string
	WALFile string // empty disables the execution journal
	TradeDB string // empty disables trade persistence
}

// Source selects and tunes the market data source.
type Source struct {
	Kind       string  // "synthetic" or "replay"
	ReplayFile string  // CSV path for Kind=replay
	Speed      float64 // replay pacing: 0 = as fast as possible

	Symbol    string
	BasePrice float64
	TickSize  float64
	Spread    float64
	Interval  time.Duration
}

type Strategy struct {
	Enabled     bool
	Alpha       float64
	Threshold   float64
	OrderQty    uint64
	MaxPosition int64
}

type Config struct {
	API      API
	Data     Data
	Source   Source
	Strategy Strategy
}

func Default() Config {
	return Config{
		API: API{Addr: ":8080"},
		Data: Data{
			Dir:     "data",
			LogFile: "data/tradesim.log",
			WALFile: "data/executions.log",
			TradeDB: "data/trades",
		},
		Source: Source{
			Kind:      "synthetic",
			Speed:     0,
			Symbol:    "SIM-USD",
			BasePrice: 100.0,
			TickSize:  0.05,
			Spread:    0.10,
			Interval:  10 * time.Millisecond,
		},
		Strategy: Strategy{
			Enabled:     true,
			Alpha:       0.1,
			Threshold:   0.002,
			OrderQty:    10,
			MaxPosition: 100,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Data.LogFile = v
	}
	if v := os.Getenv("WAL_FILE"); v != "" {
		cfg.Data.WALFile = v
	}
	if v := os.Getenv("TRADE_DB"); v != "" {
		cfg.Data.TradeDB = v
	}

	if v := os.Getenv("SOURCE_KIND"); v != "" {
		cfg.Source.Kind = v
	}
	if v := os.Getenv("REPLAY_FILE"); v != "" {
		cfg.Source.ReplayFile = v
	}
	if v := os.Getenv("REPLAY_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Source.Speed = f
		}
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		cfg.Source.Symbol = v
	}
	if v := os.Getenv("BASE_PRICE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Source.BasePrice = f
		}
	}
	if v := os.Getenv("TICK_SIZE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Source.TickSize = f
		}
	}
	if v := os.Getenv("QUOTE_SPREAD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Source.Spread = f
		}
	}
	if v := os.Getenv("SOURCE_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Source.Interval = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("STRATEGY_ENABLED"); v != "" {
		cfg.Strategy.Enabled = v == "true"
	}
	if v := os.Getenv("STRATEGY_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Strategy.Alpha = f
		}
	}
	if v := os.Getenv("STRATEGY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Strategy.Threshold = f
		}
	}
	if v := os.Getenv("STRATEGY_ORDER_QTY"); v != "" {
		if q, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Strategy.OrderQty = q
		}
	}
	if v := os.Getenv("STRATEGY_MAX_POSITION"); v != "" {
		if p, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Strategy.MaxPosition = p
		}
	}

	return cfg
}
