package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Engine holds the escrow order-book parameters.
// Heights are L2 block heights, not wall-clock time.
type Engine struct {
	// MinTokenAmount rejects dust orders below this escrowed amount.
	MinTokenAmount uint64
	// MaxValidityPeriod caps how far past the current height an order's
	// valid_until may reach.
	MaxValidityPeriod uint64
	// LockPeriod is the number of heights an order stays reserved for a
	// taker after a successful lock.
	LockPeriod uint64
}

type Node struct {
	// MinBlockTime throttles block production to prevent excessive empty
	// blocks on a single-node sequencer.
	//
	// Recommended values:
	//   - Devnet (single node):  200ms (5 blocks/sec, prevents log spam)
	//   - Load testing:          50ms
	MinBlockTime time.Duration
	APIAddr      string
	DBPath       string
	LogFile      string
}

type Config struct {
	Engine Engine
	Node   Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			MinTokenAmount:    1,
			MaxValidityPeriod: 12 * 60 * 24 * 30, // ~30 days of 5s blocks
			LockPeriod:        12 * 60 * 2,       // ~2 hours of 5s blocks
		},
		Node: Node{
			MinBlockTime: 200 * time.Millisecond,
			APIAddr:      ":8080",
			DBPath:       "data/fiatlock.db",
			LogFile:      "data/node.log",
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

	if v := os.Getenv("ENGINE_MIN_TOKEN_AMOUNT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.MinTokenAmount = n
		}
	}
	if v := os.Getenv("ENGINE_MAX_VALIDITY_PERIOD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.MaxValidityPeriod = n
		}
	}
	if v := os.Getenv("ENGINE_LOCK_PERIOD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.LockPeriod = n
		}
	}
	if v := os.Getenv("NODE_MIN_BLOCK_TIME_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Node.MinBlockTime = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
