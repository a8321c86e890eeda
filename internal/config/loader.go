package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load merges an optional TOML file at path on top of the built-in defaults,
// applies environment overrides, and returns the final Config. An empty path
// skips the file. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads the plain deployment variables (PORT, DATABASE_URL,
// REDIS_URL) and then the TRADEGAME_* variables, which win when both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Deployment ──
	setInt(&cfg.Server.Port, "PORT")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")

	// ── Server ──
	setInt(&cfg.Server.Port, "TRADEGAME_SERVER_PORT")
	setDuration(&cfg.Server.ReadTimeout, "TRADEGAME_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "TRADEGAME_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "TRADEGAME_SERVER_IDLE_TIMEOUT")
	setDuration(&cfg.Server.RequestTimeout, "TRADEGAME_SERVER_REQUEST_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "TRADEGAME_SERVER_SHUTDOWN_TIMEOUT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADEGAME_SERVER_CORS_ORIGINS")

	// ── Database ──
	setStr(&cfg.Database.URL, "TRADEGAME_DATABASE_URL")
	setInt(&cfg.Database.MaxConns, "TRADEGAME_DATABASE_MAX_CONNS")
	setBool(&cfg.Database.RunMigrations, "TRADEGAME_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "TRADEGAME_REDIS_URL")
	setDuration(&cfg.Redis.CacheTTL, "TRADEGAME_REDIS_CACHE_TTL")

	// ── Game ──
	setDecimal(&cfg.Game.StartingCash, "TRADEGAME_GAME_STARTING_CASH")
	setInt(&cfg.Game.TotalTurns, "TRADEGAME_GAME_TOTAL_TURNS")
	setInt(&cfg.Game.InstrumentCount, "TRADEGAME_GAME_INSTRUMENT_COUNT")
	setBool(&cfg.Game.FastMode, "TRADEGAME_GAME_FAST_MODE")
	setDecimal(&cfg.Game.BankInterestRate, "TRADEGAME_GAME_BANK_INTEREST_RATE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "TRADEGAME_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present, non-empty and parses.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
