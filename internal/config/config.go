// Package config resolves daemon settings: defaults, then the YAML file, then
// WLEDGER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/pkg/models"

	"gopkg.in/yaml.v3"
)

// DefaultProgramID is the program id records are derived under unless
// configured otherwise.
const DefaultProgramID = "ExSiNgfPTSPew6kCqetyNcw8zWMo1hozULkZR1CSEq88"

const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendSnapshot = "snapshot"
)

type Config struct {
	Ledger  LedgerConfig
	Storage StorageConfig
	RPC     RPCConfig
	Metrics MetricsConfig
	Log     LogConfig
}

type LedgerConfig struct {
	ProgramID models.Key
	// UpgradeAuthority is the only key allowed to initialize the config. Zero
	// means the program is immutable.
	UpgradeAuthority models.Key
	Policy           contracts.Policy
}

type StorageConfig struct {
	Backend   string
	Path      string
	Secret    string
	CacheSize int
}

type RPCConfig struct {
	Addr              string
	Token             string
	RequireSignatures bool
	RateLimit         RateLimitConfig
	IdempotencyTTL    time.Duration
	IdempotencySize   int
	ReadHeaderTimeout time.Duration
	MaxBodyBytes      int64
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type MetricsConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			ProgramID: models.MustParseKey(DefaultProgramID),
			Policy:    contracts.DefaultPolicy(),
		},
		Storage: StorageConfig{
			Backend:   BackendMemory,
			CacheSize: 4096,
		},
		RPC: RPCConfig{
			Addr:              "127.0.0.1:8899",
			RequireSignatures: true,
			RateLimit:         RateLimitConfig{Enabled: true, RPS: 20, Burst: 40},
			IdempotencyTTL:    10 * time.Minute,
			IdempotencySize:   4096,
			ReadHeaderTimeout: 5 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// FileConfig mirrors the YAML layout. Unset fields keep their defaults.
type FileConfig struct {
	Ledger  FileLedgerConfig  `yaml:"ledger"`
	Storage FileStorageConfig `yaml:"storage"`
	RPC     FileRPCConfig     `yaml:"rpc"`
	Metrics FileMetricsConfig `yaml:"metrics"`
	Log     FileLogConfig     `yaml:"log"`
}

type FileLedgerConfig struct {
	ProgramID           string         `yaml:"programId"`
	UpgradeAuthority    string         `yaml:"upgradeAuthority"`
	EnclaveSharePercent *uint8         `yaml:"enclaveSharePercent"`
	Rent                FileRentConfig `yaml:"rent"`
	DevFaucet           *bool          `yaml:"devFaucet"`
}

type FileRentConfig struct {
	LamportsPerByteYear uint64 `yaml:"lamportsPerByteYear"`
	ExemptionYears      uint64 `yaml:"exemptionYears"`
}

type FileStorageConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	Secret    string `yaml:"secret"`
	CacheSize int    `yaml:"cacheSize"`
}

type FileRPCConfig struct {
	Addr              string              `yaml:"addr"`
	Token             string              `yaml:"token"`
	RequireSignatures *bool               `yaml:"requireSignatures"`
	RateLimit         FileRateLimitConfig `yaml:"rateLimit"`
	IdempotencyTTL    time.Duration       `yaml:"idempotencyTTL"`
	IdempotencySize   int                 `yaml:"idempotencySize"`
	ReadHeaderTimeout time.Duration       `yaml:"readHeaderTimeout"`
	MaxBodyBytes      int64               `yaml:"maxBodyBytes"`
}

type FileRateLimitConfig struct {
	Enabled *bool   `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type FileMetricsConfig struct {
	Addr *string `yaml:"addr"`
}

type FileLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load builds the effective configuration. An empty path tries the default
// locations and falls back to defaults when none exists; an explicit path
// must be readable.
func Load(path string) (Config, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = []string{"configs/ledgerd.yaml", "ledgerd.yaml"}
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) && path == "" {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", candidate, err)
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", candidate, err)
		}
		if err := Merge(&cfg, parsed); err != nil {
			return cfg, fmt.Errorf("config %s: %w", candidate, err)
		}
		break
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func Merge(dst *Config, src FileConfig) error {
	if src.Ledger.ProgramID != "" {
		key, err := models.ParseKey(src.Ledger.ProgramID)
		if err != nil {
			return fmt.Errorf("ledger.programId: %w", err)
		}
		dst.Ledger.ProgramID = key
	}
	if src.Ledger.UpgradeAuthority != "" {
		key, err := models.ParseKey(src.Ledger.UpgradeAuthority)
		if err != nil {
			return fmt.Errorf("ledger.upgradeAuthority: %w", err)
		}
		dst.Ledger.UpgradeAuthority = key
	}
	if src.Ledger.EnclaveSharePercent != nil {
		dst.Ledger.Policy.EnclaveSharePercent = *src.Ledger.EnclaveSharePercent
	}
	if src.Ledger.Rent.LamportsPerByteYear != 0 {
		dst.Ledger.Policy.RentLamportsPerByteYear = src.Ledger.Rent.LamportsPerByteYear
	}
	if src.Ledger.Rent.ExemptionYears != 0 {
		dst.Ledger.Policy.RentExemptionYears = src.Ledger.Rent.ExemptionYears
	}
	if src.Ledger.DevFaucet != nil {
		dst.Ledger.Policy.DevFaucet = *src.Ledger.DevFaucet
	}

	if src.Storage.Backend != "" {
		dst.Storage.Backend = src.Storage.Backend
	}
	if src.Storage.Path != "" {
		dst.Storage.Path = src.Storage.Path
	}
	if src.Storage.Secret != "" {
		dst.Storage.Secret = src.Storage.Secret
	}
	if src.Storage.CacheSize != 0 {
		dst.Storage.CacheSize = src.Storage.CacheSize
	}

	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.Token != "" {
		dst.RPC.Token = src.RPC.Token
	}
	if src.RPC.RequireSignatures != nil {
		dst.RPC.RequireSignatures = *src.RPC.RequireSignatures
	}
	if src.RPC.RateLimit.Enabled != nil {
		dst.RPC.RateLimit.Enabled = *src.RPC.RateLimit.Enabled
	}
	if src.RPC.RateLimit.RPS != 0 {
		dst.RPC.RateLimit.RPS = src.RPC.RateLimit.RPS
	}
	if src.RPC.RateLimit.Burst != 0 {
		dst.RPC.RateLimit.Burst = src.RPC.RateLimit.Burst
	}
	if src.RPC.IdempotencyTTL != 0 {
		dst.RPC.IdempotencyTTL = src.RPC.IdempotencyTTL
	}
	if src.RPC.IdempotencySize != 0 {
		dst.RPC.IdempotencySize = src.RPC.IdempotencySize
	}
	if src.RPC.ReadHeaderTimeout != 0 {
		dst.RPC.ReadHeaderTimeout = src.RPC.ReadHeaderTimeout
	}
	if src.RPC.MaxBodyBytes != 0 {
		dst.RPC.MaxBodyBytes = src.RPC.MaxBodyBytes
	}

	if src.Metrics.Addr != nil {
		dst.Metrics.Addr = *src.Metrics.Addr
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	return nil
}

func ApplyEnvOverrides(cfg *Config) error {
	for _, k := range []struct {
		env string
		dst *models.Key
	}{
		{"WLEDGER_PROGRAM_ID", &cfg.Ledger.ProgramID},
		{"WLEDGER_UPGRADE_AUTHORITY", &cfg.Ledger.UpgradeAuthority},
	} {
		raw := envString(k.env)
		if raw == "" {
			continue
		}
		key, err := models.ParseKey(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", k.env, err)
		}
		*k.dst = key
	}
	if raw := envString("WLEDGER_ENCLAVE_SHARE_PERCENT"); raw != "" {
		pct, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return fmt.Errorf("WLEDGER_ENCLAVE_SHARE_PERCENT: %w", err)
		}
		cfg.Ledger.Policy.EnclaveSharePercent = uint8(pct)
	}
	cfg.Ledger.Policy.DevFaucet = envBoolWithFallback("WLEDGER_DEV_FAUCET", cfg.Ledger.Policy.DevFaucet)

	overrideString("WLEDGER_STORAGE_BACKEND", &cfg.Storage.Backend)
	overrideString("WLEDGER_STORAGE_PATH", &cfg.Storage.Path)
	overrideString("WLEDGER_STORAGE_SECRET", &cfg.Storage.Secret)
	overrideString("WLEDGER_RPC_ADDR", &cfg.RPC.Addr)
	overrideString("WLEDGER_RPC_TOKEN", &cfg.RPC.Token)
	cfg.RPC.RequireSignatures = envBoolWithFallback("WLEDGER_RPC_REQUIRE_SIGNATURES", cfg.RPC.RequireSignatures)
	cfg.RPC.RateLimit.Enabled = envBoolWithFallback("WLEDGER_RPC_RATE_LIMIT", cfg.RPC.RateLimit.Enabled)
	overrideString("WLEDGER_METRICS_ADDR", &cfg.Metrics.Addr)
	overrideString("WLEDGER_LOG_LEVEL", &cfg.Log.Level)
	overrideString("WLEDGER_LOG_FORMAT", &cfg.Log.Format)
	return nil
}

func (c Config) Validate() error {
	if c.Ledger.ProgramID.IsZero() {
		return errors.New("ledger.programId is required")
	}
	if err := c.Ledger.Policy.Validate(); err != nil {
		return fmt.Errorf("ledger policy: %w", err)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB, BackendSnapshot:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
		if c.Storage.Backend == BackendSnapshot && c.Storage.Secret == "" {
			return errors.New("storage.secret is required for the snapshot backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.RPC.Addr) == "" {
		return errors.New("rpc.addr is required")
	}
	if c.RPC.RateLimit.Enabled && (c.RPC.RateLimit.RPS <= 0 || c.RPC.RateLimit.Burst <= 0) {
		return errors.New("rpc.rateLimit needs positive rps and burst")
	}
	if c.RPC.MaxBodyBytes <= 0 {
		return errors.New("rpc.maxBodyBytes must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func overrideString(key string, dst *string) {
	if v := envString(key); v != "" {
		*dst = v
	}
}

func envBoolWithFallback(key string, fallback bool) bool {
	switch strings.ToLower(envString(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
