package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "merch/pkg/platform/strings"
	"merch/pkg/validation"
)

// DevIssuerKey is the well-known development issuer key. Its address is
// 0x2e988A386a799F506693793c6A5AF6B54dfAaBfB. Never use it outside development.
const DevIssuerKey = "0x1234567890123456789012345678901234567890123456789012345678901234"

// Registry backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Chain modes.
const (
	ChainSimulated = "simulated"
	ChainEthereum  = "ethereum"
)

// Server captures HTTP listener configuration.
type Server struct {
	Addr           string
	MetricsAddr    string
	RequestTimeout time.Duration
	TrustedProxies []string
	AdminTokenHash string
	AdminToken     string
}

// Registry selects and configures the claim code store.
type Registry struct {
	Backend        string
	DatabaseURL    string
	RedisURL       string
	Codes          []string
	CodesFile      string
	TokenURIBase   string
	ReservationTTL time.Duration
}

// Chain configures the submission collaborator.
type Chain struct {
	Mode              string
	RPCURL            string
	ChainID           int64
	BasicMerchAddr    string
	PremiumMerchAddr  string
	RelayerPrivateKey string
	Treasury          string
	// Organizers may receive the companion organizer share. Required when
	// the relayer pays upgrade fees on a real chain.
	Organizers        []string
	SubmitTimeout     time.Duration
}

// Audit configures where audit events go. Empty brokers keep them in memory.
type Audit struct {
	KafkaBrokers string
	Topic        string
	BufferSize   int
}

// Config is the full process configuration.
type Config struct {
	Environment      string
	LogLevel         string
	IssuerPrivateKey string
	Server           Server
	Registry         Registry
	Chain            Chain
	Audit            Audit
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		IssuerPrivateKey: os.Getenv("ISSUER_PRIVATE_KEY"),
		Server: Server{
			Addr:           getEnv("MERCH_ADDR", ":8080"),
			MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
			TrustedProxies: platformstrings.SplitList(os.Getenv("TRUSTED_PROXIES")),
			AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
			AdminToken:     os.Getenv("ADMIN_TOKEN"),
		},
		Registry: Registry{
			Backend:      strings.ToLower(getEnv("REGISTRY_BACKEND", BackendMemory)),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			RedisURL:     os.Getenv("REDIS_URL"),
			Codes:        platformstrings.DedupeUpper(platformstrings.SplitList(os.Getenv("CLAIM_CODES"))),
			CodesFile:    os.Getenv("CLAIM_CODES_FILE"),
			TokenURIBase: getEnv("TOKEN_URI_BASE", "ipfs://QmMockHash"),
		},
		Chain: Chain{
			Mode:              strings.ToLower(getEnv("CHAIN_MODE", ChainSimulated)),
			RPCURL:            os.Getenv("RPC_URL"),
			BasicMerchAddr:    os.Getenv("BASIC_MERCH_ADDRESS"),
			PremiumMerchAddr:  os.Getenv("PREMIUM_MERCH_ADDRESS"),
			RelayerPrivateKey: os.Getenv("RELAYER_PRIVATE_KEY"),
			Treasury:          os.Getenv("TREASURY_ADDRESS"),
			Organizers:        platformstrings.SplitList(os.Getenv("COMPANION_ORGANIZERS")),
		},
		Audit: Audit{
			KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
			Topic:        getEnv("AUDIT_TOPIC", "merch.audit"),
		},
	}

	var err error
	if cfg.Server.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 45*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Registry.ReservationTTL, err = getDuration("RESERVATION_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Chain.SubmitTimeout, err = getDuration("SUBMIT_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Chain.ChainID, err = getInt64("CHAIN_ID", 84532); err != nil {
		return Config{}, err
	}
	bufferSize, err := getInt64("AUDIT_BUFFER_SIZE", 1024)
	if err != nil {
		return Config{}, err
	}
	cfg.Audit.BufferSize = int(bufferSize)

	if cfg.IssuerPrivateKey == "" && cfg.IsDevelopment() {
		cfg.IssuerPrivateKey = DevIssuerKey
	}

	return cfg, cfg.Validate()
}

// IsDevelopment reports whether development defaults are allowed.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if c.IssuerPrivateKey == "" {
		return fmt.Errorf("ISSUER_PRIVATE_KEY is required outside development")
	}
	if !c.IsDevelopment() && c.IssuerPrivateKey == DevIssuerKey {
		return fmt.Errorf("the development issuer key must not be used in %s", c.Environment)
	}
	switch c.Registry.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Registry.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres registry")
		}
	case BackendRedis:
		if c.Registry.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis registry")
		}
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND %q", c.Registry.Backend)
	}
	switch c.Chain.Mode {
	case ChainSimulated:
	case ChainEthereum:
		if c.Chain.RPCURL == "" || c.Chain.BasicMerchAddr == "" || c.Chain.PremiumMerchAddr == "" || c.Chain.RelayerPrivateKey == "" {
			return fmt.Errorf("RPC_URL, BASIC_MERCH_ADDRESS, PREMIUM_MERCH_ADDRESS and RELAYER_PRIVATE_KEY are required for CHAIN_MODE=ethereum")
		}
		if len(c.Chain.Organizers) == 0 {
			return fmt.Errorf("COMPANION_ORGANIZERS is required for CHAIN_MODE=ethereum")
		}
	default:
		return fmt.Errorf("unknown CHAIN_MODE %q", c.Chain.Mode)
	}
	for _, org := range c.Chain.Organizers {
		if !validation.IsAddress(org) {
			return fmt.Errorf("COMPANION_ORGANIZERS: %q is not an address", org)
		}
	}
	if c.Chain.SubmitTimeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
