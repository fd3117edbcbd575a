package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/geodrop/internal/core/domain"
	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
)

// Minter backends.
const (
	MinterEngine   = "engine"
	MinterTemporal = "temporal"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Claim     RadiusConfig    `mapstructure:"claim"`
	Hint      RadiusConfig    `mapstructure:"hint"`
	Minter    MinterConfig    `mapstructure:"minter"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// EngineConfig points at the minting engine. The credentials are not
// validated at boot; a claim fails closed while any of them is empty.
type EngineConfig struct {
	URL             string        `mapstructure:"url"`
	AccessToken     string        `mapstructure:"access_token"`
	BackendWallet   string        `mapstructure:"backend_wallet"`
	Chain           string        `mapstructure:"chain"`
	ContractAddress string        `mapstructure:"contract_address"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// RadiusConfig is a distance threshold. Claim additionally carries the
// mint timeout.
type RadiusConfig struct {
	Radius      float64       `mapstructure:"radius"`
	Unit        string        `mapstructure:"unit"`
	MintTimeout time.Duration `mapstructure:"mint_timeout"`
}

// Policy converts the config into a domain radius policy.
func (r RadiusConfig) Policy() domain.RadiusPolicy {
	return domain.RadiusPolicy{Threshold: r.Radius, Unit: geospatial.Unit(r.Unit)}
}

type MinterConfig struct {
	Backend string `mapstructure:"backend"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geodrop")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geodrop")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("engine.url", "")
	v.SetDefault("engine.access_token", "")
	v.SetDefault("engine.backend_wallet", "")
	v.SetDefault("engine.chain", "mumbai")
	v.SetDefault("engine.contract_address", "")
	v.SetDefault("engine.request_timeout", 30*time.Second)
	v.SetDefault("claim.radius", 0.1)
	v.SetDefault("claim.unit", string(geospatial.Miles))
	v.SetDefault("claim.mint_timeout", 30*time.Second)
	v.SetDefault("hint.radius", 2.0)
	v.SetDefault("hint.unit", string(geospatial.Kilometers))
	v.SetDefault("minter.backend", MinterEngine)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "geodrop-mint")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEODROP_ENGINE_URL → engine.url
	v.SetEnvPrefix("GEODROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names used by existing deployments.
	_ = v.BindEnv("engine.url", "GEODROP_ENGINE_URL", "TW_ENGINE_URL")
	_ = v.BindEnv("engine.access_token", "GEODROP_ENGINE_ACCESS_TOKEN", "TW_ACCESS_TOKEN")
	_ = v.BindEnv("engine.backend_wallet", "GEODROP_ENGINE_BACKEND_WALLET", "TW_BACKEND_WALLET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if err := c.Claim.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("claim: %v", err))
	}
	if err := c.Hint.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("hint: %v", err))
	}
	if c.Claim.MintTimeout < 0 {
		errs = append(errs, "claim.mint_timeout must not be negative")
	}
	switch c.Minter.Backend {
	case MinterEngine:
	case MinterTemporal:
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required for the temporal minter")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required for the temporal minter")
		}
	default:
		errs = append(errs, fmt.Sprintf("minter.backend must be %q or %q, got %q", MinterEngine, MinterTemporal, c.Minter.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
