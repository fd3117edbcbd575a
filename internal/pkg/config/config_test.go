package config

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/geodrop/internal/pkg/geospatial"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("geodrop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry.ServiceName != "geodrop-test" {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
	if p := cfg.Claim.Policy(); p.Threshold != 0.1 || p.Unit != geospatial.Miles {
		t.Errorf("claim policy = %v, want 0.1mi", p)
	}
	if p := cfg.Hint.Policy(); p.Threshold != 2 || p.Unit != geospatial.Kilometers {
		t.Errorf("hint policy = %v, want 2km", p)
	}
	if cfg.Claim.MintTimeout != 30*time.Second {
		t.Errorf("mint timeout = %s", cfg.Claim.MintTimeout)
	}
	if cfg.Engine.Chain != "mumbai" {
		t.Errorf("engine chain = %q", cfg.Engine.Chain)
	}
	if cfg.Minter.Backend != MinterEngine {
		t.Errorf("minter backend = %q", cfg.Minter.Backend)
	}
}

func TestLoad_EngineEnv(t *testing.T) {
	t.Setenv("TW_ENGINE_URL", "https://engine.example")
	t.Setenv("TW_ACCESS_TOKEN", "secret")
	t.Setenv("GEODROP_ENGINE_BACKEND_WALLET", "0xabc")
	t.Setenv("GEODROP_CLAIM_RADIUS", "0.5")
	t.Setenv("GEODROP_CLAIM_MINT_TIMEOUT", "5s")

	cfg, err := Load("geodrop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.URL != "https://engine.example" || cfg.Engine.AccessToken != "secret" || cfg.Engine.BackendWallet != "0xabc" {
		t.Errorf("engine config not bound from env: %+v", cfg.Engine)
	}
	if cfg.Claim.Radius != 0.5 {
		t.Errorf("claim radius = %v, want 0.5", cfg.Claim.Radius)
	}
	if cfg.Claim.MintTimeout != 5*time.Second {
		t.Errorf("mint timeout = %s, want 5s", cfg.Claim.MintTimeout)
	}
}

func TestLoad_MissingEngineIsNotFatal(t *testing.T) {
	if _, err := Load("geodrop-test"); err != nil {
		t.Fatalf("missing engine credentials must not prevent startup: %v", err)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0, ReadTimeout: 10, WriteTimeout: 10},
		Claim:  RadiusConfig{Radius: -1, Unit: "mi"},
		Hint:   RadiusConfig{Radius: 2, Unit: "furlong"},
		Minter: MinterConfig{Backend: "carrier-pigeon"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "database.host", "nats.url", "claim:", "hint:", "minter.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error:\n%v", want, err)
		}
	}
}

func TestValidate_TemporalRequiresHost(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database: DatabaseConfig{Host: "db", Port: 5432, User: "u", DBName: "d"},
		NATS:     NATSConfig{URL: "nats://x"},
		Valkey:   ValkeyConfig{Addr: "v:6379"},
		Claim:    RadiusConfig{Radius: 0.1, Unit: "mi"},
		Hint:     RadiusConfig{Radius: 2, Unit: "km"},
		Minter:   MinterConfig{Backend: MinterTemporal},
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "temporal.host_port") {
		t.Fatalf("expected temporal.host_port error, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "geodrop", SSLMode: "disable"}
	if got, want := d.DSN(), "postgres://u:p@db:5432/geodrop?sslmode=disable"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
