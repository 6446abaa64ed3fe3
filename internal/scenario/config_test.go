package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestGetConfigKnownScenarios(t *testing.T) {
	for _, name := range []string{"calm", "thin", "spike"} {
		cfg := GetConfig(name, 42)
		if cfg == nil {
			t.Fatalf("%s: expected a config, got nil", name)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: expected a valid default config, got %v", name, err)
		}
	}
}

func TestGetConfigUnknownScenario(t *testing.T) {
	if cfg := GetConfig("nonexistent", 1); cfg != nil {
		t.Fatalf("expected nil for an unknown scenario name, got %+v", cfg)
	}
}

func TestValidateRejectsUnknownBrokerExchange(t *testing.T) {
	cfg := DefaultCalm(1)
	cfg.Brokers[0].Exchanges = append(cfg.Brokers[0].Exchanges, "ex-missing")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject a broker referencing an unknown exchange")
	}
}

func TestValidateRejectsTraderOnUnknownPair(t *testing.T) {
	cfg := DefaultCalm(1)
	cfg.Traders[0].TradedPair = "XYZ"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject a trader quoting an unlisted pair")
	}
}

func TestTradedPairConfigDecimal(t *testing.T) {
	cfg := DefaultCalm(1)
	step := cfg.Exchanges[0].TradedPairs[0].Decimal()
	if step.String() != "0.01" {
		t.Fatalf("expected price step 0.01, got %s", step.String())
	}
}

func TestLoadRoundTrips(t *testing.T) {
	cfg := DefaultThin(7)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != cfg.Name || loaded.Seed != cfg.Seed {
		t.Fatalf("expected round-tripped config to match, got %+v", loaded)
	}
	if len(loaded.Traders) != len(cfg.Traders) {
		t.Fatalf("expected %d traders, got %d", len(cfg.Traders), len(loaded.Traders))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent manifest")
	}
}
