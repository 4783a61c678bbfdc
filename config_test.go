package favour

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig does not validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "missing data dir",
			mutate:    func(c *Config) { c.DataDir = "" },
			wantField: "DataDir",
		},
		{
			name:      "inverted bounds",
			mutate:    func(c *Config) { c.MinFavour = 100; c.MaxFavour = -100 },
			wantField: "MinFavour",
		},
		{
			name:      "threshold outside bounds",
			mutate:    func(c *Config) { c.ColdViolenceThreshold = -500 },
			wantField: "ColdViolenceThreshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	var zero Config
	got := zero.WithDefaults()

	if got.DataDir == "" {
		t.Error("DataDir not filled")
	}
	if got.MinFavour != DefaultMinFavour || got.MaxFavour != DefaultMaxFavour {
		t.Errorf("bounds = [%d, %d], want [%d, %d]",
			got.MinFavour, got.MaxFavour, DefaultMinFavour, DefaultMaxFavour)
	}
	if got.IncreaseMax != DefaultIncreaseMax || got.DecreaseMax != DefaultDecreaseMax {
		t.Errorf("magnitude ranges = %d/%d, want %d/%d",
			got.IncreaseMax, got.DecreaseMax, DefaultIncreaseMax, DefaultDecreaseMax)
	}
	if got.ColdViolenceDuration != DefaultColdViolenceDuration {
		t.Errorf("ColdViolenceDuration = %v, want %v", got.ColdViolenceDuration, DefaultColdViolenceDuration)
	}
	if got.PendingCapacity != DefaultPendingCapacity || got.PendingTTL != DefaultPendingTTL {
		t.Errorf("pending bounds = %d/%v", got.PendingCapacity, got.PendingTTL)
	}
	if got.ListPageSize != DefaultListPageSize {
		t.Errorf("ListPageSize = %d, want %d", got.ListPageSize, DefaultListPageSize)
	}

	// Explicit settings survive.
	set := Config{MinFavour: -500, MaxFavour: 500, ListPageSize: 7}.WithDefaults()
	if set.MinFavour != -500 || set.MaxFavour != 500 {
		t.Errorf("bounds = [%d, %d], want [-500, 500]", set.MinFavour, set.MaxFavour)
	}
	if set.ListPageSize != 7 {
		t.Errorf("ListPageSize = %d, want 7", set.ListPageSize)
	}
}

func TestConfigNormalizeRepairs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncreaseMin = 5
	cfg.IncreaseMax = 1
	cfg.DecreaseMin = -2
	cfg.DefaultFavour = 9999
	cfg.ColdViolenceDuration = -time.Minute

	out := cfg.Normalize(nil)
	def := DefaultConfig()

	if out.IncreaseMin != def.IncreaseMin || out.IncreaseMax != def.IncreaseMax {
		t.Errorf("increase range = [%d,%d], want defaults", out.IncreaseMin, out.IncreaseMax)
	}
	if out.DecreaseMin != def.DecreaseMin {
		t.Errorf("DecreaseMin = %d, want default", out.DecreaseMin)
	}
	if out.DefaultFavour != def.DefaultFavour {
		t.Errorf("DefaultFavour = %d, want default", out.DefaultFavour)
	}
	if out.ColdViolenceDuration != def.ColdViolenceDuration {
		t.Errorf("ColdViolenceDuration = %v, want default", out.ColdViolenceDuration)
	}
}

func TestConfigNormalizeKeepsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IncreaseMin = 2
	cfg.IncreaseMax = 6
	cfg.ColdViolenceThreshold = -30

	out := cfg.Normalize(nil)
	if out.IncreaseMin != 2 || out.IncreaseMax != 6 {
		t.Errorf("valid increase range repaired to [%d,%d]", out.IncreaseMin, out.IncreaseMax)
	}
	if out.ColdViolenceThreshold != -30 {
		t.Errorf("valid threshold repaired to %d", out.ColdViolenceThreshold)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favour.yaml")
	data := `
data_dir: /tmp/favour-test
global_mode: true
default_favour: 5
envoys: [envoy1, envoy2]
increase_min: 1
increase_max: 4
replies:
  on_trigger: "hmph."
cold_violence_duration_minutes: 30
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.DataDir != "/tmp/favour-test" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if !cfg.GlobalMode {
		t.Error("GlobalMode not set")
	}
	if cfg.DefaultFavour != 5 {
		t.Errorf("DefaultFavour = %d, want 5", cfg.DefaultFavour)
	}
	if len(cfg.Envoys) != 2 || cfg.Envoys[0] != "envoy1" {
		t.Errorf("Envoys = %v", cfg.Envoys)
	}
	if cfg.IncreaseMax != 4 {
		t.Errorf("IncreaseMax = %d, want 4", cfg.IncreaseMax)
	}
	if cfg.Replies.OnTrigger != "hmph." {
		t.Errorf("OnTrigger = %q", cfg.Replies.OnTrigger)
	}
	if cfg.ColdViolenceDuration != 30*time.Minute {
		t.Errorf("ColdViolenceDuration = %v, want 30m", cfg.ColdViolenceDuration)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxFavour != DefaultMaxFavour {
		t.Errorf("MaxFavour = %d, want default", cfg.MaxFavour)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfigFile succeeded on a missing file")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FAVOUR_DATA_DIR", "/tmp/env-favour")
	t.Setenv("FAVOUR_GLOBAL_MODE", "1")
	t.Setenv("FAVOUR_DEFAULT", "7")
	t.Setenv("FAVOUR_ADMIN_DEFAULT", "70")

	cfg := ConfigFromEnv()
	if cfg.DataDir != "/tmp/env-favour" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if !cfg.GlobalMode {
		t.Error("GlobalMode not enabled")
	}
	if cfg.DefaultFavour != 7 || cfg.AdminDefaultFavour != 70 {
		t.Errorf("defaults = %d/%d, want 7/70", cfg.DefaultFavour, cfg.AdminDefaultFavour)
	}
}
