package favour

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nuomicici/astrbot-plugin-Favour-Ultra/internal/store"
)

// ReplyTemplates are the canned replies used while cold violence is active.
// The literal "{remaining}" is substituted with the live remaining duration
// formatted as minutes and seconds; "{relationship}" with a relationship name.
type ReplyTemplates struct {
	// OnTrigger is appended to the reply that drove affinity below the
	// cold-violence threshold.
	OnTrigger string `yaml:"on_trigger"`

	// OnMessage replaces the model call for requests arriving during an
	// active cooldown.
	OnMessage string `yaml:"on_message"`

	// OnQuery replaces affinity-query output during an active cooldown.
	OnQuery string `yaml:"on_query"`

	// OnRevoke is appended when negative affinity revokes a relationship.
	OnRevoke string `yaml:"on_revoke"`
}

// Config configures the favour engine.
type Config struct {
	// DataDir holds the SQLite database and backup files.
	// Defaults to ./data/favour (or FAVOUR_DATA_DIR).
	DataDir string `yaml:"data_dir"`

	// GlobalMode selects the single-global-scope mode: all conversations
	// share one affinity bucket. When false, affinity is tracked per
	// conversation scope. The two data sets are independent; toggling
	// after deployment changes which records are consulted.
	GlobalMode bool `yaml:"global_mode"`

	// DefaultFavour is the initial value for plain users.
	DefaultFavour int `yaml:"default_favour"`

	// AdminDefaultFavour is the initial value for admins and envoys.
	AdminDefaultFavour int `yaml:"admin_default_favour"`

	// Envoys are user IDs granted the admin initial value without any
	// platform role.
	Envoys []string `yaml:"envoys"`

	// Superusers are bot-level operators, above any group role.
	Superusers []string `yaml:"superusers"`

	// ElevatedLevelThreshold is the platform member level at or above
	// which a plain member counts as elevated.
	ElevatedLevelThreshold int `yaml:"elevated_level_threshold"`

	// MinFavour and MaxFavour bound every stored value.
	MinFavour int `yaml:"min_favour"`
	MaxFavour int `yaml:"max_favour"`

	// IncreaseMin/Max and DecreaseMin/Max clamp single-tag magnitudes.
	IncreaseMin int `yaml:"increase_min"`
	IncreaseMax int `yaml:"increase_max"`
	DecreaseMin int `yaml:"decrease_min"`
	DecreaseMax int `yaml:"decrease_max"`

	// RulePrompt is an optional custom rule block injected verbatim into
	// the rendered prompt fragment.
	RulePrompt string `yaml:"rule_prompt"`

	// ClearBackup writes a timestamped JSON backup before any clear/wipe.
	ClearBackup bool `yaml:"clear_backup"`

	// ColdViolenceThreshold arms the cooldown when a decrease lands the
	// value at or below it.
	ColdViolenceThreshold int `yaml:"cold_violence_threshold"`

	// ColdViolenceDuration is how long the cooldown lasts. In YAML it is
	// given as whole minutes via cold_violence_duration_minutes.
	ColdViolenceDuration time.Duration `yaml:"-"`
	ColdViolenceMinutes  int           `yaml:"cold_violence_duration_minutes"`

	// ColdViolencePerScope keys the cooldown by (user, scope) instead of
	// user alone.
	ColdViolencePerScope bool `yaml:"cold_violence_per_scope"`

	// Replies are the cooldown and revocation reply templates.
	Replies ReplyTemplates `yaml:"replies"`

	// PendingCapacity and PendingTTL bound the parked-update map. In YAML
	// the TTL is given as whole minutes via pending_ttl_minutes.
	PendingCapacity   int           `yaml:"pending_capacity"`
	PendingTTL        time.Duration `yaml:"-"`
	PendingTTLMinutes int           `yaml:"pending_ttl_minutes"`

	// ListPageSize truncates cross-scope reports.
	ListPageSize int `yaml:"list_page_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:                store.DefaultDataDir(),
		DefaultFavour:          DefaultFavourValue,
		AdminDefaultFavour:     DefaultAdminFavourValue,
		ElevatedLevelThreshold: 50,
		MinFavour:              DefaultMinFavour,
		MaxFavour:              DefaultMaxFavour,
		IncreaseMin:            DefaultIncreaseMin,
		IncreaseMax:            DefaultIncreaseMax,
		DecreaseMin:            DefaultDecreaseMin,
		DecreaseMax:            DefaultDecreaseMax,
		ClearBackup:            true,
		ColdViolenceThreshold:  DefaultColdViolenceThreshold,
		ColdViolenceDuration:   DefaultColdViolenceDuration,
		Replies: ReplyTemplates{
			OnTrigger: "...... (I don't feel like talking to you anymore.)",
			OnMessage: "[auto-reply] I don't want to talk to you. Come back in {remaining}.",
			OnQuery:   "Too upset to be looked at right now. Ask again in {remaining}.",
			OnRevoke:  "And one more thing: I don't want to be your {relationship} anymore.",
		},
		PendingCapacity: DefaultPendingCapacity,
		PendingTTL:      DefaultPendingTTL,
		ListPageSize:    DefaultListPageSize,
	}
}

// ConfigFromEnv reads configuration overrides from environment variables.
//
//	FAVOUR_DATA_DIR     → DataDir
//	FAVOUR_GLOBAL_MODE  → GlobalMode (any non-empty value enables)
//	FAVOUR_DEFAULT      → DefaultFavour
//	FAVOUR_ADMIN_DEFAULT → AdminDefaultFavour
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("FAVOUR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.GlobalMode = os.Getenv("FAVOUR_GLOBAL_MODE") != ""
	if v := os.Getenv("FAVOUR_DEFAULT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultFavour = n
		}
	}
	if v := os.Getenv("FAVOUR_ADMIN_DEFAULT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AdminDefaultFavour = n
		}
	}
	return cfg
}

// LoadConfigFile reads a YAML config file over the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ColdViolenceMinutes != 0 {
		cfg.ColdViolenceDuration = time.Duration(cfg.ColdViolenceMinutes) * time.Minute
	}
	if cfg.PendingTTLMinutes != 0 {
		cfg.PendingTTL = time.Duration(cfg.PendingTTLMinutes) * time.Minute
	}
	return cfg, nil
}

// Bounds returns the configured value bounds.
func (c Config) Bounds() Bounds {
	return Bounds{Min: c.MinFavour, Max: c.MaxFavour}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.MinFavour == 0 && c.MaxFavour == 0 {
		c.MinFavour = def.MinFavour
		c.MaxFavour = def.MaxFavour
	}
	if c.IncreaseMax == 0 {
		c.IncreaseMin = def.IncreaseMin
		c.IncreaseMax = def.IncreaseMax
	}
	if c.DecreaseMax == 0 {
		c.DecreaseMin = def.DecreaseMin
		c.DecreaseMax = def.DecreaseMax
	}
	if c.ColdViolenceDuration == 0 {
		c.ColdViolenceDuration = def.ColdViolenceDuration
	}
	if c.ColdViolenceThreshold == 0 {
		c.ColdViolenceThreshold = def.ColdViolenceThreshold
	}
	if c.ElevatedLevelThreshold == 0 {
		c.ElevatedLevelThreshold = def.ElevatedLevelThreshold
	}
	if c.Replies.OnTrigger == "" {
		c.Replies.OnTrigger = def.Replies.OnTrigger
	}
	if c.Replies.OnMessage == "" {
		c.Replies.OnMessage = def.Replies.OnMessage
	}
	if c.Replies.OnQuery == "" {
		c.Replies.OnQuery = def.Replies.OnQuery
	}
	if c.Replies.OnRevoke == "" {
		c.Replies.OnRevoke = def.Replies.OnRevoke
	}
	if c.PendingCapacity == 0 {
		c.PendingCapacity = def.PendingCapacity
	}
	if c.PendingTTL == 0 {
		c.PendingTTL = def.PendingTTL
	}
	if c.ListPageSize == 0 {
		c.ListPageSize = def.ListPageSize
	}
	return c
}

// Normalize repairs out-of-range numeric settings with their defaults,
// logging each repair. Bad tuning must not prevent startup; structural
// problems are left for Validate.
func (c Config) Normalize(log *zap.Logger) Config {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()

	if c.MinFavour >= c.MaxFavour {
		log.Error("invalid favour bounds, using defaults",
			zap.Int("min", c.MinFavour), zap.Int("max", c.MaxFavour))
		c.MinFavour = def.MinFavour
		c.MaxFavour = def.MaxFavour
	}
	if !c.Bounds().Contains(c.DefaultFavour) {
		log.Error("default_favour out of bounds, using default", zap.Int("value", c.DefaultFavour))
		c.DefaultFavour = def.DefaultFavour
	}
	if !c.Bounds().Contains(c.AdminDefaultFavour) {
		log.Error("admin_default_favour out of bounds, using default", zap.Int("value", c.AdminDefaultFavour))
		c.AdminDefaultFavour = def.AdminDefaultFavour
	}
	if c.IncreaseMin > c.IncreaseMax || c.IncreaseMin < 0 {
		log.Error("invalid increase range, using defaults",
			zap.Int("min", c.IncreaseMin), zap.Int("max", c.IncreaseMax))
		c.IncreaseMin = def.IncreaseMin
		c.IncreaseMax = def.IncreaseMax
	}
	if c.DecreaseMin > c.DecreaseMax || c.DecreaseMin < 0 {
		log.Error("invalid decrease range, using defaults",
			zap.Int("min", c.DecreaseMin), zap.Int("max", c.DecreaseMax))
		c.DecreaseMin = def.DecreaseMin
		c.DecreaseMax = def.DecreaseMax
	}
	if c.ColdViolenceDuration < 0 {
		log.Error("negative cold_violence_duration, using default",
			zap.Duration("value", c.ColdViolenceDuration))
		c.ColdViolenceDuration = def.ColdViolenceDuration
	}
	if c.PendingCapacity < 0 || c.PendingTTL < 0 {
		c.PendingCapacity = def.PendingCapacity
		c.PendingTTL = def.PendingTTL
	}
	return c
}

// Validate checks the configuration for structural errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return &ValidationError{Field: "DataDir", Message: "required: directory for the affinity database"}
	}
	if c.MinFavour >= c.MaxFavour {
		return &ValidationError{Field: "MinFavour", Message: "must be below MaxFavour"}
	}
	if c.ColdViolenceThreshold < c.MinFavour || c.ColdViolenceThreshold > c.MaxFavour {
		return &ValidationError{Field: "ColdViolenceThreshold", Message: "must lie inside the favour bounds"}
	}
	return nil
}
