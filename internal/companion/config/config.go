// Package config defines the immutable configuration value types consumed by
// companion core components. Grounded on the teacher's internal/hivemind/options
// + internal/pkg/options pattern (mapstructure-tagged option structs loaded via
// viper) but flattened into the handful of vectors the core actually needs —
// spec §9's design note explicitly calls for replacing "module-global mutable
// manager singletons" and "mutated process-global environment variables" with
// values like these, constructed once at process start and passed down.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ZoneConfig fixes the civil zone the Clock (component A) operates in.
// Default is the spec's "+08:00" offset.
type ZoneConfig struct {
	Name       string `mapstructure:"name"`
	OffsetSecs int    `mapstructure:"offset-seconds"`
}

// Location builds a fixed-offset time.Location from this config.
func (z ZoneConfig) Location() *time.Location {
	name := z.Name
	if name == "" {
		name = "civil"
	}
	return time.FixedZone(name, z.OffsetSecs)
}

// ClockConfig controls the Clock's hot-cache TTL (spec §4.A, default 30m).
type ClockConfig struct {
	CacheTTL time.Duration `mapstructure:"cache-ttl"`
	Zone     ZoneConfig    `mapstructure:"zone"`
}

// MoodConfig controls the Mood Store's hot-cache TTL (spec §4.D, default 24h).
type MoodConfig struct {
	CacheTTL time.Duration `mapstructure:"cache-ttl"`
}

// DialogueConfig controls the Dialogue Log's hot-tier TTL policy (spec §4.H).
type DialogueConfig struct {
	HotTTL       time.Duration `mapstructure:"hot-ttl"`        // default 24h
	HotExtendTTL time.Duration `mapstructure:"hot-extend-ttl"` // default 2h, after flush
	RecentLimit  int           `mapstructure:"recent-limit"`   // default 10, Query's limit when the caller passes none
}

// PathsConfig resolves the external file-blob roots from spec §6.
type PathsConfig struct {
	PlotRoot    string `mapstructure:"plot-root"`
	SummaryRoot string `mapstructure:"summary-root"`
	PersonaRoot string `mapstructure:"persona-root"`
}

// ModelProviderConfig is the configuration vector for one LM provider binding
// (spec §6 "Model provider... Providers and model identifiers are selected by a
// configuration vector"). Never mutated after construction — a provider switch
// is a new value, not a side effect on the process (spec §9 design note).
type ModelProviderConfig struct {
	Provider string        `mapstructure:"provider"` // "gemini" | "openai" | "anthropic" | ...
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api-key"`
	BaseURL  string        `mapstructure:"base-url"`

	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ModelConfig groups the model bindings the core issues calls against: the
// primary turn-reply model plus the narrower analysis calls (E/F/G/L all share
// one binding by default but may be pointed at a cheaper model).
type ModelConfig struct {
	Reply    ModelProviderConfig `mapstructure:"reply"`
	Analysis ModelProviderConfig `mapstructure:"analysis"`

	// PlotMoodTimeout bounds F's mood-update prompt (spec §4.J step 2: 10s).
	PlotMoodTimeout time.Duration `mapstructure:"plot-mood-timeout"`
	// AnalysisTimeout is loaded (30s default) but not read: E's intent/emotion
	// calls use the analyzer package's own 30s constant.
	AnalysisTimeout time.Duration `mapstructure:"analysis-timeout"`
	// ThoughtTimeout is loaded (30s default) but not read: F's inner-monologue
	// call uses the thought package's own 30s constant.
	ThoughtTimeout time.Duration `mapstructure:"thought-timeout"`
}

// StoreConfig groups hot/durable store connection parameters.
type StoreConfig struct {
	BoltPath  string `mapstructure:"bolt-path"`
	RedisAddr string `mapstructure:"redis-addr"`
	RedisDB   int    `mapstructure:"redis-db"`
}

// RoleConfig seeds one persona at process start (spec §1 places "role file
// authoring" out of core scope — this only names which roles to preload and
// their immutable identity fields, not how the persona text blob is authored).
type RoleConfig struct {
	RoleID            string  `mapstructure:"role-id"`
	RoleName          string  `mapstructure:"role-name"`
	Age               int     `mapstructure:"age"`
	InitialValence    float64 `mapstructure:"initial-valence"`
	InitialArousal    float64 `mapstructure:"initial-arousal"`
	InitialIntensity  int     `mapstructure:"initial-intensity"`
	InitialTags       string  `mapstructure:"initial-tags"`
	InitialDescription string `mapstructure:"initial-description"`
}

// MCPServerConfig names one stdio-transport MCP server whose discovered tools
// the orchestrator may expose during tool-augmented invocations (spec §6
// "Tool provider").
type MCPServerConfig struct {
	Name    string   `mapstructure:"name"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Env     []string `mapstructure:"env"`
}

// ToolsConfig lists the MCP servers to connect at process start. Empty means
// no external tools: the orchestrator still runs, tool-free.
type ToolsConfig struct {
	MCPServers []MCPServerConfig `mapstructure:"mcp-servers"`
}

// ServerConfig controls the HTTP surface's bind address (spec §6: documented
// but out of core scope).
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the full, immutable process configuration assembled at startup.
type Config struct {
	Clock    ClockConfig    `mapstructure:"clock"`
	Mood     MoodConfig     `mapstructure:"mood"`
	Dialogue DialogueConfig `mapstructure:"dialogue"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Model    ModelConfig    `mapstructure:"model"`
	Store    StoreConfig    `mapstructure:"store"`
	Roles    []RoleConfig   `mapstructure:"roles"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Server   ServerConfig   `mapstructure:"server"`
}

// Default returns the spec's documented defaults (TTLs, timeouts, weights are
// hard-coded policy elsewhere — this only covers the configurable knobs).
func Default() *Config {
	return &Config{
		Clock: ClockConfig{
			CacheTTL: 30 * time.Minute,
			Zone:     ZoneConfig{Name: "civil+08:00", OffsetSecs: 8 * 3600},
		},
		Mood: MoodConfig{CacheTTL: 24 * time.Hour},
		Dialogue: DialogueConfig{
			HotTTL:       24 * time.Hour,
			HotExtendTTL: 2 * time.Hour,
			RecentLimit:  10,
		},
		Paths: PathsConfig{
			PlotRoot:    "./data/plots",
			SummaryRoot: "./data/summaries",
			PersonaRoot: "./data/personas",
		},
		Model: ModelConfig{
			Reply:           ModelProviderConfig{Provider: "gemini", Timeout: 30 * time.Second},
			Analysis:        ModelProviderConfig{Provider: "gemini", Timeout: 30 * time.Second},
			PlotMoodTimeout: 10 * time.Second,
			AnalysisTimeout: 30 * time.Second,
			ThoughtTimeout:  30 * time.Second,
		},
		Store: StoreConfig{
			BoltPath:  "./data/companion.bolt",
			RedisAddr: "127.0.0.1:6379",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads configuration from the given viper instance (already told where to
// look for files/env by the out-of-core bootstrap) on top of Default().
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if v == nil {
		return cfg, nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
