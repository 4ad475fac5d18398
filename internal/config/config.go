// Package config loads the simulation configuration from YAML. Every field
// has a default, so a missing file section keeps the built-in value.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Seed       int64            `yaml:"seed" json:"seed"`
	Log        LogConfig        `yaml:"log" json:"log"`
	World      WorldConfig      `yaml:"world" json:"world"`
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
	Combat     CombatConfig     `yaml:"combat" json:"combat"`
	Perception PerceptionConfig `yaml:"perception" json:"perception"`
	Training   TrainingConfig   `yaml:"training" json:"training"`
	Spawners   []SpawnerConfig  `yaml:"spawners" json:"spawners"`
	Journal    JournalConfig    `yaml:"journal" json:"journal"`
	API        APIConfig        `yaml:"api" json:"api"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format" jsonschema:"enum=text,enum=json"`
}

// WorldConfig controls terrain generation.
type WorldConfig struct {
	Width         int     `yaml:"width" json:"width"`
	Height        int     `yaml:"height" json:"height"`
	WaterLevel    float64 `yaml:"water_level" json:"water_level"`       // elevation below this is water
	MountainLevel float64 `yaml:"mountain_level" json:"mountain_level"` // elevation above this is mountain
	ForestLevel   float64 `yaml:"forest_level" json:"forest_level"`     // moisture above this is forest
	RuinLevel     float64 `yaml:"ruin_level" json:"ruin_level"`         // ruin noise above this is ruin
	Towns         int     `yaml:"towns" json:"towns"`
}

// SimulationConfig controls the scheduler and the tick engine.
type SimulationConfig struct {
	TickMillis       int     `yaml:"tick_ms" json:"tick_ms"`                   // real time between ticks at speed 1
	SecondsPerTick   float64 `yaml:"seconds_per_tick" json:"seconds_per_tick"` // simulated seconds per tick
	SpeedMultiplier  float64 `yaml:"speed_multiplier" json:"speed_multiplier"` // scales every action interval
	ReportEvery      int     `yaml:"report_every" json:"report_every"`         // ticks between summary log lines
	MaxEvents        int     `yaml:"max_events" json:"max_events"`             // retained event log entries
	PlannerCacheSize int     `yaml:"planner_cache_size" json:"planner_cache_size"`
}

// CombatConfig holds combat constants.
type CombatConfig struct {
	EscapeChance     float64 `yaml:"escape_chance" json:"escape_chance"`
	EscapeChanceLow  float64 `yaml:"escape_chance_low" json:"escape_chance_low"`   // facing more than twice our power
	EscapeChanceHigh float64 `yaml:"escape_chance_high" json:"escape_chance_high"` // facing less than half our power
	KillExpPerLevel  int     `yaml:"kill_exp_per_level" json:"kill_exp_per_level"`
}

// PerceptionConfig holds vision and power estimation constants.
type PerceptionConfig struct {
	Accuracy     float64 `yaml:"accuracy" json:"accuracy"` // base accuracy in percent
	VisionRadius int     `yaml:"vision_radius" json:"vision_radius"`
}

// TrainingConfig holds the Train action constants.
type TrainingConfig struct {
	Exp              int `yaml:"exp" json:"exp"`
	Proficiency      int `yaml:"proficiency" json:"proficiency"`
	FindItemAttempts int `yaml:"find_item_attempts" json:"find_item_attempts"`
	BuffDuration     int `yaml:"buff_duration" json:"buff_duration"`
}

// SpawnerConfig places a character generator on every tile of the faction's
// generator type.
type SpawnerConfig struct {
	Faction  string  `yaml:"faction" json:"faction" jsonschema:"enum=Human,enum=Demon,enum=Ruin,enum=Forest"`
	Interval float64 `yaml:"interval_s" json:"interval_s"` // simulated seconds between spawns
	Amount   int     `yaml:"amount" json:"amount"`         // total spawns per generator, 0 means unlimited
	Initial  int     `yaml:"initial" json:"initial"`       // spawned immediately at startup
	Sites    int     `yaml:"sites" json:"sites"`           // generators for mob factions, which spawn on common tiles
}

// JournalConfig configures the change journal.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Driver      string `yaml:"driver" json:"driver" jsonschema:"enum=sqlite,enum=postgres"`
	DSN         string `yaml:"dsn" json:"dsn"`
	QueueSize   int    `yaml:"queue_size" json:"queue_size"`
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
	FlushMillis int    `yaml:"flush_ms" json:"flush_ms"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Port            int    `yaml:"port" json:"port"`
	AdminKey        string `yaml:"admin_key" json:"admin_key"`
	SpawnRate       int    `yaml:"spawn_rate" json:"spawn_rate"`            // spawn requests per window per IP
	SpawnWindowSecs int    `yaml:"spawn_window_s" json:"spawn_window_s"`    // rate limit window
	FeedBufferSize  int    `yaml:"feed_buffer_size" json:"feed_buffer_size"` // per websocket client
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Seed: 42,
		Log:  LogConfig{Level: "info", Format: "text"},
		World: WorldConfig{
			Width:         48,
			Height:        32,
			WaterLevel:    0.28,
			MountainLevel: 0.78,
			ForestLevel:   0.64,
			RuinLevel:     0.82,
			Towns:         3,
		},
		Simulation: SimulationConfig{
			TickMillis:       100,
			SecondsPerTick:   0.1,
			SpeedMultiplier:  1,
			ReportEvery:      600,
			MaxEvents:        1000,
			PlannerCacheSize: 256,
		},
		Combat: CombatConfig{
			EscapeChance:     0.5,
			EscapeChanceLow:  0.2,
			EscapeChanceHigh: 0.8,
			KillExpPerLevel:  50,
		},
		Perception: PerceptionConfig{Accuracy: 90, VisionRadius: 2},
		Training:   TrainingConfig{Exp: 100, Proficiency: 10, FindItemAttempts: 5, BuffDuration: 3},
		Spawners: []SpawnerConfig{
			{Faction: "Human", Interval: 20, Amount: 10, Initial: 3},
			{Faction: "Demon", Interval: 30, Amount: 6, Initial: 2},
			{Faction: "Ruin", Interval: 60, Amount: 1, Initial: 1, Sites: 2},
			{Faction: "Forest", Interval: 60, Amount: 1, Initial: 1, Sites: 2},
		},
		Journal: JournalConfig{
			Enabled:     true,
			Driver:      "sqlite",
			DSN:         "data/tilesim.db",
			QueueSize:   4096,
			BatchSize:   256,
			FlushMillis: 500,
		},
		API: APIConfig{
			Enabled:         true,
			Port:            8080,
			SpawnRate:       5,
			SpawnWindowSecs: 60,
			FeedBufferSize:  256,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WORLDSIM_ADMIN_KEY"); v != "" {
		c.API.AdminKey = v
	}
	if v := os.Getenv("WORLDSIM_DB_DSN"); v != "" {
		c.Journal.DSN = v
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.World.Width < 2 || c.World.Height < 2 {
		errs = append(errs, fmt.Errorf("world size %dx%d too small", c.World.Width, c.World.Height))
	}
	if c.Simulation.SecondsPerTick <= 0 {
		errs = append(errs, errors.New("simulation.seconds_per_tick must be positive"))
	}
	if c.Simulation.SpeedMultiplier <= 0 {
		errs = append(errs, errors.New("simulation.speed_multiplier must be positive"))
	}
	if c.Simulation.TickMillis <= 0 {
		errs = append(errs, errors.New("simulation.tick_ms must be positive"))
	}
	if c.Perception.Accuracy < 0 || c.Perception.Accuracy > 100 {
		errs = append(errs, fmt.Errorf("perception.accuracy %.1f outside [0, 100]", c.Perception.Accuracy))
	}
	for i, s := range c.Spawners {
		switch s.Faction {
		case "Human", "Demon", "Ruin", "Forest":
		default:
			errs = append(errs, fmt.Errorf("spawners[%d]: unknown faction %q", i, s.Faction))
		}
		if s.Interval <= 0 {
			errs = append(errs, fmt.Errorf("spawners[%d]: interval must be positive", i))
		}
	}
	if c.Journal.Enabled {
		switch c.Journal.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Errorf("journal.driver %q not supported", c.Journal.Driver))
		}
	}
	return errors.Join(errs...)
}

// Schema returns the JSON Schema of the configuration document.
func Schema() ([]byte, error) {
	schema := jsonschema.Reflect(&Config{})
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}
