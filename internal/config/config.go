// Package config defines the engine and simulator configuration. Settings
// are explicit and injected at session start; the engine never reads
// ambient global state, which keeps it independently testable.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment variable overrides. A double underscore
// separates sections, e.g. HAZARDWATCH_MONITORING__WARNING_DISTANCE_METERS=800.
const envPrefix = "HAZARDWATCH_"

// Config is the complete application configuration.
type Config struct {
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Overpass   OverpassConfig   `koanf:"overpass"`
	Vehicle    VehicleConfig    `koanf:"vehicle"`
}

// MonitoringConfig controls the hazard monitoring session.
type MonitoringConfig struct {
	HazardWarningsEnabled   bool          `koanf:"hazard_warnings_enabled"`
	HazardAudioEnabled      bool          `koanf:"hazard_audio_enabled"`
	WarningDistanceMeters   float64       `koanf:"warning_distance_meters"`
	LookaheadMeters         float64       `koanf:"lookahead_meters"`
	PollInterval            time.Duration `koanf:"poll_interval"`
	MovementThresholdMeters float64       `koanf:"movement_threshold_meters"`
}

// OverpassConfig controls the restriction data source.
type OverpassConfig struct {
	Endpoint            string        `koanf:"endpoint"`
	SearchRadiusMeters  float64       `koanf:"search_radius_meters"`
	SampleSpacingMeters float64       `koanf:"sample_spacing_meters"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`
	CacheTTL            time.Duration `koanf:"cache_ttl"`
}

// VehicleConfig is the truck dimension profile.
type VehicleConfig struct {
	HeightMeters    float64 `koanf:"height_meters"`
	WidthMeters     float64 `koanf:"width_meters"`
	LengthMeters    float64 `koanf:"length_meters"`
	WeightKilograms float64 `koanf:"weight_kilograms"`
}

// Default returns the default configuration: a typical European semi-trailer
// profile and the engine's standard cadences.
func Default() *Config {
	return &Config{
		Monitoring: MonitoringConfig{
			HazardWarningsEnabled:   true,
			HazardAudioEnabled:      true,
			WarningDistanceMeters:   1000,
			LookaheadMeters:         2000,
			PollInterval:            5 * time.Second,
			MovementThresholdMeters: 100,
		},
		Overpass: OverpassConfig{
			Endpoint:            "https://overpass-api.de/api/interpreter",
			SearchRadiusMeters:  100,
			SampleSpacingMeters: 500,
			RequestTimeout:      25 * time.Second,
			CacheTTL:            15 * time.Minute,
		},
		Vehicle: VehicleConfig{
			HeightMeters:    4.0,
			WidthMeters:     2.55,
			LengthMeters:    16.5,
			WeightKilograms: 40000,
		},
	}
}

// Load reads configuration from an optional YAML file and applies
// HAZARDWATCH_-prefixed environment overrides on top of the defaults.
// An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Monitoring.WarningDistanceMeters <= 0 {
		return fmt.Errorf("warning_distance_meters must be positive, got %v", c.Monitoring.WarningDistanceMeters)
	}
	if c.Monitoring.LookaheadMeters <= 0 {
		return fmt.Errorf("lookahead_meters must be positive, got %v", c.Monitoring.LookaheadMeters)
	}
	if c.Monitoring.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.Monitoring.PollInterval)
	}
	if c.Vehicle.HeightMeters <= 0 || c.Vehicle.WidthMeters <= 0 ||
		c.Vehicle.LengthMeters <= 0 || c.Vehicle.WeightKilograms <= 0 {
		return fmt.Errorf("vehicle profile dimensions must all be positive")
	}
	return nil
}
