// Package config loads the precompute service configuration from an
// optional config.yaml plus CITYFLOW_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings.
type Config struct {
	Input  InputConfig  `mapstructure:"input"`
	Output OutputConfig `mapstructure:"output"`
	Trace  TraceConfig  `mapstructure:"trace"`
	Grid   GridConfig   `mapstructure:"grid"`
	Interp InterpConfig `mapstructure:"interp"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Log    LogConfig    `mapstructure:"log"`
}

// InputConfig locates the area documents to process.
type InputConfig struct {
	Dir string `mapstructure:"dir"` // directory of <area>.buildings.json / <area>.<variable>.stations.json
}

// OutputConfig locates where artifact documents are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// TraceConfig holds the streamline tracer parameters.
type TraceConfig struct {
	StepSize        float64 `mapstructure:"step_size"`
	MaxSteps        int     `mapstructure:"max_steps"`
	Margin          float64 `mapstructure:"margin"`
	YMin            float64 `mapstructure:"y_min"`
	YMax            float64 `mapstructure:"y_max"`
	JitterSeed      int64   `mapstructure:"jitter_seed"`
	JitterAmplitude float64 `mapstructure:"jitter_amplitude"`
}

// GridConfig holds the seed grid parameters.
type GridConfig struct {
	Resolution   int       `mapstructure:"resolution"`
	HeightLayers []float64 `mapstructure:"height_layers"`
	MinPoints    int       `mapstructure:"min_points"`
	Workers      int       `mapstructure:"workers"` // <=0 uses GOMAXPROCS
}

// InterpConfig holds the scalar interpolator parameters.
type InterpConfig struct {
	Power    float64 `mapstructure:"power"`
	GridSize int     `mapstructure:"grid_size"`
}

// KafkaConfig controls the optional artifact publisher. Publishing is
// enabled when brokers are set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether artifacts should also be published to Kafka.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// HTTPConfig holds the health/metrics server settings.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"` // empty disables the server
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("input.dir", "data/areas")
	v.SetDefault("output.dir", "data/artifacts")
	v.SetDefault("trace.step_size", 12.0)
	v.SetDefault("trace.max_steps", 200)
	v.SetDefault("trace.margin", 50.0)
	v.SetDefault("trace.y_min", 10.0)
	v.SetDefault("trace.y_max", 100.0)
	v.SetDefault("trace.jitter_seed", 1)
	v.SetDefault("trace.jitter_amplitude", 2.0)
	v.SetDefault("grid.resolution", 10)
	v.SetDefault("grid.height_layers", []float64{20, 55, 90})
	v.SetDefault("grid.min_points", 15)
	v.SetDefault("grid.workers", 0)
	v.SetDefault("interp.power", 2.0)
	v.SetDefault("interp.grid_size", 50)
	v.SetDefault("kafka.topic", "cityflow-artifacts")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CITYFLOW_TRACE_STEP_SIZE → trace.step_size
	v.SetEnvPrefix("CITYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Input.Dir == "" {
		errs = append(errs, "input.dir is required")
	}
	if c.Output.Dir == "" {
		errs = append(errs, "output.dir is required")
	}
	if c.Trace.StepSize <= 0 {
		errs = append(errs, fmt.Sprintf("trace.step_size must be positive, got %g", c.Trace.StepSize))
	}
	if c.Trace.MaxSteps <= 0 {
		errs = append(errs, fmt.Sprintf("trace.max_steps must be positive, got %d", c.Trace.MaxSteps))
	}
	if c.Trace.Margin < 0 {
		errs = append(errs, fmt.Sprintf("trace.margin must not be negative, got %g", c.Trace.Margin))
	}
	if c.Trace.YMax < c.Trace.YMin {
		errs = append(errs, "trace.y_max must not be below trace.y_min")
	}
	if c.Grid.Resolution <= 0 {
		errs = append(errs, fmt.Sprintf("grid.resolution must be positive, got %d", c.Grid.Resolution))
	}
	if len(c.Grid.HeightLayers) == 0 {
		errs = append(errs, "grid.height_layers must not be empty")
	}
	if c.Grid.MinPoints < 0 {
		errs = append(errs, fmt.Sprintf("grid.min_points must not be negative, got %d", c.Grid.MinPoints))
	}
	if c.Interp.Power <= 0 {
		errs = append(errs, fmt.Sprintf("interp.power must be positive, got %g", c.Interp.Power))
	}
	if c.Interp.GridSize <= 0 {
		errs = append(errs, fmt.Sprintf("interp.grid_size must be positive, got %d", c.Interp.GridSize))
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, "kafka.topic is required when kafka.brokers is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
