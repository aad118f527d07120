package localizer

import (
	"context"
	"fmt"
	"time"

	"localizer/models"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope of a config file: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// RunConfig holds everything a driver needs to set up and pace a run.
type RunConfig struct {
	Grid GridConfig `yaml:"grid"`

	// Seed is optional; absent means a random seed.
	Seed *uint64 `yaml:"seed"`

	// Ticks bounds the run; zero runs until cancelled.
	Ticks int `yaml:"ticks"`

	// TickInterval paces the loop, e.g. "250ms". Empty runs as fast as possible.
	TickInterval string `yaml:"tick_interval"`

	// RunDeadline is a key-val description of when to stop, e.g. duration: 10m.
	RunDeadline map[string]string `yaml:"run_deadline"`

	Report ReportConfig `yaml:"report"`
}

type GridConfig struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

type ReportConfig struct {
	// Dir receives the html report and error plot; empty disables the report.
	Dir string `yaml:"dir"`
}

const CONFIG_KIND = "localizer"

// DefaultRunConfig is used when no config file is given.
func DefaultRunConfig() *RunConfig {
	cfg := &RunConfig{
		Ticks:        200,
		TickInterval: "250ms",
	}
	cfg.Grid.Rows, cfg.Grid.Cols = 8, 8
	cfg.Report.Dir = "./report"
	return cfg
}

// FromYaml reads a run config. Viper reads the envelope and the definition is
// re-decoded with yaml so that the inner struct keeps its yaml tags. Viper lower-cases
// keys, hence the snake_case tags.
func FromYaml(path string) (*RunConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != CONFIG_KIND {
		return nil, fmt.Errorf("%w: config kind %q, expected %q", ErrInvalidConfig, outerConfig.Kind, CONFIG_KIND)
	}

	var inner []byte
	if inner, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultRunConfig()
	if err = yaml.Unmarshal(inner, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, nil
}

// Interval parses TickInterval; an empty interval is zero.
func (cfg *RunConfig) Interval() (time.Duration, error) {
	if cfg.TickInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(cfg.TickInterval)
}

// LocalizerConfig converts the run config into the core's Config.
func (cfg *RunConfig) LocalizerConfig() Config {
	return Config{
		Rows:     cfg.Grid.Rows,
		Cols:     cfg.Grid.Cols,
		Headings: models.NUM_HEADINGS,
		Seed:     cfg.Seed,
	}
}

// WithRunDeadline returns a context extended by the run deadline, if one is specified.
func (cfg *RunConfig) WithRunDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.RunDeadline["duration"]; ok {
		if duration, err := time.ParseDuration(val); err != nil {
			return nil, nil, err
		} else {
			innerCtx, cancel := context.WithTimeout(ctx, duration)
			return innerCtx, cancel, nil
		}
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}
