package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"lightcurve/pkg/lightcurve"
)

const (
	defaultRadius      = 8
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultChartWidth  = 900
	defaultChartHeight = 600

	envFrames   = "LIGHTCURVE_FRAMES"
	envLogLevel = "LIGHTCURVE_LOG_LEVEL"
	envDatabase = "LIGHTCURVE_DB"
)

// Config describes one photometry session.
type Config struct {
	Frames     string  `yaml:"frames"`
	Debayer    bool    `yaml:"debayer"`
	Workers    int     `yaml:"workers"`
	Method     string  `yaml:"method"`
	Radius     int     `yaml:"radius"`
	Target     Star    `yaml:"target"`
	References []Star  `yaml:"references"`
	Logging    Logging `yaml:"logging"`
	Store      Store   `yaml:"store"`
	Output     Output  `yaml:"output"`
}

// Star is a pixel position with an optional display name.
type Star struct {
	Name string  `yaml:"name,omitempty"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
}

// Logging controls logging verbosity and format.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Store configures run persistence. An empty path disables it.
type Store struct {
	Path  string `yaml:"path"`
	Label string `yaml:"label"`
}

// Output configures optional result files.
type Output struct {
	CSV         string `yaml:"csv"`
	Chart       string `yaml:"chart"`
	ChartWidth  int    `yaml:"chart_width"`
	ChartHeight int    `yaml:"chart_height"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Workers: runtime.NumCPU(),
		Method:  string(lightcurve.MethodAverage),
		Radius:  defaultRadius,
		Logging: Logging{Level: defaultLogLevel, Format: defaultLogFormat},
		Output:  Output{ChartWidth: defaultChartWidth, ChartHeight: defaultChartHeight},
	}
}

// Load reads configuration from disk.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session config: %w", err)
	}
	defer file.Close()
	return LoadFromReader(file)
}

// LoadFromReader decodes a YAML session over the defaults and applies
// environment overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read session config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal session config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envFrames)); v != "" {
		c.Frames = v
	}
	if v := strings.TrimSpace(os.Getenv(envLogLevel)); v != "" {
		c.Logging.Level = v
	}
	if v := EnvDatabase(); v != "" {
		c.Store.Path = v
	}
}

// EnvLogLevel returns the log level set in the environment, if any.
func EnvLogLevel() string {
	return strings.TrimSpace(os.Getenv(envLogLevel))
}

// EnvDatabase returns the database path set in the environment, if any.
func EnvDatabase() string {
	return strings.TrimSpace(os.Getenv(envDatabase))
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Method == "" {
		c.Method = string(lightcurve.MethodAverage)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Output.ChartWidth <= 0 {
		c.Output.ChartWidth = defaultChartWidth
	}
	if c.Output.ChartHeight <= 0 {
		c.Output.ChartHeight = defaultChartHeight
	}
}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Frames) == "" {
		errs = append(errs, errors.New("frames path is required"))
	}
	if c.Radius <= 0 {
		errs = append(errs, fmt.Errorf("%w: radius must be positive, got %d", lightcurve.ErrInvalidConfig, c.Radius))
	}
	if len(c.References) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one reference star is required", lightcurve.ErrInvalidConfig))
	}
	if _, err := lightcurve.ParseMethod(c.Method); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("validate session config: %w", err)
	}
	return nil
}

// TargetCenter returns the target position.
func (c *Config) TargetCenter() lightcurve.Point2d {
	return lightcurve.Point2d{X: c.Target.X, Y: c.Target.Y}
}

// ReferenceCenters returns the reference positions and names in order.
// Names are nil when no reference is named.
func (c *Config) ReferenceCenters() ([]lightcurve.Point2d, []string) {
	centers := make([]lightcurve.Point2d, len(c.References))
	names := make([]string, len(c.References))
	named := false
	for i, s := range c.References {
		centers[i] = lightcurve.Point2d{X: s.X, Y: s.Y}
		names[i] = s.Name
		named = named || s.Name != ""
	}
	if !named {
		return centers, nil
	}
	return centers, names
}
