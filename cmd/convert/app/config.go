package app

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	FormatGML OutputFormat = "GML"
	FormatCSV OutputFormat = "CSV"

	defaultTaskPath = "./TASKDATA.XML"
)

// OutputFormat selects the serializer for converted trajectories.
type OutputFormat string

var validFormats = map[OutputFormat]struct{}{
	FormatGML: {},
	FormatCSV: {},
}

// Config is the resolved converter configuration: CLI flags merged over the
// optional settings file.
type Config struct {
	TaskPath     string
	Format       OutputFormat
	Cartesian    bool
	NoSimulation bool
	Settings     Settings
}

// Settings are the file-backed defaults (-config).
type Settings struct {
	LogLevel        string `yaml:"logLevel"`
	OutputDirectory string `yaml:"outputDirectory"`
	DatabasePath    string `yaml:"databasePath"`
}

// NewConfigFromCLI parses flags and the optional settings file. The single
// positional argument is the task file path.
func NewConfigFromCLI() (*Config, error) {
	c := &Config{
		TaskPath: defaultTaskPath,
		Format:   FormatGML,
	}

	var format, settingsPath string
	flag.StringVar(&format, "o", string(FormatGML), "Output format. [GML, CSV]")
	flag.StringVar(&format, "output", string(FormatGML), "Output format. [GML, CSV]")
	flag.BoolVar(&c.Cartesian, "c", false, "Emit local Cartesian coordinates instead of geodetic")
	flag.BoolVar(&c.Cartesian, "cartesian", false, "Emit local Cartesian coordinates instead of geodetic")
	flag.BoolVar(&c.NoSimulation, "n", false, "Route all channels to the antenna trace instead of partitioning by geometry")
	flag.BoolVar(&c.NoSimulation, "nosimulation", false, "Route all channels to the antenna trace instead of partitioning by geometry")
	flag.StringVar(&settingsPath, "config", "", "Path to the settings file")
	flag.Parse()

	var err error
	switch {
	case flag.NArg() > 1:
		err = fmt.Errorf("expected at most one task file argument, got %d", flag.NArg())
	default:
		if flag.NArg() == 1 {
			c.TaskPath = flag.Arg(0)
		}
		upper := OutputFormat(strings.ToUpper(format))
		if _, ok := validFormats[upper]; !ok {
			err = fmt.Errorf("invalid output format: %s", format)
			break
		}
		c.Format = upper
	}
	if err != nil {
		flag.Usage()
		return nil, err
	}

	if settingsPath != "" {
		if c.Settings, err = LoadSettings(settingsPath); err != nil {
			return nil, err
		}
	}
	if c.Settings.OutputDirectory == "" {
		c.Settings.OutputDirectory = "."
	}
	return c, nil
}

// LoadSettings reads the yaml settings file.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing settings file: %w", err)
	}
	return s, nil
}

// SlogLevel maps the settings log level onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Settings.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
