package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Sampling   SamplingConfig   `yaml:"sampling"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Mock       MockConfig       `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"` // Time to wait for a response line
	Settle   time.Duration `yaml:"settle"`  // Pause after opening while the board resets
}

// InstrumentConfig describes the instrument expected on the other end of the port.
type InstrumentConfig struct {
	Identity string `yaml:"identity"` // Must match the *IDN? response exactly
}

// SamplingConfig contains the measurement sequence parameters.
type SamplingConfig struct {
	Samples      int           `yaml:"samples"`
	Delay        time.Duration `yaml:"delay"`
	StartMessage string        `yaml:"start_message"`
	EndMessage   string        `yaml:"end_message"`
}

// OutputConfig contains the sample log location.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains diagnostic logging parameters.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // Optional rotating JSON log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MockConfig contains simulated instrument configuration.
type MockConfig struct {
	Identity  string        `yaml:"identity"`
	Center    float32       `yaml:"center"`     // Mean reading (%)
	Amplitude float32       `yaml:"amplitude"`  // Sine amplitude (%)
	Period    time.Duration `yaml:"period"`     // Sine period
	Jitter    float32       `yaml:"jitter"`     // Peak jitter added to every reading (%)
	DropEvery int           `yaml:"drop_every"` // Every Nth measurement gets no reply (0 = never)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 9600,
			Timeout:  time.Second,
			Settle:   2 * time.Second,
		},
		Instrument: InstrumentConfig{
			Identity: "ArduinoSensorKit,v1.0,SN:SK12345",
		},
		Sampling: SamplingConfig{
			Samples:      20,
			Delay:        500 * time.Millisecond,
			StartMessage: "Logging...",
			EndMessage:   "Complete!",
		},
		Output: OutputConfig{
			Path: "potentiometer_log.csv",
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Mock: MockConfig{
			Identity:  "ArduinoSensorKit,v1.0,SN:SK12345",
			Center:    50,
			Amplitude: 40,
			Period:    10 * time.Second,
			Jitter:    2,
			DropEvery: 0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
// A zero sample count or delay is a valid choice and is kept.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate <= 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.Timeout <= 0 {
		c.Serial.Timeout = def.Serial.Timeout
	}
	if c.Serial.Settle < 0 {
		c.Serial.Settle = def.Serial.Settle
	}

	if c.Instrument.Identity == "" {
		c.Instrument.Identity = def.Instrument.Identity
	}

	if c.Sampling.Samples < 0 {
		c.Sampling.Samples = def.Sampling.Samples
	}
	if c.Sampling.Delay < 0 {
		c.Sampling.Delay = def.Sampling.Delay
	}

	if c.Output.Path == "" {
		c.Output.Path = def.Output.Path
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = def.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = def.Logging.MaxBackups
	}

	if c.Mock.Identity == "" {
		c.Mock.Identity = def.Mock.Identity
	}
	if c.Mock.Period <= 0 {
		c.Mock.Period = def.Mock.Period
	}
}
