package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/silicakes/deluge-extensions-sub001/pkg/errors"

	"gopkg.in/yaml.v3"
)

const (
	DefaultJSONTimeout     = 3 * time.Second
	DefaultBinaryTimeout   = 10 * time.Second
	DefaultReadChunk       = 1024
	DefaultWriteChunk      = 256
	DefaultRenewThreshold  = 20
	DefaultDirPageLines    = 64
	DefaultUploadParallel  = 4
	DefaultReassemblyLimit = 64 * 1024
)

// Profile represents a named device configuration, for users with more
// than one Deluge.
type Profile struct {
	Name    string     `yaml:"name"`
	Midi    MidiConfig `yaml:"midi"`
	Default bool       `yaml:"default,omitempty"`
}

// Config holds the complete configuration including profiles.
type Config struct {
	Midi          MidiConfig     `yaml:"midi"`
	Protocol      ProtocolConfig `yaml:"protocol"`
	Profiles      []Profile      `yaml:"profiles,omitempty"`
	ActiveProfile string         `yaml:"active_profile,omitempty"`
}

// MidiConfig selects the MIDI ports and the sysex addressing mode.
type MidiConfig struct {
	// PortName is matched as a case-insensitive substring against the
	// OS port list. Empty means the first port containing "Deluge".
	PortName string `yaml:"port_name"`
	// DeveloperID forces the single-byte 0x7D manufacturer ID instead of
	// probing the Synthstrom prefix first.
	DeveloperID bool `yaml:"developer_id,omitempty"`
	// SessionTag is sent with session open; empty picks a generated tag.
	SessionTag string `yaml:"session_tag,omitempty"`
}

// ProtocolConfig tunes the request engine. Zero values fall back to the
// package defaults.
type ProtocolConfig struct {
	JSONTimeout    time.Duration `yaml:"json_timeout,omitempty"`
	BinaryTimeout  time.Duration `yaml:"binary_timeout,omitempty"`
	ReadChunk      int           `yaml:"read_chunk,omitempty"`
	WriteChunk     int           `yaml:"write_chunk,omitempty"`
	RenewThreshold int           `yaml:"renew_threshold,omitempty"`
	DirPageLines   int           `yaml:"dir_page_lines,omitempty"`
	UploadParallel int           `yaml:"upload_parallel,omitempty"`
	// ReassemblyLimit caps the fragment buffer; zero means the default,
	// negative disables reassembly entirely.
	ReassemblyLimit int `yaml:"reassembly_limit,omitempty"`
}

func (p *ProtocolConfig) ApplyDefaults() {
	if p.JSONTimeout <= 0 {
		p.JSONTimeout = DefaultJSONTimeout
	}
	if p.BinaryTimeout <= 0 {
		p.BinaryTimeout = DefaultBinaryTimeout
	}
	if p.ReadChunk <= 0 {
		p.ReadChunk = DefaultReadChunk
	}
	if p.WriteChunk <= 0 {
		p.WriteChunk = DefaultWriteChunk
	}
	if p.RenewThreshold <= 0 {
		p.RenewThreshold = DefaultRenewThreshold
	}
	if p.DirPageLines <= 0 {
		p.DirPageLines = DefaultDirPageLines
	}
	if p.UploadParallel <= 0 {
		p.UploadParallel = DefaultUploadParallel
	}
	if p.ReassemblyLimit == 0 {
		p.ReassemblyLimit = DefaultReassemblyLimit
	}
}

// Load loads the configuration, optionally selecting a named profile.
func Load(profileName ...string) (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, errors.NewWithError(errors.ExitCodeConfig, "failed to get config path", err)
	}
	return loadFromPath(configPath, profileName...)
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "delctl", "config.yaml"), nil
}

func loadFromPath(path string, profileName ...string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewWithError(errors.ExitCodeConfig, "failed to parse config file", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.NewWithError(errors.ExitCodeConfig, "failed to read config file", err)
	}

	want := cfg.ActiveProfile
	if len(profileName) > 0 && profileName[0] != "" {
		want = profileName[0]
	}
	if want != "" {
		found := false
		for _, p := range cfg.Profiles {
			if p.Name == want {
				cfg.Midi = p.Midi
				found = true
				break
			}
		}
		if !found {
			return nil, errors.ConfigError(fmt.Sprintf("profile %q not found", want))
		}
	} else {
		for _, p := range cfg.Profiles {
			if p.Default {
				cfg.Midi = p.Midi
				break
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.Protocol.ApplyDefaults()
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DELCTL_MIDI_PORT"); v != "" {
		cfg.Midi.PortName = v
	}
	if v := os.Getenv("DELCTL_DEVELOPER_ID"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Midi.DeveloperID = b
		}
	}
	if v := os.Getenv("DELCTL_SESSION_TAG"); v != "" {
		cfg.Midi.SessionTag = v
	}
}

// Save writes the configuration to the config file, creating the
// directory if needed.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewWithError(errors.ExitCodeConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to write config file", err)
	}

	return nil
}

// Default returns a config with all defaults applied and no file I/O.
func Default() *Config {
	cfg := &Config{}
	cfg.Protocol.ApplyDefaults()
	return cfg
}
