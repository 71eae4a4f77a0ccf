// Package config loads the hoard configuration file and resolves it into the
// hoards the engine operates on.
//
// The configuration lives in the config directory as config.toml, or
// config.yaml when no TOML file exists. Both formats describe the same
// structure; TOML wins if both are present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"hoard-go/internal/checksum"
	"hoard-go/internal/hoard"
)

// PileConfig describes one named pile of a hoard.
type PileConfig struct {
	Path     string   `toml:"path" yaml:"path"`
	Checksum string   `toml:"checksum,omitempty" yaml:"checksum,omitempty"`
	Ignore   []string `toml:"ignore,omitempty" yaml:"ignore,omitempty"`
}

// HoardConfig describes one hoard: either a single anonymous pile (Path set)
// or a set of named piles. Checksum and Ignore apply to every pile of the
// hoard unless a pile overrides them.
type HoardConfig struct {
	Path     string                `toml:"path,omitempty" yaml:"path,omitempty"`
	Checksum string                `toml:"checksum,omitempty" yaml:"checksum,omitempty"`
	Ignore   []string              `toml:"ignore,omitempty" yaml:"ignore,omitempty"`
	Piles    map[string]PileConfig `toml:"piles,omitempty" yaml:"piles,omitempty"`
}

// Config is the root of the configuration file.
type Config struct {
	Checksum string                 `toml:"checksum,omitempty" yaml:"checksum,omitempty"`
	Ignore   []string               `toml:"ignore,omitempty" yaml:"ignore,omitempty"`
	Hoards   map[string]HoardConfig `toml:"hoards" yaml:"hoards"`
}

const (
	tomlFileName = "config.toml"
	yamlFileName = "config.yaml"
)

// Load reads the configuration from configDir, preferring config.toml over
// config.yaml.
func Load(configDir string) (*Config, error) {
	tomlPath := filepath.Join(configDir, tomlFileName)
	if _, err := os.Stat(tomlPath); err == nil {
		return loadTOML(tomlPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking %s: %w", tomlPath, err)
	}

	yamlPath := filepath.Join(configDir, yamlFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return loadYAML(yamlPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking %s: %w", yamlPath, err)
	}

	return nil, fmt.Errorf("no %s or %s found in %s", tomlFileName, yamlFileName, configDir)
}

func loadTOML(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return &cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return &cfg, nil
}

// Names returns the configured hoard names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Hoards))
	for name := range c.Hoards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveAll converts every configured hoard, sorted by name.
func (c *Config) ResolveAll() ([]*hoard.Hoard, error) {
	hoards := make([]*hoard.Hoard, 0, len(c.Hoards))
	for _, name := range c.Names() {
		h, err := c.Resolve(name)
		if err != nil {
			return nil, err
		}
		hoards = append(hoards, h)
	}
	return hoards, nil
}

// Resolve converts one configured hoard into the engine's model: paths get
// ${VAR} references expanded, ignore patterns merge from global through hoard
// to pile, and the checksum algorithm follows the most specific setting.
func (c *Config) Resolve(name string) (*hoard.Hoard, error) {
	hc, ok := c.Hoards[name]
	if !ok {
		return nil, fmt.Errorf("hoard %q is not configured", name)
	}
	if hc.Path != "" && len(hc.Piles) > 0 {
		return nil, fmt.Errorf("hoard %q sets both path and piles", name)
	}

	h := &hoard.Hoard{Name: name}
	if hc.Path != "" {
		pile, err := c.resolvePile(name, hoard.AnonymousPile, PileConfig{Path: hc.Path}, &hc)
		if err != nil {
			return nil, err
		}
		h.Piles = []hoard.Pile{pile}
	} else {
		pileNames := make([]string, 0, len(hc.Piles))
		for pn := range hc.Piles {
			pileNames = append(pileNames, pn)
		}
		sort.Strings(pileNames)
		for _, pn := range pileNames {
			pile, err := c.resolvePile(name, hoard.PileName(pn), hc.Piles[pn], &hc)
			if err != nil {
				return nil, err
			}
			h.Piles = append(h.Piles, pile)
		}
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (c *Config) resolvePile(hoardName string, pileName hoard.PileName, pc PileConfig, hc *HoardConfig) (hoard.Pile, error) {
	path, err := ExpandEnv(pc.Path)
	if err != nil {
		return hoard.Pile{}, fmt.Errorf("hoard %q pile %q: %w", hoardName, pileName, err)
	}

	algName := pc.Checksum
	if algName == "" {
		algName = hc.Checksum
	}
	if algName == "" {
		algName = c.Checksum
	}
	alg, err := checksum.ParseAlgorithm(algName)
	if err != nil {
		return hoard.Pile{}, fmt.Errorf("hoard %q pile %q: %w", hoardName, pileName, err)
	}

	var patterns []string
	patterns = append(patterns, c.Ignore...)
	patterns = append(patterns, hc.Ignore...)
	patterns = append(patterns, pc.Ignore...)

	return hoard.Pile{
		Name:       pileName,
		SystemPath: filepath.Clean(path),
		Checksum:   alg,
		Ignore:     hoard.NewIgnoreMatcher(patterns),
	}, nil
}

var envRefRe = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// ExpandEnv replaces ${VAR} references in a configured path. An unset
// variable is an error rather than an empty expansion, since a silently
// truncated path could sync the wrong directory.
func ExpandEnv(path string) (string, error) {
	var missing string
	expanded := envRefRe.ReplaceAllStringFunc(path, func(ref string) string {
		name := ref[2 : len(ref)-1]
		value, ok := os.LookupEnv(name)
		if !ok && missing == "" {
			missing = name
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("environment variable %q referenced in %q is not set", missing, path)
	}
	return expanded, nil
}
