package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultPath    = "config/prefixgen.toml"
	defaultTimeout = 120 * time.Second
)

// Config is built once at startup and handed to the pipeline as a value.
// Nothing mutates it after Load returns.
type Config struct {
	Settings Settings             `toml:"settings"`
	Sets     map[string]TargetSet `toml:"sets"`
}

type Settings struct {
	BGPURL    string `toml:"bgp_url"`
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`
}

// TargetSet names a group of ASNs whose announced IPv4 prefixes are written
// to one output artifact. Merged additionally writes an <output>.merged
// companion with adjacent networks collapsed.
type TargetSet struct {
	Name   string   `toml:"-"`
	ASNs   []uint32 `toml:"asns"`
	Output string   `toml:"output"`
	Merged bool     `toml:"merged"`
}

// SortedASNs returns the set's ASNs in ascending numeric order.
func (s TargetSet) SortedASNs() []uint32 {
	asns := make([]uint32, len(s.ASNs))
	copy(asns, s.ASNs)
	sort.Slice(asns, func(i, j int) bool { return asns[i] < asns[j] })
	return asns
}

// ASNList renders the set's ASNs for the artifact header, ascending and
// comma-joined.
func (s TargetSet) ASNList() string {
	asns := s.SortedASNs()
	parts := make([]string, len(asns))
	for i, asn := range asns {
		parts[i] = fmt.Sprintf("%d", asn)
	}
	return strings.Join(parts, ", ")
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for name, set := range cfg.Sets {
		set.Name = name
		cfg.Sets[name] = set
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Settings.BGPURL == "" {
		return errors.New("settings.bgp_url is required")
	}
	if c.Settings.UserAgent == "" {
		return errors.New("settings.user_agent is required (the feed provider rejects anonymous clients)")
	}
	if c.Settings.Timeout != "" {
		if _, err := time.ParseDuration(c.Settings.Timeout); err != nil {
			return fmt.Errorf("settings.timeout: %w", err)
		}
	}
	if len(c.Sets) == 0 {
		return errors.New("at least one [sets.<name>] is required")
	}
	outputs := make(map[string]string, len(c.Sets))
	for name, set := range c.Sets {
		if len(set.ASNs) == 0 {
			return fmt.Errorf("sets.%s: asns must not be empty", name)
		}
		if set.Output == "" {
			return fmt.Errorf("sets.%s: output is required", name)
		}
		if other, dup := outputs[set.Output]; dup {
			return fmt.Errorf("sets.%s: output %q already used by sets.%s", name, set.Output, other)
		}
		outputs[set.Output] = name
	}
	return nil
}

// FetchTimeout returns the whole-fetch bound, defaulting to two minutes.
func (c *Config) FetchTimeout() time.Duration {
	if c.Settings.Timeout == "" {
		return defaultTimeout
	}
	d, err := time.ParseDuration(c.Settings.Timeout)
	if err != nil {
		return defaultTimeout
	}
	return d
}

// TargetSets returns the configured sets in stable name order, so that a run
// processes and logs them deterministically regardless of map iteration.
func (c *Config) TargetSets() []TargetSet {
	sets := make([]TargetSet, 0, len(c.Sets))
	for _, set := range c.Sets {
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })
	return sets
}
