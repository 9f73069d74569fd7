package coordcache

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Duration is a time.Duration that unmarshals from "30s"-style YAML strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the startup configuration for a CacheContext: namespace, TTL
// table, lock defaults and the declarative related-invalidation rule table.
// None of it is runtime-mutable by callers.
type Config struct {
	// Namespace prefixes every key this layer writes. Required.
	Namespace string `yaml:"namespace"`

	// DefaultTTL applies to caches absent from TTLs. 0 => 10m.
	DefaultTTL Duration `yaml:"default_ttl"`

	// TTLs maps cache names to their entry TTL.
	TTLs map[string]Duration `yaml:"ttls"`

	Lock LockConfig `yaml:"lock"`

	// WriteBehindQueue is the durable queue name for write-behind
	// operations, relative to the namespace. Empty => "cache:write-behind:queue".
	WriteBehindQueue string `yaml:"write_behind_queue"`

	// InvalidationRules maps a cache name to the related evictions applied
	// when one of its keys is invalidated.
	InvalidationRules map[string][]InvalidationRule `yaml:"invalidation_rules"`
}

type LockConfig struct {
	// Lease bounds how long a load/write lock is held without release.
	// 0 => 30s.
	Lease Duration `yaml:"lease"`

	// Wait bounds how long callers block acquiring a load/write lock.
	// 0 => 5s.
	Wait Duration `yaml:"wait"`

	// RetryInterval is the polling interval for contended primitives.
	// 0 => 50ms.
	RetryInterval Duration `yaml:"retry_interval"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("config: namespace is required")
	}
	return validateRules(c.InvalidationRules)
}
