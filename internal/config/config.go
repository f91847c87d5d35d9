package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every configuration load failure so callers can tell
// a bad config apart from runtime failures.
var ErrInvalid = errors.New("invalid config")

// DefaultConcurrency is the number of simultaneous transfers when
// MAX_WORKERS is not set. Tuned for S3-compatible stores; the HTTP
// connection pool is sized to match.
const DefaultConcurrency = 150

// Side holds the settings for one end of the sync (source or target).
type Side struct {
	Bucket             string `yaml:"bucket"`
	Region             string `yaml:"region"`
	Endpoint           string `yaml:"endpoint"`
	AccessKeyID        string `yaml:"access_key_id"`
	SecretAccessKey    string `yaml:"secret_access_key"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Config is the full run configuration.
type Config struct {
	Source      Side     `yaml:"source"`
	Target      Side     `yaml:"target"`
	Concurrency int      `yaml:"concurrency"`
	Excludes    []string `yaml:"excludes"`
}

// MissingError lists every required setting that was absent.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required settings: %s", strings.Join(e.Names, ", "))
}

// Load reads an optional YAML config file and then applies environment
// variable overrides. Environment always wins over the file so a checked-in
// config can be completed with credentials from the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{Concurrency: DefaultConcurrency}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read config file: %w", ErrInvalid, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config file: %w", ErrInvalid, err)
		}
		if cfg.Concurrency == 0 {
			cfg.Concurrency = DefaultConcurrency
		}
	}

	cfg.applyEnv()

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	applySideEnv(&c.Source, "SOURCE")
	applySideEnv(&c.Target, "TARGET")

	if v := os.Getenv("MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Concurrency = n
		}
	}
}

func applySideEnv(s *Side, prefix string) {
	if v := os.Getenv(prefix + "_BUCKET_NAME"); v != "" {
		s.Bucket = v
	}
	if v := os.Getenv(prefix + "_AWS_REGION"); v != "" {
		s.Region = v
	}
	if v := os.Getenv(prefix + "_ENDPOINT_URL"); v != "" {
		s.Endpoint = v
	}
	if v := os.Getenv(prefix + "_AWS_ACCESS_KEY_ID"); v != "" {
		s.AccessKeyID = v
	}
	if v := os.Getenv(prefix + "_AWS_SECRET_ACCESS_KEY"); v != "" {
		s.SecretAccessKey = v
	}
	if v := os.Getenv(prefix + "_VERIFY_SSL"); strings.EqualFold(v, "false") {
		s.InsecureSkipVerify = true
	}
}

// Validate checks that every required setting is present. All missing
// settings are reported at once rather than one per run.
func (c *Config) Validate() error {
	var missing []string

	checkSide := func(s Side, prefix string) {
		if s.AccessKeyID == "" {
			missing = append(missing, prefix+"_AWS_ACCESS_KEY_ID")
		}
		if s.SecretAccessKey == "" {
			missing = append(missing, prefix+"_AWS_SECRET_ACCESS_KEY")
		}
		if s.Bucket == "" {
			missing = append(missing, prefix+"_BUCKET_NAME")
		}
	}

	checkSide(c.Source, "SOURCE")
	checkSide(c.Target, "TARGET")

	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}
