package qchain

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// MaxL is the longest chain a 64 bit product-state integer can hold.
const MaxL = 63

/*
Config carries the process-wide defaults that used to be looked up lazily.
It is built once, handed to NewRuntime, and every Comm exposes it read-only so
constructors can resolve their defaults in a single explicit step.
*/
type Config struct {
	L                  int    // default spin chain length
	IndexBits          int    // 32 or 64; 32 caps L at 31
	Processes          int    // size of the process group
	Root               int    // rank that performs root-only work
	LogLevel           string // charmbracelet/log level name
	MaxLocalAmplitudes int64  // largest partition a single rank may allocate
}

func NewConfig() *Config {
	return &Config{
		L:                  8,
		IndexBits:          64,
		Processes:          1,
		Root:               0,
		LogLevel:           "info",
		MaxLocalAmplitudes: 1 << 32,
	}
}

/*
LoadConfig reads a Config through viper. Values come from the optional file at
path (any format viper understands) and from QCHAIN_* environment variables, in
that order of increasing precedence. Unset keys keep the NewConfig defaults.
*/
func LoadConfig(path string) (*Config, error) {
	defaults := NewConfig()

	v := viper.New()
	v.SetEnvPrefix("qchain")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("l", defaults.L)
	v.SetDefault("index_bits", defaults.IndexBits)
	v.SetDefault("processes", defaults.Processes)
	v.SetDefault("root", defaults.Root)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("max_local_amplitudes", defaults.MaxLocalAmplitudes)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		L:                  v.GetInt("l"),
		IndexBits:          v.GetInt("index_bits"),
		Processes:          v.GetInt("processes"),
		Root:               v.GetInt("root"),
		LogLevel:           v.GetString("log_level"),
		MaxLocalAmplitudes: v.GetInt64("max_local_amplitudes"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the config for values no Runtime could run with.
func (c *Config) Validate() error {
	if c.IndexBits != 32 && c.IndexBits != 64 {
		return fmt.Errorf("%w: index width must be 32 or 64 (got %d)", ErrValidation, c.IndexBits)
	}
	if c.Processes < 1 {
		return fmt.Errorf("%w: process group needs at least one process (got %d)", ErrValidation, c.Processes)
	}
	if c.Root < 0 || c.Root >= c.Processes {
		return fmt.Errorf("%w: root rank %d outside group of %d", ErrValidation, c.Root, c.Processes)
	}
	if c.MaxLocalAmplitudes < 1 {
		return fmt.Errorf("%w: local amplitude limit must be positive (got %d)", ErrValidation, c.MaxLocalAmplitudes)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q: %v", ErrValidation, c.LogLevel, err)
	}
	return c.validateL(c.L)
}

// maxLocalLength is the longest partition NewVector will allocate on one rank.
func (c *Config) maxLocalLength() int64 {
	return min(c.MaxLocalAmplitudes, int64(math.MaxInt/amplitudeSize))
}

// validateL checks a chain length against the product-state integer width.
func (c *Config) validateL(L int) error {
	if L < 0 {
		return fmt.Errorf("%w: spin chain length L must be a nonnegative integer (got %d)", ErrValidation, L)
	}
	if L > MaxL {
		return fmt.Errorf("%w: spin chain lengths greater than %d not supported (got %d)", ErrValidation, MaxL, L)
	}
	if c.IndexBits == 32 && L > 31 {
		return fmt.Errorf("%w: spin chain lengths greater than 31 not supported with 32 bit indices (got %d)", ErrValidation, L)
	}
	return nil
}
