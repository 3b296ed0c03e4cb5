package structive

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/structive/structive-go/internal/engine"
	"github.com/structive/structive-go/internal/serr"
)

// Config carries the runtime knobs, loadable from YAML.
type Config struct {
	// Debug enables grouped error logging.
	Debug bool `yaml:"debug"`
	// RefStackDepth bounds reentrant getter nesting; exceeding it reports
	// a computed-property cycle.
	RefStackDepth int `yaml:"ref_stack_depth" validate:"gte=8,lte=4096"`
	// MaxLoopDepth bounds the loop-index alias levels ($1..$n).
	MaxLoopDepth int `yaml:"max_loop_depth" validate:"gte=1,lte=32"`
	// Metrics enables the runtime metrics collector endpoints.
	Metrics bool `yaml:"metrics"`

	Session SessionConfig `yaml:"session"`
}

// SessionConfig tunes live websocket sessions.
type SessionConfig struct {
	// KeepAlive is the ping interval for idle connections.
	KeepAlive time.Duration `yaml:"keep_alive" validate:"gte=1s"`
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=100ms"`
	// MaxMessageBytes bounds inbound client frames.
	MaxMessageBytes int64 `yaml:"max_message_bytes" validate:"gte=256"`
}

// DefaultConfig returns the defaults every knob falls back to.
func DefaultConfig() Config {
	return Config{
		RefStackDepth: 256,
		MaxLoopDepth:  32,
		Session: SessionConfig{
			KeepAlive:       30 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageBytes: 1 << 20,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults and validates it.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(raw)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(raw []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, serr.New("CFG-001", "config", "config is not valid YAML",
			serr.WithCause(err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	// Debug logging is process wide; the loaded config decides it once,
	// here, rather than every engine constructor re-deciding it.
	serr.SetDebug(cfg.Debug)
	return cfg, nil
}

var validate = validator.New()

// Validate checks every knob's bounds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return serr.New("CFG-002", "config", "config failed validation",
			serr.WithCause(err))
	}
	return nil
}

func (c Config) engineConfig() engine.Config {
	return engine.Config{
		RefStackDepth: c.RefStackDepth,
		MaxLoopDepth:  c.MaxLoopDepth,
	}
}
