// Package config loads a set of tunable defaults: listener-count
// warning thresholds, header caps, inactivity timeouts, and buffer
// sizes. No evnet constructor reads them — NewSocket, NewHttpParser,
// and transport.New take no Defaults — so they take effect only where
// a caller passes the values on itself.
// Grounded on nishisan-dev-n-backup's internal/config package —
// YAML-backed struct with a validate() pass that fills zero-value
// fields with defaults rather than requiring every key.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults holds the tunables returned by DefaultDefaults or Load.
type Defaults struct {
	// MaxListeners is an EventEmitter per-event listener-count warning
	// threshold (for EventEmitter.SetMaxListeners, where 0 disables the
	// warning). Load replaces a zero value with 10.
	MaxListeners int `yaml:"max_listeners"`

	// MaxHeadersCount caps how many header pairs HttpParser copies onto
	// an IncomingMessage. 0 means no cap.
	MaxHeadersCount int `yaml:"max_headers_count"`

	// InactivityTimeout is a duration of read/write silence for
	// Socket.SetTimeout. A Socket arms no inactivity timer until
	// SetTimeout is called. Load replaces a zero or negative value
	// with two minutes.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`

	// ReadBufferSize is a size for the per-Conn scratch buffer ReadStart
	// reads into; transport.New always allocates 64 KiB and does not
	// read this value. Load replaces a zero or negative value with 64 KiB.
	ReadBufferSize int `yaml:"read_buffer_size"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures the evlog handler.
type LoggingConfig struct {
	Level    string `yaml:"level"`     // debug|info|warn|error, default info
	Format   string `yaml:"format"`    // json|text, default json
	FilePath string `yaml:"file_path"` // optional; "" logs to stdout only
}

// DefaultDefaults returns the built-in tunables used when no YAML file
// is loaded.
func DefaultDefaults() *Defaults {
	return &Defaults{
		MaxListeners:      10,
		MaxHeadersCount:   0,
		InactivityTimeout: 2 * time.Minute,
		ReadBufferSize:    64 * 1024,
		Logging:           LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads and validates a YAML defaults file at path.
func Load(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	d := DefaultDefaults()
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	d.validate()
	return d, nil
}

func (d *Defaults) validate() {
	if d.MaxListeners == 0 {
		d.MaxListeners = 10
	}
	if d.InactivityTimeout <= 0 {
		d.InactivityTimeout = 2 * time.Minute
	}
	if d.ReadBufferSize <= 0 {
		d.ReadBufferSize = 64 * 1024
	}
	if d.Logging.Level == "" {
		d.Logging.Level = "info"
	}
	if d.Logging.Format == "" {
		d.Logging.Format = "json"
	}
}
