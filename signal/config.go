// Package signal contains the websocket server and the wiring of every
// component behind it.
package signal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"parley/metric"
	"parley/sfu"
)

const (
	// DefaultPort is the default port number for the server.
	DefaultPort = 7070

	// DefaultRecordingsDir is where recording files land unless configured.
	DefaultRecordingsDir = "recordings"
)

// Below is the Error message for the server.
var (
	ErrInvalidPort     = errors.New("invalid port")
	ErrInvalidCertFile = errors.New("invalid cert file")
	ErrInvalidKeyFile  = errors.New("invalid key file")
	ErrNoSecret        = errors.New("no secret")
)

// Config is the configuration for creating a Server instance.
type Config struct {
	Port          int           `mapstructure:"port"`
	Debug         bool          `mapstructure:"debug"`
	CertFile      string        `mapstructure:"cert_file"`
	KeyFile       string        `mapstructure:"key_file"`
	Secret        string        `mapstructure:"secret"`
	PeerTimeout   time.Duration `mapstructure:"peer_timeout"`
	RecordingsDir string        `mapstructure:"recordings_dir"`
	Metric        metric.Config `mapstructure:"metric"`
	SFU           sfu.Config    `mapstructure:"sfu"`
}

// IsSame checks if the given config is the same as the current one.
func (c Config) IsSame(config Config) bool {
	return c.Port == config.Port &&
		c.CertFile == config.CertFile &&
		c.KeyFile == config.KeyFile &&
		c.Secret == config.Secret
}

// Validate validates the port number, the shared secret and the files for
// certification.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("must be between 1 and 65535, given %d: %w", c.Port, ErrInvalidPort)
	}

	if c.Secret == "" {
		return fmt.Errorf("a shared secret is required: %w", ErrNoSecret)
	}

	if err := c.SFU.Validate(); err != nil {
		return fmt.Errorf("invalid media config: %w", err)
	}

	if c.CertFile == "" && c.KeyFile == "" {
		return nil
	}

	if _, err := os.Stat(c.CertFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist: %w", c.CertFile, ErrInvalidCertFile)
		}
		return fmt.Errorf("unable to access %s: %w", c.CertFile, ErrInvalidCertFile)
	}

	if _, err := os.Stat(c.KeyFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist: %w", c.KeyFile, ErrInvalidKeyFile)
		}
		return fmt.Errorf("unable to access %s: %w", c.KeyFile, ErrInvalidKeyFile)
	}

	return nil
}
