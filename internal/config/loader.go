package config

import (
	"fmt"
	"os"

	"github.com/comfortablynumb/mockdispatch/internal/observability"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader reads Options from a YAML file on disk. Fields the file omits keep
// their defaults; a zero socket timeout or worker count, or an empty
// management API prefix, is reset to its default. Other fields keep the
// file's value even when zero.
type Loader struct {
	path string
}

// NewLoader creates a Loader reading from path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load parses the configured file into an Options value seeded from
// Default().
func (l *Loader) Load() (Options, error) {
	opts := Default()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			observability.Info("config file not found, using defaults", zap.String("path", l.path))
			return opts, nil
		}
		return Options{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse config file %s: %w", l.path, err)
	}

	if opts.SocketConnectionTimeout <= 0 {
		opts.SocketConnectionTimeout = Default().SocketConnectionTimeout
	}
	if opts.SchedulerWorkers <= 0 {
		opts.SchedulerWorkers = Default().SchedulerWorkers
	}
	if opts.ManagementAPIPrefix == "" {
		opts.ManagementAPIPrefix = Default().ManagementAPIPrefix
	}

	observability.Info("loaded configuration", zap.String("path", l.path))
	return opts, nil
}
