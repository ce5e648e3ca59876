// Package secrets resolves provider API keys at invocation time. The file
// (when configured) is re-read on every lookup so rotated keys take effect
// without a restart. A missing key is a valid state, reported as an empty
// string; provider clients translate that into an "unavailable" failure.
package secrets

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"
)

// Store resolves API keys from a YAML secrets file with environment
// variables as fallback.
type Store struct {
	path      string
	envTomTom string
	envHere   string
	logger    *slog.Logger
}

type fileSecrets struct {
	TomTomAPIKey string `yaml:"tomtom_api_key"`
	HereAPIKey   string `yaml:"here_api_key"`
}

// NewStore creates a Store. path may be empty, in which case only the
// environment fallbacks are consulted.
func NewStore(path, tomtomKey, hereKey string, logger *slog.Logger) *Store {
	return &Store{
		path:      path,
		envTomTom: tomtomKey,
		envHere:   hereKey,
		logger:    logger,
	}
}

// TomTomKey returns the current TomTom API key, or "" when absent.
func (s *Store) TomTomKey() string {
	if f, ok := s.read(); ok && f.TomTomAPIKey != "" {
		return f.TomTomAPIKey
	}
	return s.envTomTom
}

// HereKey returns the current HERE API key, or "" when absent.
func (s *Store) HereKey() string {
	if f, ok := s.read(); ok && f.HereAPIKey != "" {
		return f.HereAPIKey
	}
	return s.envHere
}

func (s *Store) read() (fileSecrets, bool) {
	if s.path == "" {
		return fileSecrets{}, false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("could not read secrets file", "path", s.path, "error", err)
		return fileSecrets{}, false
	}
	var f fileSecrets
	if err := yaml.Unmarshal(data, &f); err != nil {
		s.logger.Warn("could not parse secrets file", "path", s.path, "error", err)
		return fileSecrets{}, false
	}
	return f, true
}
