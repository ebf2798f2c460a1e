package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/multistream/internal/units"
)

// config represents the complete units configuration file for TOML
// marshaling. Units and templates are arrays of tables so file order
// survives a round trip.
type config struct {
	Version   int                `toml:"version" json:"version"`
	Units     []units.StreamUnit `toml:"units,omitempty" json:"units,omitempty"`
	Templates []units.Template   `toml:"templates,omitempty" json:"templates,omitempty"`
}

// tomlStore implements units.Store using TOML file storage.
type tomlStore struct {
	mu         sync.Mutex
	configPath string
	config     *config
}

// NewTOML creates a new TOML-based store.
func NewTOML(configPath string) units.Store {
	if configPath == "" {
		configPath = "units.toml"
	}

	return &tomlStore{
		configPath: configPath,
		config:     &config{Version: 1},
	}
}

// Load loads the units configuration from file.
func (s *tomlStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if file exists
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		// File doesn't exist, use empty config
		return nil
	}

	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read units config: %w", err)
	}

	cfg := &config{}
	if unmarshalErr := toml.Unmarshal(data, cfg); unmarshalErr != nil {
		return fmt.Errorf("failed to parse units config: %w", unmarshalErr)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	s.config = cfg

	return nil
}

// save writes the configuration to file. Caller must hold s.mu.
func (s *tomlStore) save() error {
	// Ensure directory exists
	dir := filepath.Dir(s.configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(s.config)
	if err != nil {
		return fmt.Errorf("failed to marshal units config: %w", err)
	}

	if writeErr := os.WriteFile(s.configPath, data, 0o644); writeErr != nil {
		return fmt.Errorf("failed to write units config: %w", writeErr)
	}

	return nil
}

// Units returns all persisted units in file order.
func (s *tomlStore) Units() []units.StreamUnit {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]units.StreamUnit, len(s.config.Units))
	copy(out, s.config.Units)
	return out
}

// CustomTemplates returns persisted custom templates in file order.
func (s *tomlStore) CustomTemplates() []units.Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]units.Template, len(s.config.Templates))
	copy(out, s.config.Templates)
	return out
}

// SaveUnits replaces the persisted unit list and writes the file.
func (s *tomlStore) SaveUnits(streamUnits []units.StreamUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Units = streamUnits
	return s.save()
}

// SaveTemplates replaces the persisted custom template list and writes
// the file.
func (s *tomlStore) SaveTemplates(templates []units.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Templates = templates
	return s.save()
}
