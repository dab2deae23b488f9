package config

import (
	"fmt"
	"sync"
)

// ConfigGetter returns the current configuration snapshot.
type ConfigGetter func() *Config

// ChangeCallback is invoked after a successful configuration update.
type ChangeCallback func(oldConfig, newConfig *Config)

// Manager provides synchronized access to the live configuration.
type Manager struct {
	mu         sync.RWMutex
	current    *Config
	configFile string
	callbacks  []ChangeCallback
}

// NewManager creates a configuration manager around an already-loaded
// configuration.
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns a deep copy of the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.DeepCopy()
}

// GetConfigGetter returns a function handing out config snapshots, the
// form the pipeline components take as a dependency.
func (m *Manager) GetConfigGetter() ConfigGetter {
	return m.GetConfig
}

// UpdateConfig validates and swaps in a new configuration, notifying
// registered callbacks.
func (m *Manager) UpdateConfig(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	old := m.current
	m.current = config.DeepCopy()
	callbacks := append([]ChangeCallback(nil), m.callbacks...)
	m.mu.Unlock()

	for _, callback := range callbacks {
		callback(old, config)
	}
	return nil
}

// OnConfigChange registers a callback for configuration updates.
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ReloadConfig re-reads the config file and applies it as an update.
func (m *Manager) ReloadConfig() error {
	m.mu.RLock()
	file := m.configFile
	m.mu.RUnlock()

	config, err := LoadConfig(file)
	if err != nil {
		return err
	}
	return m.UpdateConfig(config)
}

// SaveConfig writes the current configuration back to its file.
func (m *Manager) SaveConfig() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return SaveToFile(m.current, m.configFile)
}
