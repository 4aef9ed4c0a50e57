package config

import (
	"fmt"
	"sync"

	"github.com/jinzhu/copier"
)

// Manager owns the live configuration. Readers receive deep copies so a
// concurrent settings update can never mutate a config snapshot mid-job.
type Manager struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewManager wraps an already-validated configuration.
func NewManager(path string, cfg *Config) *Manager {
	return &Manager{path: path, cfg: cfg}
}

// Get returns a deep copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := &Config{}
	if err := copier.CopyWithOption(out, m.cfg, copier.Option{DeepCopy: true}); err != nil {
		// Config is a plain struct; a copy failure here would be a
		// programming error, so fall back to the shared pointer.
		return m.cfg
	}
	return out
}

// Getter returns a ConfigGetter bound to this manager.
func (m *Manager) Getter() ConfigGetter {
	return m.Get
}

// Update validates, persists, and swaps in a new configuration. The previous
// configuration stays active if validation or the disk write fails.
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("rejected settings update: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path != "" {
		if err := SaveConfig(m.path, cfg); err != nil {
			return err
		}
	}
	m.cfg = cfg
	return nil
}
