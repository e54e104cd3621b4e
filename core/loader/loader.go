package loader

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Feature is a module that exposes HTTP routes.
type Feature interface {
	// Name identifies the feature in logs and errors.
	Name() string
	// IsEnabled reports whether the feature should be loaded.
	IsEnabled() bool
	// Load registers the feature's routes.
	Load(app fiber.Router) error
}

// Manager holds the registered features in registration order.
type Manager struct {
	features []Feature
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a feature.
func (m *Manager) Register(f Feature) {
	m.features = append(m.features, f)
}

// Features returns the registered features.
func (m *Manager) Features() []Feature {
	return m.features
}

// LoadAll loads every enabled feature and returns the names loaded.
// It stops at the first failure.
func (m *Manager) LoadAll(app fiber.Router) ([]string, error) {
	var loaded []string
	for _, f := range m.features {
		if !f.IsEnabled() {
			continue
		}
		if err := f.Load(app); err != nil {
			return loaded, fmt.Errorf("load feature %s: %w", f.Name(), err)
		}
		loaded = append(loaded, f.Name())
	}
	return loaded, nil
}
