// Package loader provides the plugin-like feature loading system.
//
// Each feature implements the Feature interface, which defines its lifecycle hooks
// and route registration logic.
//
// # Feature Interface
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// # Manager
//
// The Manager holds the registry of available features:
//   - Register() adds a feature
//   - LoadAll() loads the enabled ones and reports their names
//
// The start command registers the mergeinfo and integrity features this way.
package loader
