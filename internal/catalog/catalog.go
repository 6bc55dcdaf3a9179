// Package catalog assembles the built-in strategies into a plugin
// registry. It is the one place that knows every built-in package, so
// the engine and CLI depend on it instead of on each strategy package.
package catalog

import (
	"episkopos/internal/aggregate"
	"episkopos/internal/mechanism"
	"episkopos/internal/plugin"
	"episkopos/internal/signal"
)

// New returns a registry whose built-ins seed lazily on first lookup.
// Entries registered before that point win over the built-ins.
func New() *plugin.Registry {
	return plugin.NewRegistry(plugin.WithDefaults(RegisterAll))
}

// RegisterAll seeds every built-in aggregator, signal model, and
// mechanism into r, keeping any name that is already registered.
func RegisterAll(r *plugin.Registry) {
	aggregate.Register(r)
	signal.Register(r)
	mechanism.Register(r)
}
