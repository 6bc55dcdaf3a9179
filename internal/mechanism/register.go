// Package mechanism provides the built-in assessment policies that
// turn one round's state, signal, and aggregate into metrics.
package mechanism

import "episkopos/internal/plugin"

// Register seeds the built-in mechanisms. Names already registered are
// kept.
func Register(r *plugin.Registry) {
	r.SeedMechanisms(map[string]plugin.MechanismFactory{
		"orth_penalty": NewOrthPenalty,
	}, false)
}
