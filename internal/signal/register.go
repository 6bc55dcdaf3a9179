// Package signal provides the built-in observation models that map a
// population's latent state to the signal vector a round reports.
package signal

import "episkopos/internal/plugin"

// Register seeds the built-in signal models. Names already registered
// are kept.
func Register(r *plugin.Registry) {
	r.SeedSignals(map[string]plugin.SignalFactory{
		"affine": NewAffine,
	}, false)
}
