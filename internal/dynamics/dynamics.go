// Package dynamics provides deterministic population update maps for
// studying state evolution outside the simulation loop.
package dynamics

import "math"

// Map evolves a population state one step, returning a fresh slice.
type Map func(u []float64) []float64

// LinearDampedTowardScalar pulls every entry toward target with
// f(u) = damp*u + (1-damp)*target, where damp = max(0, 1-step*alpha).
// Aggressive settings clamp the damping at zero, which jumps straight
// to the target.
func LinearDampedTowardScalar(alpha, step, target float64) Map {
	damp := math.Max(0, 1-step*alpha)
	return func(u []float64) []float64 {
		out := make([]float64, len(u))
		for i, v := range u {
			out[i] = damp*v + (1-damp)*target
		}
		return out
	}
}

// LogisticClip is the logistic-like map f(u) = u + a*u*(1-u) with the
// result clipped to [-1e6, 1e6] to keep long iterations finite.
func LogisticClip(a float64) Map {
	return func(u []float64) []float64 {
		out := make([]float64, len(u))
		for i, v := range u {
			next := v + a*v*(1-v)
			out[i] = math.Min(math.Max(next, -1e6), 1e6)
		}
		return out
	}
}

// Iterate applies f for steps iterations and returns the final state.
// The input is never modified.
func Iterate(u0 []float64, f Map, steps int) []float64 {
	u := append([]float64(nil), u0...)
	for i := 0; i < steps; i++ {
		u = f(u)
	}
	return u
}

// Trajectory returns all steps+1 states, the initial one included.
func Trajectory(u0 []float64, f Map, steps int) [][]float64 {
	traj := make([][]float64, 0, steps+1)
	u := append([]float64(nil), u0...)
	traj = append(traj, u)
	for i := 0; i < steps; i++ {
		u = f(u)
		traj = append(traj, u)
	}
	return traj
}
