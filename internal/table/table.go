// Package table holds the canonical per-round result schema shared by
// the engine, backends, writers, and storage.
package table

import (
	"math"
	"sort"
)

// Columns is the canonical output column order for run tables.
var Columns = []string{
	"repeat", "round", "N",
	"aggregator", "mechanism", "signal",
	"alpha", "pi",
	"monitoring_value", "gain_proxy", "cost_proxy", "utility_delta",
	"signal_mean", "signal_std", "state_mean", "state_std",
}

// ExperimentColumn prefixes combined sweep tables.
const ExperimentColumn = "experiment"

// Row is one round of one repeat. The experiment label stays empty for
// single runs and names the sweep point in combined tables.
type Row struct {
	Experiment      string  `yaml:"experiment,omitempty" json:"experiment,omitempty"`
	Repeat          int     `yaml:"repeat" json:"repeat"`
	Round           int     `yaml:"round" json:"round"`
	N               int     `yaml:"N" json:"N"`
	Aggregator      string  `yaml:"aggregator" json:"aggregator"`
	Mechanism       string  `yaml:"mechanism" json:"mechanism"`
	Signal          string  `yaml:"signal" json:"signal"`
	Alpha           float64 `yaml:"alpha" json:"alpha"`
	Pi              float64 `yaml:"pi" json:"pi"`
	MonitoringValue float64 `yaml:"monitoring_value" json:"monitoring_value"`
	GainProxy       float64 `yaml:"gain_proxy" json:"gain_proxy"`
	CostProxy       float64 `yaml:"cost_proxy" json:"cost_proxy"`
	UtilityDelta    float64 `yaml:"utility_delta" json:"utility_delta"`
	SignalMean      float64 `yaml:"signal_mean" json:"signal_mean"`
	SignalStd       float64 `yaml:"signal_std" json:"signal_std"`
	StateMean       float64 `yaml:"state_mean" json:"state_mean"`
	StateStd        float64 `yaml:"state_std" json:"state_std"`
}

// Table is an ordered set of rows.
type Table struct {
	Rows []Row
}

// New takes ownership of rows and sorts them into canonical order:
// experiment, then repeat, then round.
func New(rows []Row) *Table {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Experiment != b.Experiment {
			return a.Experiment < b.Experiment
		}
		if a.Repeat != b.Repeat {
			return a.Repeat < b.Repeat
		}
		return a.Round < b.Round
	})
	return &Table{Rows: rows}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasExperiment reports whether any row carries an experiment label,
// which decides whether writers emit the experiment column.
func (t *Table) HasExperiment() bool {
	for _, row := range t.Rows {
		if row.Experiment != "" {
			return true
		}
	}
	return false
}

// Value returns the named float column of a row. The second result is
// false for names that are not float columns.
func Value(r Row, column string) (float64, bool) {
	switch column {
	case "alpha":
		return r.Alpha, true
	case "pi":
		return r.Pi, true
	case "monitoring_value":
		return r.MonitoringValue, true
	case "gain_proxy":
		return r.GainProxy, true
	case "cost_proxy":
		return r.CostProxy, true
	case "utility_delta":
		return r.UtilityDelta, true
	case "signal_mean":
		return r.SignalMean, true
	case "signal_std":
		return r.SignalStd, true
	case "state_mean":
		return r.StateMean, true
	case "state_std":
		return r.StateStd, true
	default:
		return 0, false
	}
}

// Equal compares tables row by row. Float fields treat NaN as equal to
// NaN so deterministic replays compare clean.
func Equal(a, b *Table) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Rows {
		if !rowEqual(a.Rows[i], b.Rows[i]) {
			return false
		}
	}
	return true
}

func rowEqual(a, b Row) bool {
	if a.Experiment != b.Experiment || a.Repeat != b.Repeat || a.Round != b.Round || a.N != b.N {
		return false
	}
	if a.Aggregator != b.Aggregator || a.Mechanism != b.Mechanism || a.Signal != b.Signal {
		return false
	}
	pairs := [...][2]float64{
		{a.Alpha, b.Alpha},
		{a.Pi, b.Pi},
		{a.MonitoringValue, b.MonitoringValue},
		{a.GainProxy, b.GainProxy},
		{a.CostProxy, b.CostProxy},
		{a.UtilityDelta, b.UtilityDelta},
		{a.SignalMean, b.SignalMean},
		{a.SignalStd, b.SignalStd},
		{a.StateMean, b.StateMean},
		{a.StateStd, b.StateStd},
	}
	for _, p := range pairs {
		if !floatEqual(p[0], p[1]) {
			return false
		}
	}
	return true
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}
