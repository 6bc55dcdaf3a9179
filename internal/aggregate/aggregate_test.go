package aggregate

import (
	"math"
	"testing"

	"episkopos/internal/plugin"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12
}

func reduce(t *testing.T, factory plugin.AggregatorFactory, p plugin.Params, values []float64) float64 {
	t.Helper()
	agg, err := factory(p)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	return agg.Reduce(values)
}

func TestMeanBasic(t *testing.T) {
	if got := reduce(t, NewMean, nil, []float64{1, 2, 3}); got != 2 {
		t.Fatalf("mean: got %v", got)
	}
}

func TestMeanEmptyIsNaN(t *testing.T) {
	if got := reduce(t, NewMean, nil, nil); !math.IsNaN(got) {
		t.Fatalf("expected NaN for empty sample, got %v", got)
	}
}

func TestMeanOmitsNonFinite(t *testing.T) {
	values := []float64{1, math.NaN(), 3, math.Inf(1)}
	if got := reduce(t, NewMean, nil, values); got != 2 {
		t.Fatalf("omit policy should drop non-finite values, got %v", got)
	}
}

func TestMeanPropagatesWhenPolicyKeeps(t *testing.T) {
	p := plugin.Params{"nan_policy": "propagate"}
	values := []float64{1, math.NaN(), 3}
	if got := reduce(t, NewMean, p, values); !math.IsNaN(got) {
		t.Fatalf("propagate policy should keep NaN, got %v", got)
	}
}

func TestMedianOddAndEven(t *testing.T) {
	if got := reduce(t, NewMedian, nil, []float64{3, 1, 2}); got != 2 {
		t.Fatalf("odd median: got %v", got)
	}
	if got := reduce(t, NewMedian, nil, []float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("even median: got %v", got)
	}
}

func TestMedianSingle(t *testing.T) {
	if got := reduce(t, NewMedian, nil, []float64{7}); got != 7 {
		t.Fatalf("single median: got %v", got)
	}
}

func TestMedianPropagatesNaN(t *testing.T) {
	p := plugin.Params{"nan_policy": "propagate"}
	values := []float64{1, 2, math.NaN()}
	if got := reduce(t, NewMedian, p, values); !math.IsNaN(got) {
		t.Fatalf("median with kept NaN should be NaN, got %v", got)
	}
}

func TestTrimmedDropsTails(t *testing.T) {
	p := plugin.Params{"trim_ratio": 0.2}
	values := []float64{10, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	// k = 2, keeps 3..8.
	if got := reduce(t, NewTrimmedMean, p, values); got != 5.5 {
		t.Fatalf("trimmed: got %v", got)
	}
}

func TestTrimmedRoundsHalfToEven(t *testing.T) {
	p := plugin.Params{"trim_ratio": 0.25}
	values := []float64{0, 0, 1, 4, 4, 4, 4, 9, 9, 9}
	// 0.25 * 10 = 2.5 rounds to k = 2, not 3.
	want := 26.0 / 6.0
	if got := reduce(t, NewTrimmedMean, p, values); !almost(got, want) {
		t.Fatalf("trimmed: got %v want %v", got, want)
	}
}

func TestTrimmedFullTrimFallsBackToMean(t *testing.T) {
	p := plugin.Params{"trim_ratio": 0.5}
	if got := reduce(t, NewTrimmedMean, p, []float64{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("expected plain mean fallback, got %v", got)
	}
}

func TestTrimmedRatioClamped(t *testing.T) {
	p := plugin.Params{"trim_ratio": -0.3}
	if got := reduce(t, NewTrimmedMean, p, []float64{1, 2, 3}); got != 2 {
		t.Fatalf("negative ratio should clamp to zero trim, got %v", got)
	}

	p = plugin.Params{"trim_ratio": math.NaN()}
	if got := reduce(t, NewTrimmedMean, p, []float64{1, 2, 3}); got != 2 {
		t.Fatalf("non-finite ratio should clamp to zero trim, got %v", got)
	}
}

func TestSortedWeightedUniformByDefault(t *testing.T) {
	if got := reduce(t, NewSortedWeighted, nil, []float64{2, 4, 6}); !almost(got, 4) {
		t.Fatalf("uniform weights should give the mean, got %v", got)
	}
}

func TestSortedWeightedOrdersBeforeWeighting(t *testing.T) {
	p := plugin.Params{"weights": []any{0.0, 0.0, 1.0}}
	// All mass on the last position selects the maximum.
	if got := reduce(t, NewSortedWeighted, p, []float64{5, 1, 3}); got != 5 {
		t.Fatalf("expected the maximum, got %v", got)
	}
}

func TestSortedWeightedStretchesProfile(t *testing.T) {
	p := plugin.Params{"weights": []any{1.0, 0.0}}
	// Profile [1, 0] over three positions becomes [1, 0.5, 0],
	// normalized to [2/3, 1/3, 0].
	want := 1*(2.0/3.0) + 2*(1.0/3.0)
	if got := reduce(t, NewSortedWeighted, p, []float64{3, 1, 2}); !almost(got, want) {
		t.Fatalf("stretched profile: got %v want %v", got, want)
	}
}

func TestSortedWeightedSingleWeightExtends(t *testing.T) {
	p := plugin.Params{"weights": []any{2.0}}
	if got := reduce(t, NewSortedWeighted, p, []float64{3, 6, 9}); !almost(got, 6) {
		t.Fatalf("constant profile should give the mean, got %v", got)
	}
}

func TestSortedWeightedClipsNegatives(t *testing.T) {
	p := plugin.Params{"weights": []any{-1.0, 1.0}}
	if got := reduce(t, NewSortedWeighted, p, []float64{10, 2}); got != 10 {
		t.Fatalf("negative weight should clip to zero, got %v", got)
	}
}

func TestSortedWeightedZeroSumFallsBackToUniform(t *testing.T) {
	p := plugin.Params{"weights": []any{0.0, 0.0}}
	if got := reduce(t, NewSortedWeighted, p, []float64{2, 4}); !almost(got, 3) {
		t.Fatalf("zero-sum profile should fall back to uniform, got %v", got)
	}
}

func TestRegisterSeedsAllBuiltins(t *testing.T) {
	r := plugin.NewRegistry()
	Register(r)

	want := []string{"mean", "median", "sorted_weighted", "trimmed"}
	got := r.Aggregators()
	if len(got) != len(want) {
		t.Fatalf("unexpected aggregator list: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected aggregator list: %+v", got)
		}
	}
}

func TestBuiltinsStayWithinSampleBounds(t *testing.T) {
	r := plugin.NewRegistry()
	Register(r)

	values := []float64{-3, 0.5, 1, 2, 8, -1, 4, 4, 2.5, 0}
	lo, hi := -3.0, 8.0
	for _, name := range r.Aggregators() {
		agg, err := r.NewAggregator(name, nil)
		if err != nil {
			t.Fatalf("construct %s: %v", name, err)
		}
		got := agg.Reduce(values)
		if got < lo || got > hi {
			t.Fatalf("%s: %v outside sample bounds [%v, %v]", name, got, lo, hi)
		}
	}
}

func TestBuiltinsEmptyAfterCleaningIsNaN(t *testing.T) {
	r := plugin.NewRegistry()
	Register(r)

	values := []float64{math.NaN(), math.Inf(-1)}
	for _, name := range r.Aggregators() {
		agg, err := r.NewAggregator(name, nil)
		if err != nil {
			t.Fatalf("construct %s: %v", name, err)
		}
		if got := agg.Reduce(values); !math.IsNaN(got) {
			t.Fatalf("%s: expected NaN for fully cleaned sample, got %v", name, got)
		}
	}
}
