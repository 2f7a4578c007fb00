// Package config carries the solver's tunable parameters and the logging
// hook injected into every component. Nothing here is process-wide state:
// callers construct an Options value and pass it by reference through the
// driver, engine, and factor layers.
package config

// Options bundles every tolerance and limit the core consumes, per the
// external interface in spec §6, plus the internal tunables the engine
// needs that are not exposed at the CLI/file-format boundary.
type Options struct {
	// Presolve toggles the reduction pass before phase-1/phase-2.
	Presolve bool

	// TimeLimit holds a wall-clock budget in seconds (<= 0 for unlimited).
	// The driver and engine do not read it: no time budget is enforced,
	// and a solve is bounded only by IterationLimit.
	TimeLimit float64
	// IterationLimit bounds simplex iterations; <= 0 means unlimited.
	IterationLimit int64

	PrimalFeasibilityTol float64
	DualFeasibilityTol   float64

	InfiniteBound float64
	InfiniteCost  float64

	SmallMatrixValue float64
	LargeMatrixValue float64

	// PivotTol is the Markowitz/threshold pivoting acceptance ratio in (0,1].
	PivotTol float64
	// UpdateLimit bounds the number of product-form updates (k_max) before
	// a refactor is forced.
	UpdateLimit int

	// MipRelGap is the relative optimality gap at which branch-and-bound
	// stops.
	MipRelGap float64
	// MinReliable is the pseudocost sample count at or above which a column's
	// own average is trusted over the global blend (spec §4.5).
	MinReliable int

	// IntegralityTol bounds |x_j - round(x_j)| for x_j to be considered
	// integer-feasible.
	IntegralityTol float64

	// TiesMultiplier mirrors the teacher's Configuration.TiesMultiplier.
	// The factor's Markowitz search does not read it.
	TiesMultiplier int64
	// RefactorCostRatio is the cumulative-update-cost / build-cost
	// threshold past which the factor hints "refactor recommended" (§4.2).
	RefactorCostRatio float64
	// DualObjectiveResyncPeriod holds an iteration period for full dual
	// recomputation (Open Question (b), §9). Nothing reads it: the engine
	// keeps no running dual objective, and reduced costs are recomputed
	// from scratch only after a refactor and at a phase change.
	DualObjectiveResyncPeriod int64

	Logger Logger
}

// Default returns the tolerances used throughout the test suite and the
// teacher's own default thresholds (RelThreshold 0.001 in the teacher
// becomes PivotTol here, scaled to the simplex engine's convention).
func Default() *Options {
	o := &Options{
		Presolve:                  true,
		TimeLimit:                 0,
		IterationLimit:            0,
		PrimalFeasibilityTol:      1e-7,
		DualFeasibilityTol:        1e-7,
		InfiniteBound:             1e20,
		InfiniteCost:              1e20,
		SmallMatrixValue:          1e-9,
		LargeMatrixValue:          1e15,
		PivotTol:                  0.1,
		UpdateLimit:               100,
		MipRelGap:                 1e-4,
		MinReliable:               8,
		IntegralityTol:            1e-6,
		TiesMultiplier:            5,
		RefactorCostRatio:         1.5,
		DualObjectiveResyncPeriod: 1000,
		Logger:                    NopLogger{},
	}
	return o
}

// Logger is the injected logging trait (design note §9): "Global mutable
// options" are replaced by an explicit reference, and logging by an
// interface rather than a package-level logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// NopLogger discards everything; it is the default so the engine is silent
// unless a caller wires in a real logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}

func (o *Options) log() Logger {
	if o == nil || o.Logger == nil {
		return NopLogger{}
	}
	return o.Logger
}

// Debugf logs at debug level through the configured Logger, tolerating a
// nil Options or nil Logger.
func (o *Options) Debugf(format string, args ...any) { o.log().Debugf(format, args...) }

// Infof logs at info level.
func (o *Options) Infof(format string, args ...any) { o.log().Infof(format, args...) }

// Warnf logs at warning level.
func (o *Options) Warnf(format string, args ...any) { o.log().Warnf(format, args...) }
