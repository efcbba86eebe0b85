package service

import (
	"fmt"
	"regexp"
	"strconv"
)

// Phase is the slice of the 0..100 range one download step reports into.
type Phase struct {
	Start   int
	Ceiling int
	Step    int // increment per output line for line-based estimation
}

// Phases used by the two workflows.
var (
	AudioPhase      = Phase{Start: 0, Ceiling: 90, Step: 10}
	VideoPhase      = Phase{Start: 10, Ceiling: 40, Step: 5}
	AudioTrackPhase = Phase{Start: 45, Ceiling: 80, Step: 5}
)

const (
	StrategyLines   = "lines"
	StrategyPercent = "percent"
)

// ProgressEstimator maps one line of tool output to a progress value.
// ok is false when the line carries no progress information.
type ProgressEstimator interface {
	Estimate(phase Phase, current int, line string) (next int, ok bool)
}

// NewEstimator returns the estimator registered under name.
func NewEstimator(name string) (ProgressEstimator, error) {
	switch name {
	case "", StrategyLines:
		return LineStep{}, nil
	case StrategyPercent:
		return PercentParse{}, nil
	default:
		return nil, fmt.Errorf("unknown progress strategy %q", name)
	}
}

// LineStep advances by the phase step for every line, capped at the ceiling.
type LineStep struct{}

func (LineStep) Estimate(phase Phase, current int, _ string) (int, bool) {
	next := current + phase.Step
	if next > phase.Ceiling {
		next = phase.Ceiling
	}
	return next, true
}

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)

// PercentParse reads the first "NN.N%" token of a line and scales it into
// the phase's Start..Ceiling range.
type PercentParse struct{}

func (PercentParse) Estimate(phase Phase, _ int, line string) (int, bool) {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct > 100 {
		return 0, false
	}
	span := float64(phase.Ceiling - phase.Start)
	return phase.Start + int(pct*span/100), true
}
