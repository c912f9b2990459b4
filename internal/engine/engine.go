// Package engine is the pure evaluation core: an ordered bar window plus
// the prior state in, a full evaluation out. No I/O happens here; callers
// own window assembly, state storage and publication.
package engine

import (
	"errors"
	"fmt"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/engine/indicator"
	"TrendPull/internal/engine/score"
	"TrendPull/internal/engine/signal"
	"TrendPull/internal/engine/state"
)

// ErrStaleBar marks an evaluation for a bar sequence the state has
// already moved past.
var ErrStaleBar = errors.New("stale bar sequence")

// EvaluateWindow runs one full evaluation over the window, whose last bar
// is the bar under evaluation. prev is nil for a fresh series. A window
// shorter than the history floor yields an Insufficient evaluation with
// no signals and an indeterminate state.
func EvaluateWindow(bars []models.Bar, prev *models.EngineState, cfg signal.Config) (models.Evaluation, error) {
	if len(bars) == 0 {
		return models.Evaluation{}, fmt.Errorf("engine: empty bar window")
	}
	last := bars[len(bars)-1]
	if err := last.Validate(); err != nil {
		return models.Evaluation{}, err
	}
	if prev != nil && last.Seq <= prev.LastSeq && last.Seq != 0 {
		return models.Evaluation{}, ErrStaleBar
	}
	if prev != nil && last.Timestamp.Before(prev.LastTimestamp) {
		return models.Evaluation{}, fmt.Errorf("engine: non-monotonic bar timestamp for %s", last.Key())
	}

	ev := models.Evaluation{Key: last.Key(), Bar: last}

	ind, series, err := indicator.Compute(bars)
	if errors.Is(err, indicator.ErrInsufficientHistory) {
		ev.Insufficient = true
		st := models.EngineState{Key: last.Key(), State: models.StateIndeterminate}
		if prev != nil {
			st = *prev
		}
		st.LastSeq = last.Seq
		st.LastTimestamp = last.Timestamp
		ev.State = st
		return ev, nil
	}
	if err != nil {
		return models.Evaluation{}, err
	}

	var st models.EngineState
	switch {
	case prev == nil, state.NeedsRebootstrap(*prev):
		st = state.Bootstrap(last, ind, last.Key())
	default:
		st = state.Apply(*prev, last, ind)
	}

	res := score.Compute(series, ind, st)
	ev.Flags = signal.Generate(ind, &st, res, cfg)
	ev.Scores = res.Scores
	ev.State = st
	return ev, nil
}
