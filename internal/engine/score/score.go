package score

import (
	"TrendPull/internal/domain/models"
)

// Result carries the published ScoreSet plus intermediates the signal
// layer needs but downstream consumers do not.
type Result struct {
	Scores  models.ScoreSet
	BandPos float64
	SR      []float64
}

// Compute builds every score applicable to the post-transition state.
// Scores outside their state scope stay zero.
func Compute(s *models.IndicatorSeries, ind models.IndicatorSet, st models.EngineState) Result {
	r := Result{SR: SRLevels(s)}
	r.Scores.TS = TrendStrength(ind)

	switch st.State {
	case models.StateUnconfirmed:
		r.Scores.OX = Overextension(s, ind)
	case models.StateConfirmed:
		r.Scores.OX = Overextension(s, ind)
		r.Scores.DX, r.BandPos = Discount(s, ind)
		r.Scores.EDX = Decay(s, st.S3BarCount)
	}
	return r
}
