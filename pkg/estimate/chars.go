package estimate

// CharEstimator estimates units from content length using a fixed
// characters-per-unit ratio. At the default ratio of 4 characters per unit
// this tracks typical LLM tokenization within a few percent, which is
// accurate enough for budget admission; it is explicitly an approximation.
type CharEstimator struct {
	charsPerUnit float64
}

// NewCharEstimator creates a length-proportional estimator. A
// non-positive ratio falls back to 4.0.
func NewCharEstimator(charsPerUnit float64) *CharEstimator {
	if charsPerUnit <= 0 {
		charsPerUnit = 4.0
	}
	return &CharEstimator{charsPerUnit: charsPerUnit}
}

// EstimateUnits implements Estimator. It never fails.
func (e *CharEstimator) EstimateUnits(content string) (uint64, error) {
	if content == "" {
		return 0, nil
	}

	units := float64(len(content)) / e.charsPerUnit
	if units < 1.0 {
		return 1, nil
	}
	return uint64(units + 0.5), nil
}
