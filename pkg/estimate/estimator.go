package estimate

// Estimator converts request content into abstract usage units, the
// currency the usage-budget dimension is accounted in. Implementations
// must be cheap, deterministic, and safe for concurrent use; they are
// called on the admission path for every request.
//
// An estimate is a stand-in for real downstream cost, not an exact
// accounting of it. The budget reconciles against actual usage after the
// downstream call completes.
type Estimator interface {
	// EstimateUnits returns the estimated unit cost of the given content.
	// Non-empty content always costs at least one unit.
	EstimateUnits(content string) (uint64, error)
}
