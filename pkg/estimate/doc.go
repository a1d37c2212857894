// Package estimate provides pluggable unit estimation for the usage
// budget: a fast length-proportional approximation and an exact BPE
// tokenizer. The admission facade depends only on the Estimator
// interface, so the strategy can be swapped without touching the budget's
// atomic-update logic.
package estimate
