package estimate

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// BPEEstimator counts units with a byte-pair-encoding tokenizer, giving
// exact token counts for models that share the configured encoding. It is
// slower than CharEstimator but removes estimation error on the prompt
// side; the completion side remains unknowable until reconciliation.
type BPEEstimator struct {
	encoding *tiktoken.Tiktoken
}

// NewBPEEstimator creates an estimator backed by the named encoding
// (e.g. "cl100k_base"). Loading the encoding downloads or reads cached
// vocabulary data, so construct once at startup and reuse.
func NewBPEEstimator(encodingName string) (*BPEEstimator, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %q: %w", encodingName, err)
	}
	return &BPEEstimator{encoding: enc}, nil
}

// EstimateUnits implements Estimator.
func (e *BPEEstimator) EstimateUnits(content string) (uint64, error) {
	if content == "" {
		return 0, nil
	}
	tokens := e.encoding.Encode(content, nil, nil)
	if len(tokens) == 0 {
		return 1, nil
	}
	return uint64(len(tokens)), nil
}
