package estimate

import "testing"

func TestCharEstimator_Basic(t *testing.T) {
	e := NewCharEstimator(4.0)

	cases := []struct {
		content string
		want    uint64
	}{
		{"", 0},
		{"x", 1},          // non-empty floors at 1
		{"abcd", 1},       // 4 chars / 4.0
		{"abcdefgh", 2},   // 8 / 4.0
		{"abcdefghij", 3}, // 10 / 4.0 = 2.5, rounds up
	}

	for _, tc := range cases {
		got, err := e.EstimateUnits(tc.content)
		if err != nil {
			t.Fatalf("EstimateUnits(%q): unexpected error %v", tc.content, err)
		}
		if got != tc.want {
			t.Errorf("EstimateUnits(%q) = %d, want %d", tc.content, got, tc.want)
		}
	}
}

func TestCharEstimator_Deterministic(t *testing.T) {
	e := NewCharEstimator(3.5)
	content := "the same prompt, estimated twice"

	a, _ := e.EstimateUnits(content)
	b, _ := e.EstimateUnits(content)
	if a != b {
		t.Errorf("estimator is not deterministic: %d vs %d", a, b)
	}
}

func TestCharEstimator_InvalidRatioFallsBack(t *testing.T) {
	e := NewCharEstimator(-1)

	got, _ := e.EstimateUnits("abcdefgh")
	if got != 2 {
		t.Errorf("fallback ratio should be 4.0: got %d units for 8 chars", got)
	}
}
