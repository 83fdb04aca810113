package alert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name                   string
		symptomTotal           uint64
		exposureTotal          uint64
		symptomThreshold       uint64
		exposureThreshold      uint64
		wantSymptom, wantExpos bool
	}{
		{"both below", 8, 3, 50, 30, false, false},
		{"both above", 51, 31, 50, 30, true, true},
		{"equal does not fire", 50, 30, 50, 30, false, false},
		{"one above threshold", 51, 30, 50, 30, true, false},
		{"exposure only", 50, 31, 50, 30, false, true},
		{"zero totals", 0, 0, 0, 0, false, false},
		{"zero thresholds fire on any positive", 1, 1, 0, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.symptomTotal, tt.exposureTotal, tt.symptomThreshold, tt.exposureThreshold)
			require.Equal(t, tt.wantSymptom, got.SymptomAlert)
			require.Equal(t, tt.wantExpos, got.ExposureAlert)
		})
	}
}
