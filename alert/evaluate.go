// Package alert derives outbreak alerts from decrypted period aggregates.
package alert

// Result indicates which alerts fire for a finalized period.
type Result struct {
	SymptomAlert  bool `json:"symptom_alert"`
	ExposureAlert bool `json:"exposure_alert"`
}

// Evaluate compares decrypted aggregates against thresholds. Strictly
// greater-than: an aggregate equal to its threshold does not fire.
func Evaluate(symptomTotal, exposureTotal, symptomThreshold, exposureThreshold uint64) Result {
	return Result{
		SymptomAlert:  symptomTotal > symptomThreshold,
		ExposureAlert: exposureTotal > exposureThreshold,
	}
}
