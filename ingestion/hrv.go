package ingestion

import (
	"math"
)

const (
	MethodRmssdHeartRateDiff = "rmssd_hr_diff"

	minHRVObservations = 3
	minutesPerDay      = 24 * 60
)

// HRVEstimator derives an HRV value in milliseconds from a day of heart rate observations
// along with a confidence in [0, 1]. It returns false when the series is too short.
type HRVEstimator interface {
	Method() string
	Estimate(heartRates []float64) (value float64, confidence float64, ok bool)
}

// RmssdEstimator approximates RMSSD from the beat intervals implied by successive heart rate observations
type RmssdEstimator struct{}

func (RmssdEstimator) Method() string {
	return MethodRmssdHeartRateDiff
}

func (RmssdEstimator) Estimate(heartRates []float64) (float64, float64, bool) {
	intervals := make([]float64, 0, len(heartRates))
	for _, hr := range heartRates {
		if hr > 0 {
			intervals = append(intervals, 60000/hr)
		}
	}
	if len(intervals) < minHRVObservations {
		return 0, 0, false
	}

	var sum float64
	for i := 1; i < len(intervals); i++ {
		diff := intervals[i] - intervals[i-1]
		sum += diff * diff
	}
	rmssd := math.Sqrt(sum / float64(len(intervals)-1))
	confidence := math.Min(1, float64(len(intervals))/minutesPerDay)
	return rmssd, confidence, true
}
