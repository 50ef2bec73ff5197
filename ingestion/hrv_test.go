package ingestion_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tidepool-org/cardiac/ingestion"
)

var _ = Describe("RmssdEstimator", func() {
	estimator := ingestion.RmssdEstimator{}

	It("requires at least three observations", func() {
		_, _, ok := estimator.Estimate([]float64{60, 70})
		Expect(ok).To(BeFalse())
	})

	It("ignores non positive values", func() {
		_, _, ok := estimator.Estimate([]float64{60, 0, -1, 70})
		Expect(ok).To(BeFalse())
	})

	It("is zero for a constant heart rate", func() {
		value, _, ok := estimator.Estimate([]float64{60, 60, 60, 60})
		Expect(ok).To(BeTrue())
		Expect(value).To(BeZero())
	})

	It("computes the root mean square of successive interval differences", func() {
		// 60 bpm and 50 bpm correspond to 1000ms and 1200ms beat intervals
		value, confidence, ok := estimator.Estimate([]float64{60, 50, 60})
		Expect(ok).To(BeTrue())
		Expect(value).To(BeNumerically("~", 200, 0.0001))
		Expect(confidence).To(BeNumerically("~", 3.0/1440, 0.0001))
	})

	It("caps confidence at one", func() {
		series := make([]float64, 2000)
		for i := range series {
			series[i] = 60 + 10*math.Sin(float64(i))
		}
		_, confidence, ok := estimator.Estimate(series)
		Expect(ok).To(BeTrue())
		Expect(confidence).To(Equal(1.0))
	})

	It("reports its calculation method", func() {
		Expect(estimator.Method()).To(Equal(ingestion.MethodRmssdHeartRateDiff))
	})
})
