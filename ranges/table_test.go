package ranges_test

import (
	stdErrors "errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/errors"
	"github.com/tidepool-org/cardiac/ranges"
)

var _ = Describe("Table", func() {
	writeFile := func(body string) string {
		path := filepath.Join(GinkgoT().TempDir(), "ranges.yaml")
		Expect(os.WriteFile(path, []byte(body), 0600)).To(Succeed())
		return path
	}

	It("loads the default table", func() {
		table, err := ranges.DefaultTable()
		Expect(err).ToNot(HaveOccurred())
		Expect(table).To(HaveKey(ranges.MetricRestingHeartRate))
		Expect(table).To(HaveKey(ranges.MetricHeartRate))
		Expect(table).To(HaveKey(ranges.MetricHRVRMSSD))
		Expect(ranges.Classify(ranges.MetricRestingHeartRate, 85, table)).To(Equal(ranges.TierNormal))
		Expect(ranges.Classify(ranges.MetricRestingHeartRate, 45, table)).To(Equal(ranges.TierCritical))
	})

	It("returns the default table without an override", func() {
		table, err := ranges.Load("")
		Expect(err).ToNot(HaveOccurred())
		Expect(table[ranges.MetricRestingHeartRate].Normal).To(Equal([]ranges.Interval{{Min: 60, Max: 100}}))
	})

	It("replaces overridden tiers and keeps the rest", func() {
		path := writeFile(`
resting_heart_rate:
  normal: [[55, 95]]
respiratory_rate:
  normal: [[12, 20]]
  warning: [[20, 25]]
`)
		table, err := ranges.Load(path)
		Expect(err).ToNot(HaveOccurred())

		Expect(table[ranges.MetricRestingHeartRate].Normal).To(Equal([]ranges.Interval{{Min: 55, Max: 95}}))
		Expect(table[ranges.MetricRestingHeartRate].Critical).To(Equal([]ranges.Interval{{Min: 0, Max: 50}, {Min: 120, Max: 300}}))
		Expect(table).To(HaveKey(ranges.MetricType("respiratory_rate")))
		Expect(table).To(HaveKey(ranges.MetricSpO2))
	})

	It("fails when the override file is missing", func() {
		_, err := ranges.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("rejects malformed tables",
		func(body string) {
			_, err := ranges.Parse([]byte(body))
			Expect(err).To(MatchError(ranges.ErrConfiguration))
			Expect(stdErrors.Is(err, errors.BadRequest)).To(BeTrue())
		},
		Entry("inverted interval", "heart_rate:\n  normal: [[100, 60]]\n"),
		Entry("single bound", "heart_rate:\n  normal: [[60]]\n"),
		Entry("unknown tier", "heart_rate:\n  severe: [[0, 10]]\n"),
		Entry("metric without intervals", "heart_rate: {}\n"),
		Entry("empty document", "{}\n"),
		Entry("non numeric bound", "heart_rate:\n  normal: [[low, 60]]\n"),
	)

	It("loads a complete table file", func() {
		path := writeFile("spo2:\n  normal: [[92, 100]]\n")
		table, err := ranges.LoadFile(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(table).To(HaveLen(1))
	})
})

var _ = Describe("Classifier", func() {
	var classifier *ranges.Classifier

	BeforeEach(func() {
		table, err := ranges.DefaultTable()
		Expect(err).ToNot(HaveOccurred())
		classifier, err = ranges.NewClassifier(table, zap.NewNop().Sugar())
		Expect(err).ToNot(HaveOccurred())
	})

	It("classifies with the current table", func() {
		Expect(classifier.Classify(ranges.MetricRestingHeartRate, 110)).To(Equal(ranges.TierWarning))
		Expect(classifier.NormalRange(ranges.MetricRestingHeartRate)).To(Equal("60-100"))
	})

	It("hands out copies of the table", func() {
		snapshot := classifier.Table()
		snapshot[ranges.MetricRestingHeartRate] = ranges.Ranges{Normal: []ranges.Interval{{Min: 0, Max: 300}}}
		Expect(classifier.Classify(ranges.MetricRestingHeartRate, 45)).To(Equal(ranges.TierCritical))
	})

	It("replaces the table", func() {
		Expect(classifier.Replace(ranges.Table{
			ranges.MetricRestingHeartRate: {Normal: []ranges.Interval{{Min: 40, Max: 110}}},
		})).To(Succeed())
		Expect(classifier.Classify(ranges.MetricRestingHeartRate, 45)).To(Equal(ranges.TierNormal))
		Expect(classifier.Classify(ranges.MetricHeartRate, 45)).To(Equal(ranges.TierUnclassified))
	})

	It("keeps the current table when the replacement is invalid", func() {
		Expect(classifier.Replace(ranges.Table{})).To(MatchError(ranges.ErrConfiguration))
		Expect(classifier.Classify(ranges.MetricRestingHeartRate, 45)).To(Equal(ranges.TierCritical))
	})
})
