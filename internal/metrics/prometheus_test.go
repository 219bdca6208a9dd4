package metrics_test

import (
	"github.com/prometheus/client_golang/prometheus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"watchtower/internal/metrics"
)

var _ = Describe("Collector", func() {
	hasCheckSeries := func(checkID string) bool {
		families, err := prometheus.DefaultGatherer.Gather()
		ExpectWithOffset(1, err).NotTo(HaveOccurred())

		for _, family := range families {
			if family.GetName() != "watchtower_check_state" {
				continue
			}
			for _, metric := range family.GetMetric() {
				for _, label := range metric.GetLabel() {
					if label.GetName() == "check" && label.GetValue() == checkID {
						return true
					}
				}
			}
		}
		return false
	}

	It("should expose a per-check state series once recorded", func() {
		collector := metrics.NewCollector()
		collector.UpdateCheckState("seriescheck0123456ab", "up")
		Expect(hasCheckSeries("seriescheck0123456ab")).To(BeTrue())
	})

	It("should drop the series when the check is removed", func() {
		collector := metrics.NewCollector()
		collector.UpdateCheckState("removedcheck01234abc", "down")
		Expect(hasCheckSeries("removedcheck01234abc")).To(BeTrue())

		collector.RemoveCheckState("removedcheck01234abc")
		Expect(hasCheckSeries("removedcheck01234abc")).To(BeFalse())
	})
})
