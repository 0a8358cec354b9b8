package nghs

import "github.com/prometheus/client_golang/prometheus"

// tableCollector adapts a Table's atomic bookkeeping into a
// prometheus.Collector, the natural external surface for the per-level
// counters and capacity/used gauges the table already maintains
// internally for its own invariants.
type tableCollector struct {
	t *Table

	usedDesc     *prometheus.Desc
	capacityDesc *prometheus.Desc
	levelDesc    *prometheus.Desc
	resizeDesc   *prometheus.Desc
}

func newTableCollector(t *Table) *tableCollector {
	return &tableCollector{
		t: t,
		usedDesc: prometheus.NewDesc(
			"nghs_table_used", "Current number of occupied main-table slots (excludes the roommate).", nil, nil),
		capacityDesc: prometheus.NewDesc(
			"nghs_table_capacity", "Current main-table capacity in slots.", nil, nil),
		levelDesc: prometheus.NewDesc(
			"nghs_table_level_count", "Exact live entry count for a given level.", []string{"level"}, nil),
		resizeDesc: prometheus.NewDesc(
			"nghs_table_resize_total", "Number of capacity growths performed so far.", nil, nil),
	}
}

func (c *tableCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usedDesc
	ch <- c.capacityDesc
	ch <- c.levelDesc
	ch <- c.resizeDesc
}

func (c *tableCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.usedDesc, prometheus.GaugeValue, float64(c.t.used.Load()))
	ch <- prometheus.MustNewConstMetric(c.capacityDesc, prometheus.GaugeValue, float64(c.t.capacity.Load()))
	ch <- prometheus.MustNewConstMetric(c.resizeDesc, prometheus.CounterValue, float64(c.t.resizeCount.Load()))
	for level := 1; level <= maxLevel; level++ {
		ch <- prometheus.MustNewConstMetric(
			c.levelDesc, prometheus.GaugeValue,
			float64(c.t.levelCounts[level].Load()),
			levelLabel(level),
		)
	}
}

func levelLabel(level int) string {
	// Small fixed table avoids strconv.Itoa allocation churn on every scrape.
	const digits = "0123456789"
	if level < 10 {
		return digits[level : level+1]
	}
	return digits[level/10:level/10+1] + digits[level%10:level%10+1]
}
