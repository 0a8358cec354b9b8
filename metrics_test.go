package nghs

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCollectorReportsUsedCapacityAndLevelCounts(t *testing.T) {
	tbl := newTestTable(t, 64, WithBucketSize(16))
	tbl.BatchInsert([]KeyLevel{
		{Key: 1, Level: 5},
		{Key: 2, Level: 5},
		{Key: 3, Level: 9},
	})

	ch := make(chan prometheus.Metric, 64)
	collector := tbl.Collector()
	go func() {
		collector.Collect(ch)
		close(ch)
	}()

	var used, capacity float64
	levelCounts := map[string]float64{}
	for m := range ch {
		var pb dto.Metric
		require.NoError(t, m.Write(&pb))
		desc := m.Desc().String()
		switch {
		case strings.Contains(desc, "nghs_table_used"):
			used = gaugeOrCounterValue(&pb)
		case strings.Contains(desc, "nghs_table_capacity"):
			capacity = gaugeOrCounterValue(&pb)
		case strings.Contains(desc, "nghs_table_level_count"):
			for _, lp := range pb.GetLabel() {
				if lp.GetName() == "level" {
					levelCounts[lp.GetValue()] = gaugeOrCounterValue(&pb)
				}
			}
		}
	}

	require.Equal(t, float64(3), used)
	require.Equal(t, float64(64), capacity)
	require.Equal(t, float64(2), levelCounts["5"])
	require.Equal(t, float64(1), levelCounts["9"])
}

func gaugeOrCounterValue(pb *dto.Metric) float64 {
	if g := pb.GetGauge(); g != nil {
		return g.GetValue()
	}
	if c := pb.GetCounter(); c != nil {
		return c.GetValue()
	}
	return 0
}
