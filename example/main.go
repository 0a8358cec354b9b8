// Command example demonstrates the nghs table: construct, batch-insert a
// vertex's neighbors tagged with a pseudo-random level, fetch them back by
// level, delete a subset, and serve the table's Prometheus metrics over
// HTTP while it runs.
package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mrdotrue/hash-nghs"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	table, err := nghs.NewTable(1024, nghs.WithLogger(logger))
	if err != nil {
		logger.Fatal("construct table", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(table.Collector())
	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logger.Info("serving metrics", zap.String("addr", ":2112"))
		_ = http.ListenAndServe(":2112", nil)
	}()

	const n = 1 << 16
	pairs := make([]nghs.KeyLevel, 0, n)
	for i := uint32(0); i < n; i++ {
		if i%2 != 1 {
			continue
		}
		level := (nghs.SplitMixHasher32{}.Hash32(i) % 31) + 2
		pairs = append(pairs, nghs.KeyLevel{Key: i, Level: level})
	}
	table.BatchInsert(pairs)
	fmt.Printf("inserted %d neighbors, table size = %d\n", len(pairs), table.Size())

	for level := uint32(2); level <= 32; level++ {
		got := table.Fetch(n, level)
		fmt.Printf("level %2d: %d neighbors\n", level, len(got))
	}

	toDelete := make([]uint32, 0, len(pairs)/3)
	for _, p := range pairs {
		if p.Key%3 == 0 {
			toDelete = append(toDelete, p.Key)
		}
	}
	table.BatchDelete(toDelete)
	fmt.Printf("deleted %d neighbors, table size = %d\n", len(toDelete), table.Size())
}
