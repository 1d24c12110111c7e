package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("funcwarn/cache")

var (
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	cacheExtractions metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the counters on first use. Until a meter provider is
// installed globally they are no-ops.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"funcwarn.cache.hits",
			metric.WithDescription("Extraction cache lookups answered from a stored entry"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"funcwarn.cache.misses",
			metric.WithDescription("Extraction cache lookups with no entry for the content"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheExtractions, err = meter.Int64Counter(
			"funcwarn.cache.extractions",
			metric.WithDescription("Files parsed by the extractor"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordHit(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1)
}

func recordMiss(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordExtraction(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheExtractions.Add(ctx, 1)
}
