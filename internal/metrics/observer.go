package metrics

import "media-embedder/internal/fetcher"

// fetchObserver implements fetcher.Observer using the Prometheus
// metrics declared in this package.
type fetchObserver struct{}

// NewFetchObserver creates an observer that records range fetch metrics
// into the Prometheus counters and histograms declared in metrics.go.
func NewFetchObserver() fetcher.Observer {
	return &fetchObserver{}
}

func (o *fetchObserver) ObserveFetch(budget, status string, bytes int64, durationSeconds float64) {
	FetchRequestsTotal.WithLabelValues(budget, status).Inc()
	FetchDuration.WithLabelValues(budget).Observe(durationSeconds)
	if bytes > 0 {
		FetchBytes.WithLabelValues(budget).Observe(float64(bytes))
	}
}
