package embedder

import (
	"time"

	"media-embedder/internal/database"
	"media-embedder/internal/ebml"
	"media-embedder/internal/logging"
	"media-embedder/internal/metrics"
)

// Reporter receives pipeline events. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Started(res *Result)
	CacheLookup(ns database.Namespace, hit bool)
	Escalated(res *Result, from, to int64, cause error)
	TitleScanned(res *Result, info ebml.Info)
	StorageFailed(res *Result, ns database.Namespace, op string, err error)
	Completed(res *Result, elapsed time.Duration)
	Failed(res *Result, err error, elapsed time.Duration)
}

// NewReporter returns the logging and Prometheus reporter.
func NewReporter() Reporter {
	return logReporter{}
}

type logReporter struct{}

func (logReporter) Started(res *Result) {
	metrics.EmbedsInFlight.Inc()
	logging.Debug("embed %s: start %s", res.AttemptID, res.URL)
}

func (logReporter) CacheLookup(ns database.Namespace, hit bool) {
	metrics.CacheLookupResult(ns.Name, hit)
}

func (logReporter) Escalated(res *Result, from, to int64, cause error) {
	metrics.EmbedEscalations.Inc()
	logging.Info("embed %s: %s failed at %d bytes, retrying with %d: %v", res.AttemptID, res.URL, from, to, cause)
}

func (logReporter) TitleScanned(res *Result, info ebml.Info) {
	switch {
	case info.Found:
		metrics.TitleScansTotal.WithLabelValues("found").Inc()
		logging.Debug("embed %s: title %q", res.AttemptID, info.Title)
	case info.Truncated:
		metrics.TitleScansTotal.WithLabelValues("truncated").Inc()
		logging.Debug("embed %s: title scan hit end of data, a larger prefix may contain it", res.AttemptID)
	default:
		metrics.TitleScansTotal.WithLabelValues("absent").Inc()
	}
}

func (logReporter) StorageFailed(res *Result, ns database.Namespace, op string, err error) {
	metrics.CacheStorageErrors.WithLabelValues(ns.Name, op).Inc()
	logging.Warn("embed %s: cache %s %s for %s failed: %v", res.AttemptID, op, ns, res.URL, err)
}

func (logReporter) Completed(res *Result, elapsed time.Duration) {
	metrics.EmbedsInFlight.Dec()
	outcome := "embedded"
	if res.CacheHit {
		outcome = "cache_hit"
	}
	metrics.EmbedsTotal.WithLabelValues(outcome).Inc()
	metrics.EmbedDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	logging.Info("embed %s: %s %s in %v (attempts: %d, title: %q)",
		res.AttemptID, outcome, res.URL, elapsed.Round(time.Millisecond), res.Attempts, res.Title)
}

func (logReporter) Failed(res *Result, err error, elapsed time.Duration) {
	metrics.EmbedsInFlight.Dec()
	reason := FailureReason(err)
	metrics.EmbedsTotal.WithLabelValues("failed").Inc()
	metrics.EmbedFailures.WithLabelValues(reason).Inc()
	metrics.EmbedDuration.WithLabelValues("failed").Observe(elapsed.Seconds())
	logging.Warn("embed %s: failed %s after %d attempt(s) (%s): %v",
		res.AttemptID, res.URL, res.Attempts, reason, err)
}
