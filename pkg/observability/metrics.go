package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "vcsmeta.requests.total"
	metricRequestDuration  = "vcsmeta.request.duration.seconds"
	metricErrorsTotal      = "vcsmeta.errors.total"
	metricInflightRequests = "vcsmeta.inflight.requests"
	metricFilesListed      = "vcsmeta.listing.files.total"
	metricFilesSkipped     = "vcsmeta.listing.skipped.total"
	metricFilesUntracked   = "vcsmeta.listing.untracked.total"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK marks a successful operation.
	StatusOK = "ok"
	// StatusError marks a failed operation.
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 120s: single lookups through full
// history scans of large repositories.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// REDMetrics holds the instruments for rate, errors and duration per operation.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of engine operations"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Engine operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed engine operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight engine operations"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed operation.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// ListingMetrics counts what file listings produce.
type ListingMetrics struct {
	files     metric.Int64Counter
	skipped   metric.Int64Counter
	untracked metric.Int64Counter
}

// ListingStats summarizes one file listing.
type ListingStats struct {
	Files     int
	Skipped   int
	Untracked int
}

// NewListingMetrics creates listing instruments from the given meter.
func NewListingMetrics(mt metric.Meter) (*ListingMetrics, error) {
	files, err := mt.Int64Counter(metricFilesListed,
		metric.WithDescription("Files returned by listings"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesListed, err)
	}

	skipped, err := mt.Int64Counter(metricFilesSkipped,
		metric.WithDescription("Tracked files omitted from listings for lack of line history"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesSkipped, err)
	}

	untracked, err := mt.Int64Counter(metricFilesUntracked,
		metric.WithDescription("Untracked files returned with synthesized metadata"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesUntracked, err)
	}

	return &ListingMetrics{files: files, skipped: skipped, untracked: untracked}, nil
}

// RecordListing records one listing. Safe on a nil receiver.
func (lm *ListingMetrics) RecordListing(ctx context.Context, stats ListingStats) {
	if lm == nil {
		return
	}

	lm.files.Add(ctx, int64(stats.Files))
	lm.skipped.Add(ctx, int64(stats.Skipped))
	lm.untracked.Add(ctx, int64(stats.Untracked))
}
