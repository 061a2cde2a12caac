package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Collector holds the upload metrics. A nil *Collector records nothing.
type Collector struct {
	uploads  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3upload_uploads_total",
				Help: "Total number of uploads attempted, by transfer and outcome.",
			},
			[]string{"transfer", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3upload_upload_duration_seconds",
				Help:    "Time from submit to the storage service's answer.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"transfer"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3upload_uploaded_bytes_total",
				Help: "Bytes of file content accepted by the storage service.",
			},
			[]string{"transfer"},
		),
	}

	for _, col := range []prometheus.Collector{c.uploads, c.duration, c.bytes} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records one finished upload. size is only counted on success.
func (c *Collector) Observe(transfer, outcome string, d time.Duration, size int64) {
	if c == nil {
		return
	}
	c.uploads.WithLabelValues(transfer, outcome).Inc()
	c.duration.WithLabelValues(transfer).Observe(d.Seconds())
	if outcome == OutcomeSuccess && size > 0 {
		c.bytes.WithLabelValues(transfer).Add(float64(size))
	}
}
