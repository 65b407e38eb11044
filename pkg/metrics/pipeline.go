package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records download and upload outcomes per platform.
type PipelineMetrics struct {
	downloadDuration *prometheus.HistogramVec
	uploadDuration   *prometheus.HistogramVec
	downloads        *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	uploadRetries    *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	downloadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "download_duration_seconds",
		Help:    "Duration of media downloads in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})
	uploadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upload_duration_seconds",
		Help:    "Duration of media uploads in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})
	downloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "downloads_total",
		Help: "Media downloads by platform and outcome.",
	}, []string{"platform", "outcome"})
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uploads_total",
		Help: "Media uploads by platform and outcome.",
	}, []string{"platform", "outcome"})
	uploadRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_retries_total",
		Help: "Upload retry attempts by platform.",
	}, []string{"platform"})
	reg.MustRegister(downloadDuration, uploadDuration, downloads, uploads, uploadRetries)
	return &PipelineMetrics{
		downloadDuration: downloadDuration,
		uploadDuration:   uploadDuration,
		downloads:        downloads,
		uploads:          uploads,
		uploadRetries:    uploadRetries,
	}
}

// ObserveDownload records one download outcome and its duration.
func (p *PipelineMetrics) ObserveDownload(platform string, duration time.Duration, ok bool) {
	if p == nil || p.downloads == nil {
		return
	}
	platform = normalizeLabel(platform)
	p.downloadDuration.WithLabelValues(platform).Observe(duration.Seconds())
	p.downloads.WithLabelValues(platform, outcomeLabel(ok)).Inc()
}

// ObserveUpload records one upload outcome and its duration.
func (p *PipelineMetrics) ObserveUpload(platform string, duration time.Duration, ok bool) {
	if p == nil || p.uploads == nil {
		return
	}
	platform = normalizeLabel(platform)
	p.uploadDuration.WithLabelValues(platform).Observe(duration.Seconds())
	p.uploads.WithLabelValues(platform, outcomeLabel(ok)).Inc()
}

// IncUploadRetry increments the retry counter for the platform.
func (p *PipelineMetrics) IncUploadRetry(platform string) {
	if p == nil || p.uploadRetries == nil {
		return
	}
	p.uploadRetries.WithLabelValues(normalizeLabel(platform)).Inc()
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func normalizeLabel(platform string) string {
	if platform == "" {
		return "unknown"
	}
	return platform
}
