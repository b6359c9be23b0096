package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric BioDockViz records.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	StructuresUploadedTotal CounterVec
	ParseDuration           HistogramVec
	ParseFailuresTotal      CounterVec

	AnalysisDuration          HistogramVec
	AnalysisAtoms             HistogramVec
	BondsDetectedTotal        CounterVec
	InteractionsDetectedTotal CounterVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	JobsProcessedTotal CounterVec
	JobDuration        HistogramVec
	EventsPublished    CounterVec

	DBPoolOpen        GaugeVec
	DBPoolInUse       GaugeVec
	HealthCheckStatus GaugeVec
}

var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAnalysisDurationBuckets = []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultAtomCountBuckets        = []float64{10, 100, 1000, 5000, 10000, 50000, 100000, 500000}
	DefaultJobDurationBuckets      = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.StructuresUploadedTotal = collector.RegisterCounter("structures_uploaded_total", "Structure files accepted for upload", "file_type")
	m.ParseDuration = collector.RegisterHistogram("parse_duration_seconds", "Structure file parse duration", DefaultAnalysisDurationBuckets, "file_type")
	m.ParseFailuresTotal = collector.RegisterCounter("parse_failures_total", "Structure files that failed to parse", "file_type")

	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "Bond and interaction analysis duration", DefaultAnalysisDurationBuckets)
	m.AnalysisAtoms = collector.RegisterHistogram("analysis_atoms", "Atoms per analyzed structure", DefaultAtomCountBuckets)
	m.BondsDetectedTotal = collector.RegisterCounter("bonds_detected_total", "Covalent bonds detected")
	m.InteractionsDetectedTotal = collector.RegisterCounter("interactions_detected_total", "Non-covalent interactions detected", "kind")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Analysis cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Analysis cache misses", "cache")

	m.JobsProcessedTotal = collector.RegisterCounter("jobs_processed_total", "Analysis jobs processed", "status")
	m.JobDuration = collector.RegisterHistogram("job_duration_seconds", "Analysis job duration", DefaultJobDurationBuckets)
	m.EventsPublished = collector.RegisterCounter("events_published_total", "Events published to Kafka", "topic", "status")

	m.DBPoolOpen = collector.RegisterGauge("db_pool_open_connections", "Open database connections", "db")
	m.DBPoolInUse = collector.RegisterGauge("db_pool_in_use_connections", "In-use database connections", "db")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")

	return m
}

// NewNoopAppMetrics returns metrics that record nothing.
func NewNoopAppMetrics() *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:         noopCounterVec{},
		HTTPRequestDuration:       noopHistogramVec{},
		HTTPActiveRequests:        noopGaugeVec{},
		GRPCRequestsTotal:         noopCounterVec{},
		GRPCRequestDuration:       noopHistogramVec{},
		StructuresUploadedTotal:   noopCounterVec{},
		ParseDuration:             noopHistogramVec{},
		ParseFailuresTotal:        noopCounterVec{},
		AnalysisDuration:          noopHistogramVec{},
		AnalysisAtoms:             noopHistogramVec{},
		BondsDetectedTotal:        noopCounterVec{},
		InteractionsDetectedTotal: noopCounterVec{},
		CacheHitsTotal:            noopCounterVec{},
		CacheMissesTotal:          noopCounterVec{},
		JobsProcessedTotal:        noopCounterVec{},
		JobDuration:               noopHistogramVec{},
		EventsPublished:           noopCounterVec{},
		DBPoolOpen:                noopGaugeVec{},
		DBPoolInUse:               noopGaugeVec{},
		HealthCheckStatus:         noopGaugeVec{},
	}
}

func (m *AppMetrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordGRPCRequest(service, method, code string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordUpload(fileType string) {
	m.StructuresUploadedTotal.WithLabelValues(fileType).Inc()
}

func (m *AppMetrics) RecordParse(fileType string, duration time.Duration, err error) {
	m.ParseDuration.WithLabelValues(fileType).Observe(duration.Seconds())
	if err != nil {
		m.ParseFailuresTotal.WithLabelValues(fileType).Inc()
	}
}

// RecordAnalysis records one analysis run. counts is keyed by interaction
// kind.
func (m *AppMetrics) RecordAnalysis(atoms, bonds int, counts map[string]int, duration time.Duration) {
	m.AnalysisDuration.WithLabelValues().Observe(duration.Seconds())
	m.AnalysisAtoms.WithLabelValues().Observe(float64(atoms))
	m.BondsDetectedTotal.WithLabelValues().Add(float64(bonds))
	for kind, n := range counts {
		if n > 0 {
			m.InteractionsDetectedTotal.WithLabelValues(kind).Add(float64(n))
		}
	}
}

func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordJob records a processed job; status is "success", "failed" or
// "skipped".
func (m *AppMetrics) RecordJob(status string, duration time.Duration) {
	m.JobsProcessedTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues().Observe(duration.Seconds())
}

func (m *AppMetrics) RecordEventPublished(topic string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.EventsPublished.WithLabelValues(topic, status).Inc()
}

func (m *AppMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

func (m *AppMetrics) SetDBPool(db string, open, inUse int) {
	m.DBPoolOpen.WithLabelValues(db).Set(float64(open))
	m.DBPoolInUse.WithLabelValues(db).Set(float64(inUse))
}
