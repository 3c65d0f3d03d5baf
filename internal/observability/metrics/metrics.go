package metrics

import "github.com/prometheus/client_golang/prometheus"

// RouterMetrics exposes counters/histograms for the inbound event path.
type RouterMetrics struct {
	eventsTotal       *prometheus.CounterVec
	modeResolved      *prometheus.CounterVec
	complianceBlocked *prometheus.CounterVec
	optOutsTotal      prometheus.Counter
	enrollmentsTotal  *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
}

func NewRouterMetrics(reg prometheus.Registerer) *RouterMetrics {
	m := &RouterMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "router",
			Name:      "events_total",
			Help:      "Total inbound CRM webhook events",
		}, []string{"kind", "status"}),
		modeResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "router",
			Name:      "mode_resolved_total",
			Help:      "Mode resolution outcomes",
		}, []string{"mode"}),
		complianceBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "router",
			Name:      "compliance_blocked_total",
			Help:      "Outbound messages replaced by the compliance fallback",
		}, []string{"rule"}),
		optOutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "router",
			Name:      "opt_outs_total",
			Help:      "Contacts who opted out of automation",
		}),
		enrollmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "router",
			Name:      "workflow_enrollments_total",
			Help:      "Workflow enrollment decisions",
		}, []string{"outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadrouter",
			Subsystem: "router",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of CRM webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.modeResolved, m.complianceBlocked, m.optOutsTotal, m.enrollmentsTotal, m.webhookLatency)
	return m
}

func (m *RouterMetrics) ObserveEvent(kind, status string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind, status).Inc()
}

func (m *RouterMetrics) ObserveMode(mode string) {
	if m == nil {
		return
	}
	m.modeResolved.WithLabelValues(mode).Inc()
}

func (m *RouterMetrics) ObserveComplianceBlock(rule string) {
	if m == nil {
		return
	}
	m.complianceBlocked.WithLabelValues(rule).Inc()
}

func (m *RouterMetrics) ObserveOptOut() {
	if m == nil {
		return
	}
	m.optOutsTotal.Inc()
}

func (m *RouterMetrics) ObserveEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollmentsTotal.WithLabelValues(outcome).Inc()
}

func (m *RouterMetrics) ObserveWebhookLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}

// DispatchMetrics covers the queue-backed delivery pipeline.
type DispatchMetrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrouter",
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Delivery jobs drained off the queue",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadrouter",
			Subsystem: "dispatch",
			Name:      "job_duration_seconds",
			Help:      "Time spent processing one delivery job",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.jobsTotal, m.jobDuration)
	return m
}

func (m *DispatchMetrics) ObserveJob(status string, seconds float64) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(seconds)
}
