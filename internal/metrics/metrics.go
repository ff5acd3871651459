package metrics

import (
	"go-cats/pkg/sla"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry *prometheus.Registry

	EvaluationRuns        *prometheus.CounterVec
	EvaluationDuration    prometheus.Histogram
	CasesEvaluated        prometheus.Counter
	CaseFailures          *prometheus.CounterVec
	EventsEmitted         *prometheus.CounterVec
	ActionsExecuted       *prometheus.CounterVec
	DeadlinesResolved     *prometheus.CounterVec
	OpenCasesByState      *prometheus.GaugeVec
	StatisticsRecomputed  prometheus.Counter
	LastEvaluationSuccess prometheus.Gauge
}

// NewRegistry returns a registry carrying the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		EvaluationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_evaluation_runs_total",
			Help: "Total number of batch evaluation passes",
		}, []string{"trigger", "status"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_evaluation_duration_seconds",
			Help:    "Time taken by one batch evaluation pass",
			Buckets: prometheus.DefBuckets,
		}),
		CasesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "sla_cases_evaluated_total",
			Help: "Total number of case evaluations",
		}),
		CaseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_case_failures_total",
			Help: "Case evaluations that failed or were skipped, by failure class",
		}, []string{"kind"}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_events_emitted_total",
			Help: "Escalation, warning and breach events emitted",
		}, []string{"kind"}),
		ActionsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_actions_executed_total",
			Help: "Escalation actions executed by the dispatcher",
		}, []string{"kind", "status"}),
		DeadlinesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_deadlines_resolved_total",
			Help: "Rule and deadline resolutions at case submission",
		}, []string{"case_kind", "status"}),
		OpenCasesByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sla_open_cases",
			Help: "Open cases per SLA state at the last statistics recompute",
		}, []string{"state"}),
		StatisticsRecomputed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sla_statistics_recomputed_total",
			Help: "Total number of rule statistics recomputations",
		}),
		LastEvaluationSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sla_last_evaluation_success_timestamp_seconds",
			Help: "Unix time of the last batch evaluation that scanned every open case",
		}),
	}
}

// ObserveBatch records one evaluation pass
func (m *Metrics) ObserveBatch(trigger string, report *sla.BatchReport, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.EvaluationRuns.WithLabelValues(trigger, status).Inc()

	if report == nil {
		return
	}
	m.EvaluationDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	m.CasesEvaluated.Add(float64(report.Evaluated))
	for kind, n := range report.Events {
		m.EventsEmitted.WithLabelValues(string(kind)).Add(float64(n))
	}
	for _, f := range report.Failures {
		m.CaseFailures.WithLabelValues(f.Kind).Inc()
	}
	if err == nil {
		m.LastEvaluationSuccess.Set(float64(report.FinishedAt.Unix()))
	}
}

// ObserveEvaluation records a single on-demand case evaluation
func (m *Metrics) ObserveEvaluation(ev *sla.Evaluation, err error) {
	if err != nil {
		m.CaseFailures.WithLabelValues(sla.ClassifyError(err)).Inc()
	}
	if ev == nil {
		return
	}
	m.CasesEvaluated.Inc()
	for _, e := range ev.Events {
		m.EventsEmitted.WithLabelValues(string(e.Kind)).Inc()
	}
}

// ObserveResolution records the outcome of resolving a rule at submission
func (m *Metrics) ObserveResolution(kind sla.CaseKind, err error) {
	status := "resolved"
	if err != nil {
		status = sla.ClassifyError(err)
	}
	m.DeadlinesResolved.WithLabelValues(string(kind), status).Inc()
}

// ObserveOpenStates replaces the open-case gauge values
func (m *Metrics) ObserveOpenStates(counts map[sla.State]int) {
	m.OpenCasesByState.Reset()
	for state, n := range counts {
		m.OpenCasesByState.WithLabelValues(string(state)).Set(float64(n))
	}
}

// ObserveAction records one dispatched escalation action
func (m *Metrics) ObserveAction(kind sla.ActionKind, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.ActionsExecuted.WithLabelValues(string(kind), status).Inc()
}
