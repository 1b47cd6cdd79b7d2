package metrics

import (
	"net/http"
	"time"

	"firewall-simulator/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricName string

const (
	MetricDecisionsCounter           MetricName = "firewall_decisions_total"
	MetricEvaluationDurationObserver MetricName = "firewall_evaluation_duration_seconds"
	MetricRulesGauge                 MetricName = "firewall_rules"
	MetricScansCounter               MetricName = "firewall_scans_total"
	MetricScanPortsCounter           MetricName = "firewall_scan_ports_total"
)

var (
	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: string(MetricDecisionsCounter),
			Help: "Total number of flow decisions",
		},
		[]string{"source", "result"})
	evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: string(MetricEvaluationDurationObserver),
			Help: "Distribution of batch evaluation latencies",
			Buckets: []float64{
				.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5,
			},
		},
		[]string{"source"})
	rules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: string(MetricRulesGauge),
			Help: "Current number of rules in the store",
		})
	scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: string(MetricScansCounter),
			Help: "Total number of scan requests",
		},
		[]string{"scan_type", "outcome"})
	scanPorts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: string(MetricScanPortsCounter),
			Help: "Total number of scanned ports by status",
		},
		[]string{"status"})
)

func init() {
	prometheus.MustRegister(decisions, evaluationDuration, rules, scans, scanPorts)
}

// ObserveDecisions records a batch of decisions made for source ("api",
// "store", "cli") and how long the batch took.
func ObserveDecisions(source string, ds []model.Decision, d time.Duration) {
	for i := range ds {
		result := "deny"
		if ds[i].Allowed {
			result = "allow"
		}
		decisions.WithLabelValues(source, result).Inc()
	}
	evaluationDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveDecision records a single decision without timing.
func ObserveDecision(source string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	decisions.WithLabelValues(source, result).Inc()
}

func SetRules(n int) {
	rules.Set(float64(n))
}

func ObserveScan(scanType model.ScanType, results []model.ScanResult, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	scans.WithLabelValues(string(scanType), outcome).Inc()
	for i := range results {
		scanPorts.WithLabelValues(string(results[i].Status)).Inc()
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
