package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements prometheus.Collector for a Recorder.
// It exposes cumulative counters generated on scrape:
//
//	<namespace>_startup_steps_total{step="<name>"}
//	<namespace>_startup_step_seconds_total{step="<name>"}
//	<namespace>_startup_hook_steps_total{step="<name>",hook="<hook>"}
type PrometheusCollector struct {
	recorder *Recorder

	stepsDesc   *prometheus.Desc
	secondsDesc *prometheus.Desc
	hooksDesc   *prometheus.Desc
}

// NewPrometheusCollector creates a collector. namespace defaults to extpoint.
func NewPrometheusCollector(recorder *Recorder, namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = "extpoint"
	}
	return &PrometheusCollector{
		recorder: recorder,
		stepsDesc: prometheus.NewDesc(
			fmt.Sprintf("%s_startup_steps_total", namespace),
			"Total startup steps recorded (cumulative)",
			[]string{"step"}, nil,
		),
		secondsDesc: prometheus.NewDesc(
			fmt.Sprintf("%s_startup_step_seconds_total", namespace),
			"Total time spent in startup steps (cumulative)",
			[]string{"step"}, nil,
		),
		hooksDesc: prometheus.NewDesc(
			fmt.Sprintf("%s_startup_hook_steps_total", namespace),
			"Total startup steps recorded per hook (cumulative)",
			[]string{"step", "hook"}, nil,
		),
	}
}

// Describe sends metric descriptors.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.stepsDesc
	ch <- c.secondsDesc
	ch <- c.hooksDesc
}

// Collect emits the recorder's current stats.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.recorder.Stats() {
		ch <- prometheus.MustNewConstMetric(c.stepsDesc, prometheus.CounterValue, float64(s.Count), name)
		ch <- prometheus.MustNewConstMetric(c.secondsDesc, prometheus.CounterValue, s.Duration.Seconds(), name)
		for hook, n := range s.Hooks {
			ch <- prometheus.MustNewConstMetric(c.hooksDesc, prometheus.CounterValue, float64(n), name, hook)
		}
	}
}
