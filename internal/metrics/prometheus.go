// Package metrics exports the call monitor to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"mangalib/internal/monitor"
)

// CallCollector turns ended monitor entries into Prometheus series. It is
// registered as a monitor.Observer; live gauges read the monitor itself.
type CallCollector struct {
	AppName      string
	CallCounter  *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	ResponseSize *prometheus.HistogramVec
	ErrorCounter *prometheus.CounterVec
}

// NewCallCollector registers its series on reg. When mon is non-nil the
// collector also subscribes to it and exposes its success rate and health.
func NewCallCollector(reg prometheus.Registerer, namespace, appName string, mon *monitor.Monitor) *CallCollector {
	c := &CallCollector{
		AppName: appName,
		CallCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Outgoing API calls by method and status",
			},
			[]string{"app", "method", "status", "outcome"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_call_duration_seconds",
				Help:      "Outgoing API call duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"app", "method", "outcome"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_response_size_bytes",
				Help:      "Response body size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"app", "method"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Failed API calls by normalized error code",
			},
			[]string{"app", "type", "code"},
		),
	}
	reg.MustRegister(c.CallCounter, c.CallDuration, c.ResponseSize, c.ErrorCounter)

	if mon != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "api_success_rate_percent",
				Help:        "Success rate over the retained call log",
				ConstLabels: prometheus.Labels{"app": appName},
			}, func() float64 { return mon.Stats().SuccessRate }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "api_healthy",
				Help:        "1 healthy, 0.5 degraded, 0 down over the health window",
				ConstLabels: prometheus.Labels{"app": appName},
			}, func() float64 { return healthValue(mon.Health(monitor.DefaultHealthWindow).Status) }),
		)
		mon.AddObserver(c)
	}
	return c
}

// CallEnded implements monitor.Observer.
func (c *CallCollector) CallEnded(e monitor.CallLogEntry) {
	status := "none"
	if e.Status != nil && *e.Status != 0 {
		status = strconv.Itoa(*e.Status)
	}
	outcome := "success"
	if !e.Success {
		outcome = "error"
	}

	c.CallCounter.WithLabelValues(c.AppName, e.Method, status, outcome).Inc()
	if e.Duration != nil {
		c.CallDuration.WithLabelValues(c.AppName, e.Method, outcome).Observe(e.Duration.Seconds())
	}
	if e.ResponseSize != nil {
		c.ResponseSize.WithLabelValues(c.AppName, e.Method).Observe(float64(*e.ResponseSize))
	}
	if !e.Success {
		errType, code := "status_"+status, ""
		if status == "none" {
			errType = "network"
		}
		if e.Error != nil {
			code = e.Error.Code
		}
		c.ErrorCounter.WithLabelValues(c.AppName, errType, code).Inc()
	}
}

func healthValue(status string) float64 {
	switch status {
	case monitor.Healthy:
		return 1
	case monitor.Degraded:
		return 0.5
	default:
		return 0
	}
}
