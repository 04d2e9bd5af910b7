package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OTP verification results.
const (
	VerifySuccess     = "verified"
	VerifyInvalidCode = "invalid_code"
	VerifyExpired     = "expired"
	VerifyMissing     = "missing"
)

// Expiry sweep outcomes.
const (
	SweepReclaimed = "reclaimed"
	SweepRearmed   = "rearmed"
	SweepNoop      = "noop"
	SweepError     = "error"
)

// Recorder is what the services and middleware report to.
type Recorder interface {
	RecordOTPIssued()
	RecordOTPVerification(result string)
	RecordSweep(outcome string)
	RecordNotification(kind string, err error)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	otpIssued     prometheus.Counter
	verifications *prometheus.CounterVec
	sweeps        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventhon_otp_issued_total",
			Help: "Number of OTP codes issued.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventhon_otp_verifications_total",
			Help: "OTP verification attempts by result.",
		}, []string{"result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventhon_otp_sweeps_total",
			Help: "Expiry sweeps by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventhon_notifications_total",
			Help: "Outbound notifications by kind and status.",
		}, []string{"kind", "status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventhon_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.otpIssued,
		c.verifications,
		c.sweeps,
		c.notifications,
		c.httpStatus,
	)

	return c
}

func (c *Collector) RecordOTPIssued() {
	c.otpIssued.Inc()
}

func (c *Collector) RecordOTPVerification(result string) {
	c.verifications.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSweep(outcome string) {
	c.sweeps.WithLabelValues(outcome).Inc()
}

// RecordNotification counts a send attempt as "sent" or "failed".
func (c *Collector) RecordNotification(kind string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	c.notifications.WithLabelValues(kind, status).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
