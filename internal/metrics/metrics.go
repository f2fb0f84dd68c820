package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shazow/autojoin/wifi"
)

// Collector bundles the Prometheus metrics of the association engine. It
// implements wifi.Observer so it can be attached to an Association directly.
//
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	JoinAttempts   prometheus.Counter
	JoinRejections prometheus.Counter
	LinkFailures   prometheus.Counter
	LinkTimeouts   prometheus.Counter
	Associations   *prometheus.CounterVec
	Scans          *prometheus.CounterVec
	Credentials    prometheus.Gauge
}

var _ wifi.Observer = (*Collector)(nil)

// New registers the metrics against reg, defaulting to the global Prometheus
// registry when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	counters := []struct {
		dst  *prometheus.Counter
		name string
		help string
	}{
		{&c.JoinAttempts, "autojoin_join_attempts_total", "Join requests issued to the radio."},
		{&c.JoinRejections, "autojoin_join_rejections_total", "Join requests the radio refused."},
		{&c.LinkFailures, "autojoin_link_failures_total", "Accepted joins whose link reported failure."},
		{&c.LinkTimeouts, "autojoin_link_timeouts_total", "Accepted joins that ran out of ticks."},
	}
	for _, ctr := range counters {
		*ctr.dst, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: ctr.name,
			Help: ctr.help,
		}), ctr.name)
		if err != nil {
			return nil, err
		}
	}

	c.Associations, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autojoin_associations_total",
		Help: "Finished association runs, labeled by result.",
	}, []string{"result"}), "autojoin_associations_total")
	if err != nil {
		return nil, err
	}

	c.Scans, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autojoin_scans_total",
		Help: "Scans, labeled by outcome: started, completed or timeout.",
	}, []string{"outcome"}), "autojoin_scans_total")
	if err != nil {
		return nil, err
	}

	c.Credentials, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autojoin_credentials",
		Help: "Number of configured networks.",
	}), "autojoin_credentials")
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) JoinAttempted(wifi.Candidate) {
	if c != nil {
		c.JoinAttempts.Inc()
	}
}

func (c *Collector) JoinRejected(wifi.Candidate, error) {
	if c != nil {
		c.JoinRejections.Inc()
	}
}

func (c *Collector) LinkFailed(wifi.Candidate) {
	if c != nil {
		c.LinkFailures.Inc()
	}
}

func (c *Collector) LinkTimedOut(wifi.Candidate) {
	if c != nil {
		c.LinkTimeouts.Inc()
	}
}

func (c *Collector) Finished(result wifi.Status) {
	if c != nil {
		c.Associations.WithLabelValues(result.String()).Inc()
	}
}

// ScanStarted, ScanCompleted and ScanTimedOut count scan outcomes.
func (c *Collector) ScanStarted() {
	if c != nil {
		c.Scans.WithLabelValues("started").Inc()
	}
}

func (c *Collector) ScanCompleted() {
	if c != nil {
		c.Scans.WithLabelValues("completed").Inc()
	}
}

func (c *Collector) ScanTimedOut() {
	if c != nil {
		c.Scans.WithLabelValues("timeout").Inc()
	}
}

// SetCredentials records the number of configured networks.
func (c *Collector) SetCredentials(n int) {
	if c != nil {
		c.Credentials.Set(float64(n))
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
