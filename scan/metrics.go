package scan

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dvbscan"

// Metrics exposes the progress of a scan and the last signal readings.
// A nil *Metrics records nothing.
type Metrics struct {
	Signal      prometheus.Gauge
	SNR         prometheus.Gauge
	BER         prometheus.Gauge
	Uncorrected prometheus.Gauge
	Locked      prometheus.Gauge

	Tuned    prometheus.Counter
	Locks    prometheus.Counter
	Services prometheus.Counter
	Skipped  *prometheus.CounterVec
}

// NewMetrics creates the scan metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Signal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "signal_strength_percent",
			Help: "Signal strength of the last frontend reading",
		}),
		SNR: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "snr_percent",
			Help: "Signal to noise ratio of the last frontend reading",
		}),
		BER: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bit_error_rate",
			Help: "Bit error rate of the last frontend reading",
		}),
		Uncorrected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "uncorrected_blocks",
			Help: "Uncorrected blocks of the last frontend reading",
		}),
		Locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "locked",
			Help: "1 when the frontend reported a lock on the last reading",
		}),
		Tuned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transponders_tuned_total",
			Help: "Transponders the frontend was tuned to",
		}),
		Locks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "transponders_locked_total",
			Help: "Transponders that reached a lock",
		}),
		Services: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "services_found_total",
			Help: "Channel entries produced",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transponders_skipped_total",
			Help: "Transponders skipped, by reason",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.Signal, m.SNR, m.BER, m.Uncorrected, m.Locked,
			m.Tuned, m.Locks, m.Services, m.Skipped)
	}
	return m
}

func (m *Metrics) observe(st Stats) {
	if m == nil {
		return
	}
	m.Signal.Set(float64(st.Signal))
	m.SNR.Set(float64(st.SNR))
	m.BER.Set(float64(st.BER))
	m.Uncorrected.Set(float64(st.Uncorrected))
	if st.Status&HasLock != 0 {
		m.Locked.Set(1)
	} else {
		m.Locked.Set(0)
	}
}

func (m *Metrics) tuned() {
	if m != nil {
		m.Tuned.Inc()
	}
}

func (m *Metrics) locked() {
	if m != nil {
		m.Locks.Inc()
	}
}

func (m *Metrics) services(n int) {
	if m != nil && n > 0 {
		m.Services.Add(float64(n))
	}
}

func (m *Metrics) skipped(reason string) {
	if m != nil {
		m.Skipped.WithLabelValues(reason).Inc()
	}
}
