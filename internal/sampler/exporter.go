package sampler

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter publishes the last sampling round as Prometheus metrics.
type Exporter struct {
	aperf       *prometheus.GaugeVec
	mperf       *prometheus.GaugeVec
	ctr1        *prometheus.GaugeVec
	ratio       *prometheus.GaugeVec
	rounds      prometheus.Counter
	readFaults  prometheus.Counter
	nonMonotone prometheus.Counter
}

func NewExporter(r prometheus.Registerer) (*Exporter, error) {
	perCore := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "msrsampler",
			Name:      name,
			Help:      help,
		}, []string{"core"})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "msrsampler",
			Name:      name,
			Help:      help,
		})
	}

	e := &Exporter{
		aperf:       perCore("aperf_delta", "APERF progress during the last round."),
		mperf:       perCore("mperf_delta", "MPERF progress during the last round."),
		ctr1:        perCore("ctr1_delta", "Unhalted core cycles during the last round."),
		ratio:       perCore("frequency_ratio", "Effective frequency relative to nominal during the last round."),
		rounds:      counter("rounds_total", "Number of completed sampling rounds."),
		readFaults:  counter("read_faults_total", "Number of failed counter reads."),
		nonMonotone: counter("non_monotonic_rounds_total", "Number of rounds where a counter went backwards."),
	}

	for _, c := range []prometheus.Collector{
		e.aperf, e.mperf, e.ctr1, e.ratio, e.rounds, e.readFaults, e.nonMonotone,
	} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func (e *Exporter) observe(round *Round) {
	if e == nil {
		return
	}
	for core, d := range round.Deltas {
		label := strconv.Itoa(core)
		e.aperf.WithLabelValues(label).Set(float64(d.APerf))
		e.mperf.WithLabelValues(label).Set(float64(d.MPerf))
		e.ctr1.WithLabelValues(label).Set(float64(d.Ctr1))
		e.ratio.WithLabelValues(label).Set(d.Ratio())
	}
	e.rounds.Inc()
}

func (e *Exporter) readFault() {
	if e != nil {
		e.readFaults.Inc()
	}
}

func (e *Exporter) nonMonotonic() {
	if e != nil {
		e.nonMonotone.Inc()
	}
}
