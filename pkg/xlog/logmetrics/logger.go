package logmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/softdevteam/msrsampler/pkg/xlog"
)

////////////////////////////////////////////////////////////////////////////////

// NewMeteredLogger counts emitted log messages by level.
func NewMeteredLogger(l xlog.Logger, r prometheus.Registerer) (xlog.Logger, error) {
	counts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "log_message_count",
		Help: "Number of log messages by level.",
	}, []string{"level"})

	err := r.Register(counts)
	if err != nil {
		return nil, err
	}

	return xlog.New(l.Zap().WithOptions(zap.Hooks(func(e zapcore.Entry) error {
		counts.WithLabelValues(e.Level.String()).Inc()
		return nil
	}))), nil
}
