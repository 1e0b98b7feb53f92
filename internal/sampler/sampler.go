package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/softdevteam/msrsampler/pkg/freqctr"
	"github.com/softdevteam/msrsampler/pkg/xlog"
)

////////////////////////////////////////////////////////////////////////////////

// Round is one pair of readings of every core. The first read takes ctr1
// last and the second read takes it first.
type Round struct {
	Before []freqctr.Sample
	After  []freqctr.Sample
	Deltas []freqctr.Delta
}

type Sampler struct {
	logger   xlog.Logger
	manager  *freqctr.Manager
	mask     freqctr.CounterMask
	conf     Config
	out      io.Writer
	exporter *Exporter

	before *freqctr.Buffers
	after  *freqctr.Buffers
}

// New builds a sampler for conf.Cores cores. The counter mask is computed
// once by the caller. The exporter may be nil.
func New(
	l xlog.Logger,
	manager *freqctr.Manager,
	mask freqctr.CounterMask,
	conf Config,
	out io.Writer,
	exporter *Exporter,
) (*Sampler, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.Cores == 0 {
		return nil, errors.New("number of cores is not set")
	}

	return &Sampler{
		logger:   l.WithName("sampler"),
		manager:  manager,
		mask:     mask,
		conf:     conf,
		out:      out,
		exporter: exporter,
		before:   freqctr.NewBuffers(conf.Cores),
		after:    freqctr.NewBuffers(conf.Cores),
	}, nil
}

// Setup configures the fixed-function counter and zeroes all counters.
func (s *Sampler) Setup(ctx context.Context) error {
	s.logger.Info(ctx, "Configuring counters",
		zap.Int("cores", s.conf.Cores),
		zap.Int("ctr1_width", s.mask.Width()),
		zap.String("ctr1_mask", fmt.Sprintf("%#x", s.mask.Bits())),
	)

	err := s.manager.Configure(ctx, s.conf.Cores)
	if err != nil {
		return fmt.Errorf("failed to configure counters: %w", err)
	}

	s.manager.Reset(ctx, s.conf.Cores)
	return nil
}

// Sample takes one round of readings.
func (s *Sampler) Sample(ctx context.Context) (*Round, error) {
	err := s.manager.Read(ctx, s.conf.Cores, false, s.before)
	if err != nil {
		s.exporter.readFault()
		return nil, err
	}

	err = s.manager.Read(ctx, s.conf.Cores, true, s.after)
	if err != nil {
		s.exporter.readFault()
		return nil, err
	}

	s.before.MaskCtr1s(s.mask)
	s.after.MaskCtr1s(s.mask)

	round := &Round{
		Before: s.before.Samples(),
		After:  s.after.Samples(),
		Deltas: make([]freqctr.Delta, 0, s.conf.Cores),
	}
	for core := range round.After {
		round.Deltas = append(round.Deltas, freqctr.Diff(round.Before[core], round.After[core], s.mask))
	}

	err = freqctr.CheckMonotonic(round.Before, round.After)
	if err != nil {
		s.exporter.nonMonotonic()
		if s.conf.StrictMonotonic {
			return nil, err
		}
		s.logger.Warn(ctx, "Counters are not monotonic", zap.Error(err))
	}

	s.exporter.observe(round)
	return round, nil
}

// Run samples until the context is cancelled or the configured number of
// rounds has been taken. Setup must have been called before.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(s.conf.Interval, time.Millisecond))
	defer ticker.Stop()

	for i := 0; s.conf.Iterations == 0 || i < s.conf.Iterations; i++ {
		round, err := s.Sample(ctx)
		if err != nil {
			return err
		}

		if s.out != nil {
			_, err = fmt.Fprintf(s.out, "Round %d\n", i)
			if err != nil {
				return err
			}
			err = Render(s.out, round)
			if err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}
