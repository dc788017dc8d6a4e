// Package sequence runs one measurement session: identify the instrument,
// take a fixed number of timed readings and append them to the sample log.
package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/itohio/potlog/pkg/config"
	"github.com/itohio/potlog/pkg/datalog"
	"github.com/itohio/potlog/pkg/instrument"
)

var (
	// ErrConnect wraps a failure to open the instrument session.
	ErrConnect = errors.New("could not connect to instrument")
	// ErrNoReading is reported for a measurement that got an empty reply.
	ErrNoReading = errors.New("no reading received")
)

// IdentityError reports that a different instrument answered *IDN?.
type IdentityError struct {
	Expected string
	Received string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("connected to wrong instrument: expected %q, received %q", e.Expected, e.Received)
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used for timestamps and the inter-sample delay.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) { r.clk = clk }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.log = logger }
}

// Runner drives one sampling run against an instrument.
type Runner struct {
	cfg   *config.Config
	dev   instrument.Instrument
	store *datalog.Store
	obs   Observer
	clk   clock.Clock
	log   *zap.Logger
}

// New creates a Runner. Only the instrument and sampling sections of cfg are used.
func New(cfg *config.Config, dev instrument.Instrument, store *datalog.Store, obs Observer, opts ...Option) *Runner {
	if obs == nil {
		obs = Discard{}
	}
	r := &Runner{
		cfg:   cfg,
		dev:   dev,
		store: store,
		obs:   obs,
		clk:   clock.New(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the sequence once. The instrument is always disconnected before
// Run returns, including when a step panics. Per-sample failures are reported
// to the observer and counted in the summary; only a log init failure, a
// connect failure, an identity mismatch or an unexpected fault returns an error.
func (r *Runner) Run() (summary Summary, err error) {
	connected := false
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unexpected fault: %v", p)
			r.log.Error("sequence panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
		if err != nil {
			var idErr *IdentityError
			if !errors.As(err, &idErr) {
				r.obs.Failed(err)
			}
		}

		if derr := r.dev.Disconnect(); derr != nil {
			r.log.Warn("disconnect failed", zap.Error(derr))
		} else if connected {
			r.obs.Disconnected()
		}
	}()

	created, err := r.store.Init()
	if err != nil {
		return summary, err
	}
	if created {
		r.obs.LogCreated(r.store.Path())
	}

	if err := r.dev.Connect(); err != nil {
		r.log.Error("connect failed", zap.Error(err))
		return summary, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	connected = true
	r.obs.Connected()

	if err := r.identify(); err != nil {
		return summary, err
	}

	return r.sample(), nil
}

// identify checks the *IDN? answer against the configured identity.
func (r *Runner) identify() error {
	expected := r.cfg.Instrument.Identity

	received, err := r.dev.Query(instrument.CmdIdentify)
	if err != nil {
		r.log.Warn("identify query failed", zap.Error(err))
	}
	r.obs.Identified(received)

	if received != expected {
		r.obs.IdentityMismatch(expected, received)
		return &IdentityError{Expected: expected, Received: received}
	}
	return nil
}

// sample announces the run, takes the configured number of readings and
// announces completion.
func (r *Runner) sample() Summary {
	total := r.cfg.Sampling.Samples
	delay := r.cfg.Sampling.Delay

	r.obs.SequenceStarted(total, delay)
	r.announce(r.cfg.Sampling.StartMessage)

	summary := Summary{Attempted: total}
	values := make([]string, 0, total)

	for i := 1; i <= total; i++ {
		if value, ok := r.takeSample(i, total); ok {
			summary.Recorded++
			values = append(values, value)
		} else {
			summary.Failed++
		}

		r.sleep(delay)
	}

	summary.addStats(values)
	r.announce(r.cfg.Sampling.EndMessage)
	r.obs.SequenceCompleted(summary)
	return summary
}

// takeSample queries one reading and appends it to the log. ok is false when
// nothing was recorded for this iteration.
func (r *Runner) takeSample(i, total int) (value string, ok bool) {
	value, err := r.dev.Query(instrument.CmdMeasure)
	timestamp := r.clk.Now().UTC()

	if err != nil {
		r.log.Warn("measurement failed", zap.Int("sample", i), zap.Error(err))
		r.obs.SampleFailed(i, total, err)
		return "", false
	}
	if value == "" {
		r.log.Warn("measurement timed out", zap.Int("sample", i))
		r.obs.SampleFailed(i, total, ErrNoReading)
		return "", false
	}

	rec := datalog.Record{Timestamp: timestamp, Value: value}
	if err := r.store.Append(rec); err != nil {
		r.log.Error("append failed", zap.Int("sample", i), zap.Error(err))
		r.obs.SampleFailed(i, total, err)
		return "", false
	}

	r.log.Debug("sample recorded", zap.Int("sample", i), zap.String("value", value), zap.Time("timestamp", timestamp))
	r.obs.SampleRecorded(i, total, rec)
	return value, true
}

// announce shows text on the instrument display. The acknowledgement is
// reported but never checked.
func (r *Runner) announce(text string) {
	cmd := instrument.DisplayCommand(text)
	ack, err := r.dev.Query(cmd)
	if err != nil {
		r.log.Warn("display command failed", zap.String("command", cmd), zap.Error(err))
	}
	r.obs.Acknowledged(cmd, ack)
}

func (r *Runner) sleep(d time.Duration) {
	if d > 0 {
		r.clk.Sleep(d)
	}
}
