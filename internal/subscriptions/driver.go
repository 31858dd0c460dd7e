package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/grocer/internal/pkg/ctxlog"
	"github.com/robfig/cron/v3"
)

// Ticker runs one scheduler tick.
type Ticker interface {
	RunTick(ctx context.Context, now time.Time) TickResult
}

// DriverConfig contains driver configuration.
type DriverConfig struct {
	// Spec is a cron expression or descriptor such as "@every 1m".
	Spec string
	// Location is the timezone ticks and subscription hours are evaluated in.
	Location *time.Location
	// TickTimeout bounds one whole tick.
	TickTimeout time.Duration
	// Logger receives driver and cron logs and is handed to every tick
	// through its context. Defaults to slog.Default().
	Logger *slog.Logger
}

// Driver fires scheduler ticks on a cron schedule. Ticks may overlap; the
// scheduler tolerates concurrent ticks.
type Driver struct {
	config DriverConfig
	ticker Ticker
	now    func() time.Time
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDriver creates a driver. now is the clock passed to every tick.
func NewDriver(config DriverConfig, ticker Ticker, now func() time.Time) (*Driver, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if now == nil {
		now = time.Now
	}

	base := config.Logger
	if base == nil {
		base = slog.Default()
	}
	logger := base.With("component", "scheduler")

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(config.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	d := &Driver{
		config: config,
		ticker: ticker,
		now:    now,
		cron:   c,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(config.Spec, func() { d.Fire() }); err != nil {
		cancel()
		return nil, fmt.Errorf("parse scheduler spec %q: %w", config.Spec, err)
	}
	return d, nil
}

// Start begins firing ticks in the background.
func (d *Driver) Start() {
	d.logger.Info("starting subscription scheduler",
		"spec", d.config.Spec,
		"timezone", d.config.Location.String(),
		"tick_timeout", d.config.TickTimeout,
	)
	d.cron.Start()
}

// Fire runs a single tick at the current clock instant.
func (d *Driver) Fire() TickResult {
	ctx := d.ctx
	if d.config.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.TickTimeout)
		defer cancel()
	}
	return d.ticker.RunTick(ctx, d.now().In(d.config.Location))
}

// Stop stops firing new ticks and waits for running ones. If ctx expires
// first, running ticks are cancelled and ctx's error is returned.
func (d *Driver) Stop(ctx context.Context) error {
	done := d.cron.Stop()
	defer d.cancel()

	select {
	case <-done.Done():
		d.logger.Info("subscription scheduler stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("scheduler stop timed out, cancelling running ticks")
		return fmt.Errorf("wait for running ticks: %w", ctx.Err())
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

// Info logs cron's routine messages at debug level; they fire on every wakeup.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
