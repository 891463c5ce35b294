// Package feed replays stored daily bars into a bar consumer such as the
// paper engine.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/ashare-quant/internal/domain"
)

// BarHandler consumes one bar at a time.
type BarHandler interface {
	OnBar(ctx context.Context, bar domain.Bar)
}

// Replayer pushes bars into a BarHandler in order, optionally pacing them.
type Replayer struct {
	bars     []domain.Bar
	interval time.Duration
	sink     BarHandler
	logger   *slog.Logger
}

// NewReplayer creates a Replayer. A zero interval replays as fast as the
// handler accepts bars.
func NewReplayer(bars []domain.Bar, interval time.Duration, sink BarHandler, logger *slog.Logger) *Replayer {
	return &Replayer{
		bars:     bars,
		interval: interval,
		sink:     sink,
		logger:   logger.With(slog.String("component", "bar_replayer")),
	}
}

// Run delivers every bar and returns nil, or ctx.Err() if cancelled first.
func (r *Replayer) Run(ctx context.Context) error {
	r.logger.Info("bar replay started",
		slog.Int("bars", len(r.bars)),
		slog.Duration("interval", r.interval),
	)

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i, bar := range r.bars {
		if tick != nil && i > 0 {
			select {
			case <-ctx.Done():
				r.logger.Info("bar replay interrupted", slog.Int("delivered", i))
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			r.logger.Info("bar replay interrupted", slog.Int("delivered", i))
			return err
		}
		r.sink.OnBar(ctx, bar)
	}

	r.logger.Info("bar replay finished", slog.Int("bars", len(r.bars)))
	return nil
}
