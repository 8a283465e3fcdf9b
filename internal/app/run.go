package app

import (
	"context"
	"fmt"

	"github.com/vk/stagecue/internal/ctxlog"
)

// Run starts the entry list and drives the scheduler with a fixed simulated
// timestep until every instance has finished or the time cap is reached.
// Simulated time is decoupled from wall-clock time, so a headless run
// completes as fast as the host allows.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	entry := a.config.Entry
	if entry == "" {
		if len(a.doc.Order) == 0 {
			return fmt.Errorf("no lists loaded from %q", a.config.ScriptPath)
		}
		entry = a.doc.Order[0]
	}

	if _, err := a.sched.Start(ctx, entry, 0, nil, false); err != nil {
		return fmt.Errorf("starting entry list %q: %w", entry, err)
	}
	a.logger.Info("Entry list started.", "list", entry)

	if a.config.Skip {
		a.sched.SkipAll(ctx)
		a.logger.Info("Run fast-forwarded to completion.")
		return nil
	}

	dt := 1.0 / float64(a.config.FrameRate)
	elapsed := 0.0
	frames := 0

	for a.sched.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			a.sched.EndAll(ctx)
			return ctx.Err()
		default:
		}

		a.stage.Advance(dt)
		a.sched.TickAll(ctx, dt)
		elapsed += dt
		frames++

		if a.config.MaxSeconds > 0 && elapsed >= a.config.MaxSeconds {
			a.logger.Warn("Simulated time cap reached, ending all lists.",
				"cap_seconds", a.config.MaxSeconds)
			a.sched.EndAll(ctx)
			break
		}
	}

	a.logger.Info("Run complete.", "frames", frames, "simulated_seconds", elapsed)
	return nil
}
