package app

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// startExpirySweeper schedules a background job that flips lapsed
// Pending bookings to Expired. Availability never depends on it: the
// occupancy check ignores lapsed holds on its own. The sweep only
// keeps stored statuses aligned with what the engine already treats
// as true.
func (app *application) startExpirySweeper() (func(), error) {
	if !app.config.sweeper.enabled {
		app.logger.Info("expiry sweeper disabled")
		return func() {}, nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(app.config.sweeper.interval),
		gocron.NewTask(app.sweepLapsedHolds),
	)
	if err != nil {
		return nil, err
	}

	scheduler.Start()

	app.logger.Info("expiry sweeper started", "interval", app.config.sweeper.interval)

	stop := func() {
		if err := scheduler.Shutdown(); err != nil {
			app.logger.Error("failed to shut down expiry sweeper", "error", err)
		}
	}

	return stop, nil
}

func (app *application) sweepLapsedHolds() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := app.bookingRepo.ExpireLapsedHolds(ctx, time.Now().UTC())
	if err != nil {
		app.logger.Error("expiry sweep failed", "error", err)
		return
	}

	if expired > 0 {
		app.logger.Info("expired lapsed holds", "count", expired)
	}
}
