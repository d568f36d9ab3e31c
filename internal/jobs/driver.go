package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Driver wraps the scheduler so each sweep runs on its own timer; a slow
// waitlist pass cannot delay hold reclamation.
type Driver struct {
	sched gocron.Scheduler
}

func NewDriver() (*Driver, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Driver{sched: sched}, nil
}

func (d *Driver) Every(name string, interval time.Duration, fn func(context.Context)) error {
	_, err := d.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			fn(ctx)
		}),
		gocron.WithName(name),
	)
	return err
}

func (d *Driver) Start() {
	d.sched.Start()
}

func (d *Driver) Shutdown() error {
	return d.sched.Shutdown()
}
