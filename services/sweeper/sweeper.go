// Package sweepersvc runs the periodic absence sweep: it materialises the
// current day's class-instances and writes absent records for every instance
// whose window has ended.
package sweepersvc

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/timetable"
)

// DefaultSchedule runs the sweep every 10 minutes; sweeps are idempotent so
// overlap with a manual run is harmless.
const DefaultSchedule = "*/10 * * * *"

var nowFunc = time.Now // mockable

type Sweeper struct {
	classes    *timetable.Service
	attendance *attendance.Service
	log        core.Logger
	schedule   string
	cron       *cron.Cron
}

func NewSweeper(classes *timetable.Service, att *attendance.Service, log core.Logger, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Sweeper{
		classes:    classes,
		attendance: att,
		log:        log,
		schedule:   schedule,
	}
}

// Start schedules the sweep and returns immediately.
func (s *Sweeper) Start() error {
	s.cron = cron.New(cron.WithLocation(s.classes.Location()))
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Run(context.Background()); err != nil {
			s.log.Error("absence sweep failed", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Run sweeps every instance of the current day whose window has ended.
// Safe to call at any time and any number of times.
func (s *Sweeper) Run(ctx context.Context) error {
	now := nowFunc().In(s.classes.Location())
	// Materialise truncates both bounds to midnight, so [now, now+1d) covers today only.
	instances, err := s.classes.Materialise(ctx, now, now.AddDate(0, 0, 1), timetable.Scope{})
	if err != nil {
		return err
	}

	var swept, absent int
	for _, inst := range instances {
		if _, end := inst.Window(); now.Before(end) {
			continue
		}
		n, err := s.attendance.SweepAbsences(ctx, inst.ID, now)
		if err != nil {
			return err
		}
		swept++
		absent += n
	}
	if s.log != nil {
		s.log.Debug("absence sweep run", map[string]interface{}{
			"instances": swept, "absent": absent,
		})
	}
	return nil
}
