package vcrole

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// startupDelay gives the gateway time to populate guild state before
// the first reconciliation.
const startupDelay = 5 * time.Second

// Scheduler fires the reconciler shortly after startup and then at
// fixed UTC hours.
type Scheduler struct {
	hours  []int
	run    func()
	logger *zap.Logger
	stop   chan struct{}
	done   chan struct{}
}

func NewScheduler(hoursUTC []int, run func(), logger *zap.Logger) *Scheduler {
	hours := make([]int, 0, len(hoursUTC))
	for _, h := range hoursUTC {
		if h >= 0 && h < 24 {
			hours = append(hours, h)
		}
	}
	sort.Ints(hours)
	return &Scheduler{
		hours:  hours,
		run:    run,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		select {
		case <-time.After(startupDelay):
			s.run()
		case <-s.stop:
			return
		}

		for {
			next := NextRun(time.Now(), s.hours)
			s.logger.Info("next role reconciliation scheduled", zap.Time("at", next))
			select {
			case <-time.After(time.Until(next)):
				s.run()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// NextRun returns the first configured UTC hour strictly after now.
func NextRun(now time.Time, hoursUTC []int) time.Time {
	now = now.UTC()
	if len(hoursUTC) == 0 {
		return now.Add(24 * time.Hour)
	}
	for _, h := range hoursUTC {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, time.UTC)
		if candidate.After(now) {
			return candidate
		}
	}
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hoursUTC[0], 0, 0, 0, time.UTC)
}
