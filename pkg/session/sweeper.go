package session

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vinodyk/patient-appointments/pkg/logging"
)

// Sweeper periodically evicts sessions idle longer than maxIdle. It is an
// eviction policy only; correctness never depends on it running.
type Sweeper struct {
	manager *Manager
	maxIdle time.Duration
	cron    *cron.Cron
	log     logging.Logger
}

// NewSweeper schedules idle-session eviction on the given cron expression
// (e.g. "@every 10m"). A zero maxIdle disables sweeping entirely.
func NewSweeper(m *Manager, schedule string, maxIdle time.Duration, log logging.Logger) (*Sweeper, error) {
	if log == nil {
		log = logging.NoOp{}
	}
	s := &Sweeper{
		manager: m,
		maxIdle: maxIdle,
		log:     log.With("component", "sweeper"),
	}
	if maxIdle <= 0 {
		return s, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return nil, err
	}
	s.cron = c
	return s, nil
}

// Start begins the schedule. No-op when sweeping is disabled.
func (s *Sweeper) Start() {
	if s.cron != nil {
		s.cron.Start()
		s.log.Info("sweeper started", "max_idle", s.maxIdle.String())
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep deletes every session idle longer than maxIdle. Each candidate is
// checked under its session lock so an in-flight turn is never evicted
// mid-pipeline.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.maxIdle <= 0 {
		return
	}

	ids, err := s.manager.List(ctx)
	if err != nil {
		s.log.Warn("sweep list failed", "error", err)
		return
	}

	now := time.Now().UTC()
	removed := 0
	for _, id := range ids {
		s.manager.Lock(id)
		sess, err := s.manager.Get(ctx, id)
		if err != nil {
			s.manager.Unlock(id)
			if !errors.Is(err, ErrSessionNotFound) {
				s.log.Warn("sweep load failed", "session_id", id, "error", err)
			}
			continue
		}
		if sess.IdleSince(now) > s.maxIdle {
			if err := s.manager.Delete(ctx, id); err != nil {
				s.log.Warn("sweep delete failed", "session_id", id, "error", err)
			} else {
				removed++
			}
		}
		s.manager.Unlock(id)
	}

	if removed > 0 {
		s.log.Info("idle sessions evicted", "count", removed)
	}
}
