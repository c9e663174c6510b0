package memos

import (
	"context"
	"github.com/kotche/memo/infrastructure/metrics"
	"github.com/kotche/memo/internal/model"
	"log"
	"sync"
	"sync/atomic"
)

type userMemos struct {
	// writeMu serialises mutations: store write, reminder enqueue, re-fetch.
	writeMu sync.Mutex

	mu      sync.RWMutex
	memos   []model.Memo
	issued  atomic.Uint64
	applied uint64
	// gen is bumped by reset; results of operations started before it are
	// never installed.
	gen uint64

	jobsMu   sync.Mutex
	jobs     []reminderJob
	draining bool
}

// apply installs list unless a fetch issued later has already been applied,
// and returns the current list either way. A list fetched by an operation of
// an older generation is returned to its caller but not installed.
func (s *userMemos) apply(gen, ticket uint64, list []model.Memo) []model.Memo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return cloneMemos(list)
	}
	if ticket > s.applied {
		s.memos = list
		s.applied = ticket
	}
	return cloneMemos(s.memos)
}

func (s *userMemos) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *userMemos) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memos = nil
	s.applied = s.issued.Load()
	s.gen++
}

func (s *userMemos) snapshot() []model.Memo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMemos(s.memos)
}

func cloneMemos(memos []model.Memo) []model.Memo {
	if memos == nil {
		return nil
	}
	out := make([]model.Memo, len(memos))
	copy(out, memos)
	return out
}

type reminderJob struct {
	cancel   bool
	reminder model.Reminder
}

func scheduleJob(reminder model.Reminder) reminderJob {
	return reminderJob{reminder: reminder}
}

func cancelJob(userID model.UserID, key model.MemoID) reminderJob {
	return reminderJob{cancel: true, reminder: model.Reminder{UserID: userID, Key: key}}
}

// reconcile queues job behind earlier jobs of the same user. Jobs run one at
// a time in enqueue order, so a later schedule always lands after an earlier
// one for the same memo. Failures are logged and never reach the caller.
func (d *DefaultCoordinator) reconcile(state *userMemos, job reminderJob) {
	state.jobsMu.Lock()
	state.jobs = append(state.jobs, job)
	if state.draining {
		state.jobsMu.Unlock()
		return
	}
	state.draining = true
	d.beginReconcile()
	state.jobsMu.Unlock()

	go func() {
		defer d.endReconcile()
		for {
			state.jobsMu.Lock()
			if len(state.jobs) == 0 {
				state.draining = false
				state.jobsMu.Unlock()
				return
			}
			next := state.jobs[0]
			state.jobs = state.jobs[1:]
			state.jobsMu.Unlock()

			d.runReminderJob(next)
		}
	}()
}

func (d *DefaultCoordinator) beginReconcile() {
	d.reconcileMu.Lock()
	d.busyQueues++
	d.reconcileMu.Unlock()
}

func (d *DefaultCoordinator) endReconcile() {
	d.reconcileMu.Lock()
	defer d.reconcileMu.Unlock()

	d.busyQueues--
	if d.busyQueues == 0 {
		d.idle.Broadcast()
	}
}

func (d *DefaultCoordinator) runReminderJob(job reminderJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.ReminderTimeout)
	defer cancel()

	r := job.reminder
	if job.cancel {
		if err := d.scheduler.Cancel(ctx, r.UserID, r.Key); err != nil {
			metrics.ReminderFailuresCounter.WithLabelValues("cancel").Inc()
			log.Printf("failed to cancel reminder for memo '%s' of user '%s': %v", r.Key, r.UserID, err)
		}
		return
	}

	if err := d.scheduler.Schedule(ctx, r); err != nil {
		metrics.ReminderFailuresCounter.WithLabelValues("schedule").Inc()
		log.Printf("failed to schedule reminder for memo '%s' of user '%s': %v", r.Key, r.UserID, err)
	}
}
