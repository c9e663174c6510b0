package memos

import (
	"context"
	"errors"
	"fmt"
	"github.com/kotche/memo/infrastructure/metrics"
	"github.com/kotche/memo/infrastructure/tracing"
	"github.com/kotche/memo/internal/model"
	"github.com/kotche/memo/internal/repository/memos"
	"github.com/kotche/memo/internal/service/scheduler"
	"go.opentelemetry.io/otel/attribute"
	"sync"
	"time"
)

const (
	defaultOperationTimeout = 10 * time.Second
	defaultReminderTimeout  = 5 * time.Second
)

type Options struct {
	// OperationTimeout bounds one operation including its re-fetch.
	OperationTimeout time.Duration
	// ReminderTimeout bounds one schedule or cancel call.
	ReminderTimeout time.Duration
	AllowEmptyTitle bool
}

// DefaultCoordinator keeps an in-memory copy of each user's memos in step
// with the store, and reminder triggers in step with the memos.
//
// Every mutation writes to the store, queues reminder reconciliation and then
// reloads the whole list. Mutations of one user are serialised; list results
// are applied in the order their fetches were issued.
type DefaultCoordinator struct {
	store     memos.Repository
	scheduler scheduler.Scheduler
	opts      Options

	mu    sync.Mutex
	users map[model.UserID]*userMemos

	// busyQueues counts users whose reminder queue is being worked off.
	reconcileMu sync.Mutex
	busyQueues  int
	idle        *sync.Cond
}

func NewDefaultCoordinator(store memos.Repository, scheduler scheduler.Scheduler, opts Options) *DefaultCoordinator {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}
	if opts.ReminderTimeout <= 0 {
		opts.ReminderTimeout = defaultReminderTimeout
	}

	d := &DefaultCoordinator{
		store:     store,
		scheduler: scheduler,
		opts:      opts,
		users:     make(map[model.UserID]*userMemos),
	}
	d.idle = sync.NewCond(&d.reconcileMu)
	return d
}

// Create stores a new memo and schedules its reminder. A memo without id gets
// one here; the returned memo carries the id even on failure, so a retry with
// it cannot produce a duplicate.
func (d *DefaultCoordinator) Create(ctx context.Context, userID model.UserID, memo model.Memo) (model.Memo, error) {
	if memo.ID == "" {
		memo.ID = model.NewMemoID()
	}
	if userID == "" {
		return memo, model.ErrNotAuthenticated
	}
	if err := d.validate(memo); err != nil {
		return memo, err
	}

	state := d.state(userID)
	gen := state.generation()
	err := d.run(ctx, "create", userID, func(ctx context.Context) error {
		state.writeMu.Lock()
		defer state.writeMu.Unlock()

		if err := d.store.Put(ctx, userID, memo); err != nil {
			return fmt.Errorf("failed to create memo '%s': %w", memo.ID, err)
		}
		d.reconcile(state, scheduleJob(model.ReminderFor(userID, memo)))

		_, err := d.refresh(ctx, userID, state, gen)
		return err
	})

	return memo, err
}

func (d *DefaultCoordinator) FetchAll(ctx context.Context, userID model.UserID) ([]model.Memo, error) {
	if userID == "" {
		return nil, model.ErrNotAuthenticated
	}

	var (
		state  = d.state(userID)
		gen    = state.generation()
		result []model.Memo
	)
	err := d.run(ctx, "fetch", userID, func(ctx context.Context) error {
		var err error
		result, err = d.refresh(ctx, userID, state, gen)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Update overwrites every field of the stored memo and reschedules its
// reminder unconditionally.
func (d *DefaultCoordinator) Update(ctx context.Context, userID model.UserID, memo model.Memo) error {
	if userID == "" {
		return model.ErrNotAuthenticated
	}
	if err := d.validate(memo); err != nil {
		return err
	}

	state := d.state(userID)
	gen := state.generation()
	return d.run(ctx, "update", userID, func(ctx context.Context) error {
		state.writeMu.Lock()
		defer state.writeMu.Unlock()

		if err := d.store.Put(ctx, userID, memo); err != nil {
			return fmt.Errorf("failed to update memo '%s': %w", memo.ID, err)
		}
		d.reconcile(state, scheduleJob(model.ReminderFor(userID, memo)))

		_, err := d.refresh(ctx, userID, state, gen)
		return err
	})
}

func (d *DefaultCoordinator) Delete(ctx context.Context, userID model.UserID, memo model.Memo) error {
	if userID == "" {
		return model.ErrNotAuthenticated
	}

	state := d.state(userID)
	gen := state.generation()
	return d.run(ctx, "delete", userID, func(ctx context.Context) error {
		state.writeMu.Lock()
		defer state.writeMu.Unlock()

		if err := d.store.Delete(ctx, userID, memo.ID); err != nil {
			return fmt.Errorf("failed to delete memo '%s': %w", memo.ID, err)
		}
		d.reconcile(state, cancelJob(userID, memo.ID))

		_, err := d.refresh(ctx, userID, state, gen)
		return err
	})
}

// Resync reloads the memos of userID and registers a trigger for each of them
// again, e.g. once notifications have been allowed after the memos were
// written.
func (d *DefaultCoordinator) Resync(ctx context.Context, userID model.UserID) error {
	if userID == "" {
		return model.ErrNotAuthenticated
	}

	state := d.state(userID)
	gen := state.generation()
	return d.run(ctx, "resync", userID, func(ctx context.Context) error {
		state.writeMu.Lock()
		defer state.writeMu.Unlock()

		list, err := d.refresh(ctx, userID, state, gen)
		if err != nil {
			return err
		}
		for _, memo := range list {
			d.reconcile(state, scheduleJob(model.ReminderFor(userID, memo)))
		}
		return nil
	})
}

// Memos returns a copy of the last applied list for userID.
func (d *DefaultCoordinator) Memos(userID model.UserID) []model.Memo {
	d.mu.Lock()
	state, ok := d.users[userID]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	return state.snapshot()
}

// Forget drops the in-memory list of userID, e.g. on sign-out. Results of
// fetches and mutations already in flight are not installed; queued reminder
// jobs still run.
func (d *DefaultCoordinator) Forget(userID model.UserID) {
	d.mu.Lock()
	state, ok := d.users[userID]
	d.mu.Unlock()
	if !ok {
		return
	}
	state.reset()
}

// Wait blocks until queued reminder reconciliation has finished.
func (d *DefaultCoordinator) Wait() {
	d.reconcileMu.Lock()
	defer d.reconcileMu.Unlock()

	for d.busyQueues > 0 {
		d.idle.Wait()
	}
}

// run executes fn as a task that outlives the caller: cancelling ctx stops
// the wait, not the operation, so the in-memory list still converges.
func (d *DefaultCoordinator) run(ctx context.Context, op string, userID model.UserID, fn func(ctx context.Context) error) error {
	start := time.Now()
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.OperationTimeout)

	done := make(chan error, 1)
	go func() {
		defer cancel()

		spanCtx, span := tracing.StartSpan(taskCtx, op+"_memo", attribute.String("user_id", string(userID)))
		err := fn(spanCtx)
		span.End()

		if err != nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s: %w", model.ErrTimeout, op, err)
		}
		metrics.ObserveMemoOperation(op, err, time.Since(start))
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: %w", model.ErrTimeout, op, ctx.Err())
		}
		return ctx.Err()
	}
}

func (d *DefaultCoordinator) refresh(ctx context.Context, userID model.UserID, state *userMemos, gen uint64) ([]model.Memo, error) {
	ticket := state.issued.Add(1)

	list, err := d.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memos for user '%s': %w", userID, err)
	}

	return state.apply(gen, ticket, list), nil
}

func (d *DefaultCoordinator) validate(memo model.Memo) error {
	if d.opts.AllowEmptyTitle {
		return memo.ValidateUntitled()
	}
	return memo.Validate()
}

func (d *DefaultCoordinator) state(userID model.UserID) *userMemos {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.users[userID]
	if !ok {
		state = &userMemos{}
		d.users[userID] = state
	}
	return state
}
