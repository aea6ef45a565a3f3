// Package runner drives a single session's cooperative state machine:
// Created → Preparing → Starting → Running → Ended → Closed, coordinating
// job creation, plugin lifecycle dispatch, and queued notifications.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/omnilab/atsconsole/internal/plugin"
	"github.com/omnilab/atsconsole/internal/session"
)

// ErrAborted is returned by Run when the session was aborted before
// onStarted fired (before or during onStarting). SessionStartedEvent is
// never observed in this case.
var ErrAborted = errors.New("session aborted before starting")

// State is a position in the session runner's state machine.
type State int

const (
	Created State = iota
	Preparing
	Starting
	Running
	Ended
	Closed
)

var stateNames = map[State]string{
	Created:   "created",
	Preparing: "preparing",
	Starting:  "starting",
	Running:   "running",
	Ended:     "ended",
	Closed:    "closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

const abortedWhenRunningProperty = "session.aborted_when_running"

// JobRunner executes a session's jobs, blocking until they complete, abort,
// or the context is cancelled.
type JobRunner interface {
	RunJobs(ctx context.Context, jobs []session.JobInfo) error
	Abort()
}

// pendingNotification is a notification accepted before Running, to be
// delivered synchronously in arrival order before onStarting fires.
type pendingNotification struct {
	value any
}

// Runner is the long-running cooperative task for one session.
type Runner struct {
	holder    *session.DetailHolder
	plugins   *plugin.Runner
	jobRunner JobRunner

	mu       sync.Mutex
	state    State
	draining bool // set under mu once the final drain begins; blocks further NotifySession acceptance
	aborted  bool // set under mu by AbortSession; checked before onStarting/onStarted fire

	cached []pendingNotification

	abortOnce sync.Once
	cancel    context.CancelFunc

	notifyGroup errgroup.Group
}

// New returns a Runner in the Created state.
func New(holder *session.DetailHolder, plugins *plugin.Runner, jobRunner JobRunner) *Runner {
	return &Runner{
		holder:    holder,
		plugins:   plugins,
		jobRunner: jobRunner,
		state:     Created,
	}
}

// GetSession returns a consistent, masked view of the session, safe to call
// from any state.
func (r *Runner) GetSession(mask *session.FieldMask) session.Detail {
	return r.holder.BuildDetail(mask)
}

// State reports the runner's current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()

	switch s {
	case Running:
		r.holder.SetStatus(session.StatusRunning)
	case Ended:
		r.holder.SetStatus(session.StatusFinalizing)
	}
}

// NotifySession queues a user notification for dispatch, unless the final
// drain has already begun, in which case it returns false. Notifications
// received before Running are cached and delivered synchronously, in
// arrival order, immediately before onStarting fires; notifications
// received at or after Running are dispatched on the plugin pool
// immediately.
func (r *Runner) NotifySession(value any) bool {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return false
	}
	if r.state < Running {
		r.cached = append(r.cached, pendingNotification{value: value})
		r.mu.Unlock()
		return true
	}

	r.notifyGroup.Go(func() error {
		r.plugins.Notify(value)
		return nil
	})
	r.mu.Unlock()
	return true
}

// AbortSession marks the session aborted and asks the job runner to stop.
// Idempotent. Legal from Created through Running; if called before
// onStarting fires, Run skips straight to Ended without ever firing
// onStarting or onStarted.
func (r *Runner) AbortSession() {
	r.abortOnce.Do(func() {
		r.mu.Lock()
		r.aborted = true
		r.mu.Unlock()

		r.holder.PutProperty(abortedWhenRunningProperty, "true")
		if r.jobRunner != nil {
			r.jobRunner.Abort()
		}
		if r.cancel != nil {
			r.cancel()
		}
	})
}

// isAborted reports whether AbortSession has been called.
func (r *Runner) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// Run drives the full state machine to completion. jobs are the jobs
// assembled by createAndAddJobs (job creation itself is out of scope for
// this package; the caller supplies the already-built job list).
func (r *Runner) Run(ctx context.Context, prepareEnvironment func(context.Context) error, jobs []session.JobInfo) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	r.setState(Preparing)
	if prepareEnvironment != nil {
		if err := prepareEnvironment(ctx); err != nil {
			r.setState(Ended)
			r.plugins.FireEnded(err)
			r.finishDrainAndClose()
			return fmt.Errorf("prepare environment: %w", err)
		}
	}

	for _, j := range jobs {
		r.holder.AddJob(j)
	}

	r.setState(Starting)
	r.deliverCachedNotifications()
	if r.isAborted() {
		return r.endAborted()
	}
	r.plugins.FireStarting()

	if r.isAborted() {
		return r.endAborted()
	}
	r.setState(Running)
	r.plugins.FireStarted()

	runErr := r.jobRunner.RunJobs(ctx, r.holder.PollJobs())

	r.setState(Ended)
	r.plugins.FireEnded(runErr)
	r.finishDrainAndClose()

	return runErr
}

// endAborted transitions straight to Ended/Closed without ever having fired
// onStarted, for an abort observed before the session started.
func (r *Runner) endAborted() error {
	r.setState(Ended)
	r.plugins.FireEnded(ErrAborted)
	r.finishDrainAndClose()
	return ErrAborted
}

// deliverCachedNotifications replays notifications queued before Running,
// synchronously, in arrival order.
func (r *Runner) deliverCachedNotifications() {
	r.mu.Lock()
	cached := r.cached
	r.cached = nil
	r.mu.Unlock()

	for _, n := range cached {
		r.plugins.Notify(n.value)
		r.plugins.Wait()
	}
}

// finishDrainAndClose blocks further notification acceptance, waits for all
// in-flight pool notifications to finish, and transitions to Closed. It runs
// on every path to Closed, whatever the job-runner error. Plugins have no
// close hook, so no plugin resources are released here.
func (r *Runner) finishDrainAndClose() {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	_ = r.notifyGroup.Wait()
	r.plugins.Wait()
	r.setState(Closed)
}
