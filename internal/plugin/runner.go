package plugin

import (
	"fmt"
	"sync"
	"time"

	"github.com/omnilab/atsconsole/internal/session"
)

// Runner holds a session's ordered plugin list and dispatches lifecycle
// events and notifications to their subscribers, isolating each subscriber
// call so a failing plugin never aborts the session.
type Runner struct {
	plugins []Plugin
	info    SessionInfo
	holder  *session.DetailHolder

	// notifySem bounds the number of notification goroutines running at
	// once, one pool slot per in-flight notification.
	notifySem chan struct{}
	wg        sync.WaitGroup
}

// NewRunner returns a Runner for holder's session, dispatching to plugins
// in the given order. poolSize bounds concurrent notification dispatch;
// values <=0 default to 8.
func NewRunner(holder *session.DetailHolder, plugins []Plugin, poolSize int) *Runner {
	if poolSize <= 0 {
		poolSize = 8
	}
	return &Runner{
		plugins:   plugins,
		info:      &holderSessionInfo{holder: holder},
		holder:    holder,
		notifySem: make(chan struct{}, poolSize),
	}
}

// FireStarting calls OnSessionStarting on every StartingSubscriber, in
// plugin registration order, on the caller's goroutine.
func (r *Runner) FireStarting() {
	for _, p := range r.plugins {
		for _, sub := range p.Subscribers() {
			if s, ok := sub.(StartingSubscriber); ok {
				r.callSafe(p.Label(), func() error { return s.OnSessionStarting(r.info) })
			}
		}
	}
}

// FireStarted calls OnSessionStarted on every StartedSubscriber, in plugin
// registration order, on the caller's goroutine.
func (r *Runner) FireStarted() {
	for _, p := range r.plugins {
		for _, sub := range p.Subscribers() {
			if s, ok := sub.(StartedSubscriber); ok {
				r.callSafe(p.Label(), func() error { return s.OnSessionStarted(r.info) })
			}
		}
	}
}

// FireEnded calls OnSessionEnded on every EndedSubscriber, in reverse
// plugin registration order, on the caller's goroutine.
func (r *Runner) FireEnded(cause error) {
	for i := len(r.plugins) - 1; i >= 0; i-- {
		p := r.plugins[i]
		subs := p.Subscribers()
		for j := len(subs) - 1; j >= 0; j-- {
			if s, ok := subs[j].(EndedSubscriber); ok {
				r.callSafe(p.Label(), func() error { return s.OnSessionEnded(r.info, cause) })
			}
		}
	}
}

// Notify dispatches a user notification to every NotificationSubscriber on
// a pool goroutine, bounded by notifySem. It does not block on completion;
// call Wait to drain in-flight dispatches.
func (r *Runner) Notify(notification any) {
	for _, p := range r.plugins {
		for _, sub := range p.Subscribers() {
			s, ok := sub.(NotificationSubscriber)
			if !ok {
				continue
			}
			label := p.Label()
			r.wg.Add(1)
			r.notifySem <- struct{}{}
			go func() {
				defer r.wg.Done()
				defer func() { <-r.notifySem }()
				r.callSafe(label, func() error { return s.OnSessionNotification(r.info, notification) })
			}()
		}
	}
}

// Dispatch delivers a typed message to every MessageSubscriber bound to
// msgType, synchronously, in plugin registration order.
func (r *Runner) Dispatch(msgType string, payload any) {
	for _, p := range r.plugins {
		for _, sub := range p.Subscribers() {
			s, ok := sub.(MessageSubscriber)
			if !ok || s.MessageType() != msgType {
				continue
			}
			r.callSafe(p.Label(), func() error { return s.OnMessage(r.info, payload) })
		}
	}
}

// Wait blocks until every dispatched notification has completed.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// callSafe runs fn, converting a returned error or a recovered panic into
// a session.PluginError rather than letting either escape.
func (r *Runner) callSafe(label string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.holder.AddPluginError(session.PluginError{
				PluginLabel: label,
				Message:     fmt.Sprintf("panic: %v", rec),
				Time:        time.Now().UTC(),
			})
		}
	}()
	if err := fn(); err != nil {
		r.holder.AddPluginError(session.PluginError{
			PluginLabel: label,
			Message:     err.Error(),
			Time:        time.Now().UTC(),
		})
	}
}
