// Package plugin runs a session's ordered list of loaded plugins,
// dispatching lifecycle events and notifications to whichever subscriber
// interfaces each plugin implements, and isolating subscriber failures
// behind session.PluginError rather than letting them abort the session.
package plugin

import (
	"github.com/omnilab/atsconsole/internal/session"
)

// SessionInfo is the view a plugin subscriber is given of its session: a
// narrow façade over session.DetailHolder restricted to property
// read/write, job submission, and plugin-output read/write.
type SessionInfo interface {
	ID() session.ID
	GetProperty(key string) (string, bool)
	PutProperty(key, value string) (previous string, had bool)
	AddJob(job session.JobInfo)
	SetPluginOutput(label string, fn session.PluginOutputFunc)
}

// StartingSubscriber is notified once, before the session's jobs run.
type StartingSubscriber interface {
	OnSessionStarting(info SessionInfo) error
}

// StartedSubscriber is notified once the session has transitioned to Running.
type StartedSubscriber interface {
	OnSessionStarted(info SessionInfo) error
}

// EndedSubscriber is notified once, with the runJobs error if any.
type EndedSubscriber interface {
	OnSessionEnded(info SessionInfo, cause error) error
}

// NotificationSubscriber receives arbitrary user-defined session
// notifications, dispatched on a pool goroutine.
type NotificationSubscriber interface {
	OnSessionNotification(info SessionInfo, notification any) error
}

// MessageSubscriber binds to one message type and receives its payloads.
type MessageSubscriber interface {
	MessageType() string
	OnMessage(info SessionInfo, payload any) error
}

// Plugin is a named bundle of subscriber objects. A subscriber may
// implement any subset of the event interfaces above; the runner checks
// each with a type assertion rather than requiring a single fat interface.
type Plugin interface {
	Label() string
	Subscribers() []any
}

// holderSessionInfo adapts a session.DetailHolder to SessionInfo.
type holderSessionInfo struct {
	holder *session.DetailHolder
}

func (h *holderSessionInfo) ID() session.ID { return h.holder.ID() }

func (h *holderSessionInfo) GetProperty(key string) (string, bool) {
	return h.holder.GetProperty(key)
}

func (h *holderSessionInfo) PutProperty(key, value string) (string, bool) {
	return h.holder.PutProperty(key, value)
}

func (h *holderSessionInfo) AddJob(job session.JobInfo) {
	h.holder.AddJob(job)
}

func (h *holderSessionInfo) SetPluginOutput(label string, fn session.PluginOutputFunc) {
	h.holder.SetPluginOutput(label, fn)
}
