package session

import (
	"log"
	"reflect"
	"sync"
)

// Listener is notified whenever an observable mutation (a property change,
// a plugin error, or a changed plugin output) happens on a session.
type Listener interface {
	SessionChanged(id ID)
}

// Persister writes a point-in-time Snapshot. Implementations must be
// idempotent keyed by SessionID: the newest write wins.
type Persister interface {
	Persist(snap Snapshot) error
}

// DetailHolder is the monitor object guarding one session's detail: the
// property map, plugin-error list, plugin-output map, and job list. The
// job list has its own lock so appending a job never contends with a
// property read, mirroring the teacher's split between the session map's
// lock and each SessionState's own fields.
type DetailHolder struct {
	id ID

	mu            sync.Mutex
	config        Config
	properties    map[string]string
	pluginErrors  []PluginError
	pluginOutputs map[string]any
	status        PersistenceStatus

	jobsMu       sync.Mutex
	jobs         []JobInfo
	jobWatermark int

	listener  Listener
	persister Persister
}

// NewDetailHolder constructs a holder in StatusStarting, seeded from
// config's initial property bag.
func NewDetailHolder(config Config, listener Listener, persister Persister) *DetailHolder {
	return &DetailHolder{
		id:            config.ID,
		config:        config,
		properties:    copyStringMap(config.InitialProperties),
		pluginOutputs: make(map[string]any),
		status:        StatusStarting,
		listener:      listener,
		persister:     persister,
	}
}

// ID returns the session id this holder belongs to.
func (h *DetailHolder) ID() ID { return h.id }

// AddJob appends a job. O(1). Jobs added before the session starts are
// executed as part of startup; jobs added later are returned by the next
// PollJobs call. runner.Run calls PollJobs only once, when it hands the jobs
// to its JobRunner, so jobs added after that are recorded but not run.
func (h *DetailHolder) AddJob(job JobInfo) {
	h.jobsMu.Lock()
	h.jobs = append(h.jobs, job)
	h.jobsMu.Unlock()
}

// PollJobs returns jobs added since the last call and advances the
// watermark under the job lock.
func (h *DetailHolder) PollJobs() []JobInfo {
	h.jobsMu.Lock()
	defer h.jobsMu.Unlock()
	fresh := h.jobs[h.jobWatermark:]
	out := make([]JobInfo, len(fresh))
	copy(out, fresh)
	h.jobWatermark = len(h.jobs)
	return out
}

// AllJobs returns a snapshot copy of every job added so far, regardless of
// the poll watermark.
func (h *DetailHolder) AllJobs() []JobInfo {
	h.jobsMu.Lock()
	defer h.jobsMu.Unlock()
	out := make([]JobInfo, len(h.jobs))
	copy(out, h.jobs)
	return out
}

func (h *DetailHolder) jobIDs() []string {
	h.jobsMu.Lock()
	defer h.jobsMu.Unlock()
	ids := make([]string, len(h.jobs))
	for i, j := range h.jobs {
		ids[i] = j.ID
	}
	return ids
}

// PutProperty upserts a property, returning the previous value (if any).
// The listener fires and a persistence attempt is made iff the value
// actually changed.
func (h *DetailHolder) PutProperty(key, value string) (previous string, had bool) {
	h.mu.Lock()
	previous, had = h.properties[key]
	changed := !had || previous != value
	if changed {
		h.properties[key] = value
	}
	h.mu.Unlock()

	if changed {
		h.notifyAndPersist()
	}
	return previous, had
}

// GetProperty reads a single property.
func (h *DetailHolder) GetProperty(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.properties[key]
	return v, ok
}

// AddPluginError appends a plugin error, unconditionally notifying the
// listener and attempting a persist.
func (h *DetailHolder) AddPluginError(e PluginError) {
	h.mu.Lock()
	h.pluginErrors = append(h.pluginErrors, e)
	h.mu.Unlock()

	h.notifyAndPersist()
}

// PluginOutputFunc transforms the previous output (if present) into the
// next. Returning present=false clears the entry.
type PluginOutputFunc func(prev any, present bool) (next any, nextPresent bool)

// SetPluginOutput atomically computes and stores a plugin's output. The
// listener fires and a persist is attempted iff the new value differs from
// the old one (by reflect.DeepEqual, since outputs are opaque structured
// values).
func (h *DetailHolder) SetPluginOutput(label string, fn PluginOutputFunc) {
	h.mu.Lock()
	prev, existed := h.pluginOutputs[label]
	next, nextPresent := fn(prev, existed)

	changed := false
	switch {
	case !nextPresent:
		if existed {
			delete(h.pluginOutputs, label)
			changed = true
		}
	case !existed || !reflect.DeepEqual(prev, next):
		h.pluginOutputs[label] = next
		changed = true
	}
	h.mu.Unlock()

	if changed {
		h.notifyAndPersist()
	}
}

// SetStatus updates the persistence status recorded in the next snapshot.
// Lifecycle transitions are managed by the runner, not observable session
// content, so this does not itself invoke the listener.
func (h *DetailHolder) SetStatus(s PersistenceStatus) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

// BuildDetail assembles a SessionDetail view. A nil mask populates every
// section; otherwise only the sections the mask names are populated.
func (h *DetailHolder) BuildDetail(mask *FieldMask) Detail {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := Detail{Config: h.config}
	if mask.includes(FieldSessionProperty) {
		out.Output.Properties = copyStringMap(h.properties)
	}
	if mask.includes(FieldPluginError) {
		out.Output.PluginErrors = append([]PluginError(nil), h.pluginErrors...)
	}
	if mask.includes(FieldPluginOutput) {
		out.Output.PluginOutputs = copyAnyMap(h.pluginOutputs)
	}
	return out
}

func (h *DetailHolder) notifyAndPersist() {
	if h.listener != nil {
		h.listener.SessionChanged(h.id)
	}
	h.PersistNow()
}

// PersistNow serializes a point-in-time copy of the detail, current status,
// and job ids, and hands it to the configured Persister. Failures are
// logged and swallowed: a persistence failure must never mask whatever
// primary operation triggered it.
func (h *DetailHolder) PersistNow() {
	if h.persister == nil {
		return
	}

	h.mu.Lock()
	detail := Detail{
		Config: h.config,
		Output: Output{
			Properties:    copyStringMap(h.properties),
			PluginErrors:  append([]PluginError(nil), h.pluginErrors...),
			PluginOutputs: copyAnyMap(h.pluginOutputs),
		},
	}
	status := h.status
	h.mu.Unlock()

	snap := Snapshot{
		SessionID: h.id,
		Detail:    detail,
		Status:    status,
		JobIDs:    h.jobIDs(),
	}
	if err := h.persister.Persist(snap); err != nil {
		log.Printf("session %s: persist failed: %v", h.id, err)
	}
}
