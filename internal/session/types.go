// Package session holds the in-memory detail of a single session: its
// immutable config, mutable property bag, plugin outputs and errors, and
// job list. A DetailHolder is the monitor object a SessionRunner drives;
// a Registry is the process-wide set of holders, grounded on the teacher's
// map+RWMutex Store.
package session

import "time"

// ID identifies a session for the lifetime of the process plus any
// persisted snapshot. Opaque, non-empty.
type ID = string

// Config is the immutable configuration captured at session creation.
type Config struct {
	ID                ID                `json:"id"`
	InitialProperties map[string]string `json:"initialProperties,omitempty"`
}

// NewConfig copies initialProperties so later mutation of the caller's map
// cannot reach back into the config.
func NewConfig(id ID, initialProperties map[string]string) Config {
	return Config{ID: id, InitialProperties: copyStringMap(initialProperties)}
}

// PersistenceStatus mirrors SessionPersistenceStatus: stored with every
// persisted snapshot.
type PersistenceStatus int

const (
	StatusStarting PersistenceStatus = iota
	StatusRunning
	StatusFinalizing
)

func (s PersistenceStatus) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// JobInfo is an opaque job record appended to a session's job list. Kind
// and Payload are left to the job-creator; the holder only orders and
// counts them.
type JobInfo struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// PluginError is an opaque record of a subscriber failure, appended to a
// session's ordered error list.
type PluginError struct {
	PluginLabel string    `json:"pluginLabel"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
}

// Output is the mutable half of a SessionDetail view.
type Output struct {
	Properties    map[string]string `json:"properties,omitempty"`
	PluginErrors  []PluginError     `json:"pluginErrors,omitempty"`
	PluginOutputs map[string]any    `json:"pluginOutputs,omitempty"`
}

// Detail is the external SessionDetail view: {SessionConfig, SessionOutput}.
type Detail struct {
	Config Config `json:"config"`
	Output Output `json:"output"`
}

// Snapshot is the persistence record handed to a Persister: a point-in-time
// copy of the detail, the current persistence status, and the ordered set
// of job ids.
type Snapshot struct {
	SessionID ID
	Detail    Detail
	Status    PersistenceStatus
	JobIDs    []string
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
