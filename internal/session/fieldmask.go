package session

// FieldMask selects which sections of a SessionDetail's output to populate.
// A nil *FieldMask means "everything". Recognized paths are the three
// SessionOutput sections; anything else is silently ignored, per spec.
type FieldMask struct {
	paths map[string]bool
}

const (
	FieldSessionProperty = "output.session_property"
	FieldPluginError     = "output.plugin_error"
	FieldPluginOutput    = "output.plugin_output"
)

var knownFields = map[string]bool{
	FieldSessionProperty: true,
	FieldPluginError:     true,
	FieldPluginOutput:    true,
}

// NewFieldMask builds a mask from the given paths. Unrecognized paths are
// dropped rather than rejected.
func NewFieldMask(paths ...string) *FieldMask {
	m := &FieldMask{paths: make(map[string]bool, len(paths))}
	for _, p := range paths {
		if knownFields[p] {
			m.paths[p] = true
		}
	}
	return m
}

func (m *FieldMask) includes(path string) bool {
	if m == nil {
		return true
	}
	return m.paths[path]
}
