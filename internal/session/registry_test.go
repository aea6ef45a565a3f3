package session

import "testing"

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	if got := r.Count(); got != 0 {
		t.Fatalf("new registry Count() = %d, want 0", got)
	}

	h := NewDetailHolder(NewConfig("a", nil), nil, nil)
	r.Add(h)

	got, ok := r.Get("a")
	if !ok || got != h {
		t.Fatalf("Get(a) = (%v,%v), want the added holder", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) returned ok=true")
	}

	r.Remove("a")
	if _, ok := r.Get("a"); ok {
		t.Error("Get(a) after Remove returned ok=true")
	}
	r.Remove("missing") // must not panic
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()
	r.Add(NewDetailHolder(NewConfig("a", nil), nil, nil))
	r.Add(NewDetailHolder(NewConfig("b", nil), nil, nil))

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d holders, want 2", len(all))
	}
	ids := map[ID]bool{}
	for _, h := range all {
		ids[h.ID()] = true
	}
	if !ids["a"] || !ids["b"] {
		t.Errorf("All() missing expected ids, got %v", ids)
	}
}

func TestRegistryAddReplacesExisting(t *testing.T) {
	r := NewRegistry()
	first := NewDetailHolder(NewConfig("a", nil), nil, nil)
	second := NewDetailHolder(NewConfig("a", nil), nil, nil)
	r.Add(first)
	r.Add(second)

	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1 after re-adding the same id", got)
	}
	got, _ := r.Get("a")
	if got != second {
		t.Error("Get(a) did not return the most recently added holder")
	}
}
