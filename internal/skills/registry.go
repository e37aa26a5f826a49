package skills

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds every skill loaded at construction and the FIFO order in
// which skills have been activated. There is no hot reload: skills are
// loaded once, from a single directory, and only their State mutates
// afterward.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Entry
	order   []string // registration order, for a stable Phase 1 catalogue
	activeQ []string // activation order, for Phase 2 injection order
}

// NewRegistry loads every skill under dir (one subdirectory per skill, each
// containing a SKILL.md) into a fresh Registry.
func NewRegistry(dir string) (*Registry, error) {
	entries, err := loadDir(dir)
	if err != nil {
		return nil, err
	}
	return newRegistryFromEntries(entries), nil
}

func newRegistryFromEntries(entries []Entry) *Registry {
	r := &Registry{byName: make(map[string]*Entry, len(entries))}
	for i := range entries {
		e := entries[i]
		r.byName[e.Name] = &e
		r.order = append(r.order, e.Name)
	}
	return r
}

// Activate marks a skill active and appends it to the end of the activation
// queue if it is not already active. Re-activating an already-active skill
// does not move it within the queue.
func (r *Registry) Activate(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("skills: unknown skill %q", name)
	}
	if entry.State == StateActive {
		return nil
	}
	entry.State = StateActive
	r.activeQ = append(r.activeQ, name)
	return nil
}

// Deactivate marks a skill inactive and removes it from the activation
// queue.
func (r *Registry) Deactivate(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("skills: unknown skill %q", name)
	}
	entry.State = StateInactive
	for i, n := range r.activeQ {
		if n == name {
			r.activeQ = append(r.activeQ[:i], r.activeQ[i+1:]...)
			break
		}
	}
	return nil
}

// Catalogue returns every advertised (non-hidden) skill's name and
// description, in registration order, for Phase 1 injection.
func (r *Registry) Catalogue() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		e := r.byName[name]
		if e.Visibility == VisibilityHidden {
			continue
		}
		out = append(out, Entry{Name: e.Name, Description: e.Description})
	}
	return out
}

// ActiveInstructions returns the full instructions body of every active
// skill, in the order each was activated, for Phase 2 injection.
func (r *Registry) ActiveInstructions() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.activeQ))
	for _, name := range r.activeQ {
		e := r.byName[name]
		out = append(out, Entry{Name: e.Name, Instructions: e.Instructions})
	}
	return out
}

// RenderPrompt builds the system-prompt fragment for the current skill
// state: the Phase 1 catalogue followed by Phase 2 instructions for every
// active skill, in activation order. Called on every turn; there is no
// cache to invalidate since skill state changes only through Activate and
// Deactivate.
func (r *Registry) RenderPrompt() string {
	var b strings.Builder

	catalogue := r.Catalogue()
	if len(catalogue) > 0 {
		b.WriteString("Available skills:\n")
		for _, e := range catalogue {
			fmt.Fprintf(&b, "- %s: %s\n", e.Name, e.Description)
		}
	}

	active := r.ActiveInstructions()
	for _, e := range active {
		fmt.Fprintf(&b, "\n--- Skill: %s ---\n%s\n", e.Name, e.Instructions)
	}

	return b.String()
}
