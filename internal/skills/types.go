// Package skills implements the two-phase skill catalogue: every advertised
// skill's name and description is always injected into the system prompt;
// an activated skill's full instructions are additionally injected, in
// activation order.
package skills

// Visibility controls whether a skill appears in the Phase 1 catalogue.
type Visibility string

const (
	VisibilityAdvertised Visibility = "advertised"
	VisibilityHidden     Visibility = "hidden"
)

// State is a skill's current activation state.
type State string

const (
	StateInactive State = "inactive"
	StateActive   State = "active"
)

// Entry is a loaded skill definition: its catalogue metadata plus the full
// instructions body injected only once activated.
type Entry struct {
	Name         string
	Description  string
	Instructions string
	Visibility   Visibility
	State        State
}
