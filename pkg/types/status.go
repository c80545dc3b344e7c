// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AppState is the coarse lifecycle state of one analysis session.
type AppState string

const (
	StateIdle      AppState = "idle"
	StateLoading   AppState = "loading"
	StateEnriching AppState = "enriching"
	StateActive    AppState = "active"

	// StateError is terminal for the session until an external reset.
	StateError AppState = "error"
)

// AppStatus is the UI-facing session status. Progress is 0-100 and
// monotonic within a phase; it resets only on a phase transition.
type AppStatus struct {
	State    AppState `json:"state" yaml:"state"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
	Progress int      `json:"progress" yaml:"progress"`
}
