// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MessageKind tags a message crossing the pipeline/store boundary.
type MessageKind string

// Graph-mutation kinds. These are batchable: all mutation messages in
// one tick are folded into a single atomic batch apply.
const (
	KindPaperUpsert        MessageKind = "graph/paper"
	KindAuthorUpsert       MessageKind = "graph/author"
	KindInstitutionUpsert  MessageKind = "graph/institution"
	KindAuthorshipUpsert   MessageKind = "graph/authorship"
	KindRelationshipUpsert MessageKind = "graph/relationship"
	KindPaperPatch         MessageKind = "graph/paper-patch"
	KindExternalID         MessageKind = "graph/external-id"
	KindAuthorMerge        MessageKind = "graph/author-merge"
	KindGraphReset         MessageKind = "graph/reset"
)

// Control kinds. These are immediate: processed one at a time, in
// arrival order, after the tick's batch has been applied.
const (
	KindProgress      MessageKind = "progress/update"
	KindStatus        MessageKind = "status/update"
	KindPhaseComplete MessageKind = "phase/complete"
	KindWarning       MessageKind = "warning"
	KindFatal         MessageKind = "fatal"
)

// batchableKinds is the static classification table for the
// synchronization channel. Kinds absent from this table are control
// kinds; kinds absent from both sets are unknown and dropped.
var batchableKinds = map[MessageKind]bool{
	KindPaperUpsert:        true,
	KindAuthorUpsert:       true,
	KindInstitutionUpsert:  true,
	KindAuthorshipUpsert:   true,
	KindRelationshipUpsert: true,
	KindPaperPatch:         true,
	KindExternalID:         true,
	KindAuthorMerge:        true,
	KindGraphReset:         true,
}

var controlKinds = map[MessageKind]bool{
	KindProgress:      true,
	KindStatus:        true,
	KindPhaseComplete: true,
	KindWarning:       true,
	KindFatal:         true,
}

// Batchable reports whether kind is a graph-mutation kind.
func Batchable(kind MessageKind) bool { return batchableKinds[kind] }

// KnownKind reports whether kind is classified at all.
func KnownKind(kind MessageKind) bool { return batchableKinds[kind] || controlKinds[kind] }

// AuthorMergeRequest asks the store to fold victim author records into
// the survivor. The concrete rewrite plan is computed against the store
// state current at apply time.
type AuthorMergeRequest struct {
	SurvivorID string   `json:"survivor_id" yaml:"survivor_id"`
	VictimIDs  []string `json:"victim_ids" yaml:"victim_ids"`
}

// ProgressUpdate carries one overall percentage for the UI.
type ProgressUpdate struct {
	Percent int `json:"percent" yaml:"percent"`
}

// StatusUpdate transitions the session state.
type StatusUpdate struct {
	State   AppState `json:"state" yaml:"state"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// Pipeline phase names carried by PhaseComplete messages.
const (
	PhaseSeed   = "seed"
	PhaseEnrich = "enrich"
	PhaseExtend = "extend"
)

// PhaseComplete signals that a pipeline phase finished. The enrich
// completion is the sole trigger for the extend phase.
type PhaseComplete struct {
	Phase string `json:"phase" yaml:"phase"`
}

// Message is a tagged union: Kind selects which payload field is set.
type Message struct {
	Kind MessageKind `json:"kind" yaml:"kind"`

	Paper        *Paper              `json:"paper,omitempty" yaml:"paper,omitempty"`
	Author       *Author             `json:"author,omitempty" yaml:"author,omitempty"`
	Institution  *Institution        `json:"institution,omitempty" yaml:"institution,omitempty"`
	Authorship   *Authorship         `json:"authorship,omitempty" yaml:"authorship,omitempty"`
	Relationship *Relationship       `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	Patch        *PaperPatch         `json:"patch,omitempty" yaml:"patch,omitempty"`
	ExternalID   *ExternalIDEntry    `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	Merge        *AuthorMergeRequest `json:"merge,omitempty" yaml:"merge,omitempty"`
	Progress     *ProgressUpdate     `json:"progress,omitempty" yaml:"progress,omitempty"`
	Status       *StatusUpdate       `json:"status,omitempty" yaml:"status,omitempty"`
	Phase        *PhaseComplete      `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Text carries the warning or fatal error description.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Delta is one tick's worth of batchable messages folded into a single
// atomic unit of graph mutation.
type Delta struct {
	Reset         bool
	Papers        []Paper
	Authors       []Author
	Institutions  []Institution
	Authorships   []Authorship
	Relationships []Relationship
	Patches       []PaperPatch
	ExternalIDs   []ExternalIDEntry
	Merges        []AuthorMergeRequest
}

// Empty reports whether the delta carries no mutations.
func (d Delta) Empty() bool {
	return !d.Reset &&
		len(d.Papers) == 0 && len(d.Authors) == 0 && len(d.Institutions) == 0 &&
		len(d.Authorships) == 0 && len(d.Relationships) == 0 &&
		len(d.Patches) == 0 && len(d.ExternalIDs) == 0 && len(d.Merges) == 0
}
