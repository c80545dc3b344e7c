// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store holds the canonical in-memory citation graph. All
// mutation funnels through the atomic batch-apply, single-paper patch,
// and author-merge entry points; readers receive immutable snapshots.
package store

import (
	"fmt"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/citegraph/internal/merge"
	"github.com/pdiddy/citegraph/pkg/types"
)

// Snapshot is one immutable view of the graph. Snapshots share no
// mutable containers with the live store: every apply replaces the
// containers it touches (copy-on-write), so a snapshot taken before a
// batch never observes any part of it.
type Snapshot struct {
	Papers        map[string]types.Paper
	Authors       map[string]types.Author
	Institutions  map[string]types.Institution
	Authorships   map[types.AuthorshipKey]types.Authorship
	Relationships map[types.RelationshipKey]types.Relationship
	ExternalIDs   map[types.NamespacedID]string
	Status        types.AppStatus
}

// Stats summarizes entity counts for logging and the CLI.
type Stats struct {
	Papers        int
	Stubs         int
	Authors       int
	Institutions  int
	Authorships   int
	Relationships int
}

// Stats counts the snapshot's entities.
func (s *Snapshot) Stats() Stats {
	st := Stats{
		Papers:        len(s.Papers),
		Authors:       len(s.Authors),
		Institutions:  len(s.Institutions),
		Authorships:   len(s.Authorships),
		Relationships: len(s.Relationships),
	}
	for _, p := range s.Papers {
		if p.IsStub {
			st.Stubs++
		}
	}
	return st
}

// Store is the process-wide graph container. It is safe for concurrent
// readers and a single logical writer (the synchronization channel).
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
	log  *zap.Logger
}

// New returns an empty store in the idle state.
func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{snap: emptySnapshot(), log: log}
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Papers:        map[string]types.Paper{},
		Authors:       map[string]types.Author{},
		Institutions:  map[string]types.Institution{},
		Authorships:   map[types.AuthorshipKey]types.Authorship{},
		Relationships: map[types.RelationshipKey]types.Relationship{},
		ExternalIDs:   map[types.NamespacedID]string{},
		Status:        types.AppStatus{State: types.StateIdle},
	}
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Status returns the current session status.
func (s *Store) Status() types.AppStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Status
}

// ApplyBatch merges one delta into the graph in a single indivisible
// step. Readers observe either the whole delta or none of it.
func (s *Store) ApplyBatch(d types.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.clone()
	if d.Reset {
		status := next.Status
		next = emptySnapshot()
		next.Status = status
	}

	for _, p := range d.Papers {
		s.upsertPaper(next, p)
	}
	for _, a := range d.Authors {
		s.upsertAuthor(next, a)
	}
	for _, inst := range d.Institutions {
		// Institutions are immutable after creation.
		if _, ok := next.Institutions[inst.ID]; !ok {
			next.Institutions[inst.ID] = inst
		}
	}
	for _, e := range d.ExternalIDs {
		s.registerExternalID(next, e)
	}
	for _, a := range d.Authorships {
		s.upsertAuthorship(next, a)
	}
	for _, r := range d.Relationships {
		s.upsertRelationship(next, r)
	}
	for _, p := range d.Patches {
		if err := patchPaper(next, p); err != nil {
			s.log.Warn("patch skipped", zap.String("paper_id", p.PaperID), zap.Error(err))
		}
	}
	for _, m := range d.Merges {
		applyMerge(next, merge.Compute(next.Authors, next.Authorships, next.ExternalIDs, m.SurvivorID, m.VictimIDs))
	}

	s.snap = next
	return nil
}

// PatchPaper updates a single paper's fields, used for hydration writes
// that do not need a full batch.
func (s *Store) PatchPaper(p types.PaperPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.clone()
	if err := patchPaper(next, p); err != nil {
		return err
	}
	s.snap = next
	return nil
}

// MergeAuthors folds victim author records into the survivor as one
// atomic operation. Authorship edges are never observable pointing at a
// deleted author id.
func (s *Store) MergeAuthors(req types.AuthorMergeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snap.Authors[req.SurvivorID]; !ok {
		return fmt.Errorf("merge survivor %s not found", req.SurvivorID)
	}
	next := s.clone()
	applyMerge(next, merge.Compute(next.Authors, next.Authorships, next.ExternalIDs, req.SurvivorID, req.VictimIDs))
	s.snap = next
	return nil
}

// SetStatus transitions the session state. Once in the error state the
// status is held until Reset.
func (s *Store) SetStatus(state types.AppState, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Status.State == types.StateError && state != types.StateError {
		return
	}
	next := s.clone()
	next.Status.State = state
	next.Status.Message = message
	s.snap = next
}

// SetProgress records the overall percentage. Regressions are clamped
// so the UI-facing value never decreases within a session.
func (s *Store) SetProgress(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if percent < s.snap.Status.Progress {
		return
	}
	if percent > 100 {
		percent = 100
	}
	next := s.clone()
	next.Status.Progress = percent
	s.snap = next
}

// Reset discards the whole graph and returns to idle. This is the only
// way out of the error state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = emptySnapshot()
}

// clone shallow-copies every container so the previous snapshot stays
// untouched while the new one is mutated in place.
func (s *Store) clone() *Snapshot {
	return &Snapshot{
		Papers:        maps.Clone(s.snap.Papers),
		Authors:       maps.Clone(s.snap.Authors),
		Institutions:  maps.Clone(s.snap.Institutions),
		Authorships:   maps.Clone(s.snap.Authorships),
		Relationships: maps.Clone(s.snap.Relationships),
		ExternalIDs:   maps.Clone(s.snap.ExternalIDs),
		Status:        s.snap.Status,
	}
}

// upsertPaper merges an incoming paper record. Papers are append-only
// and never re-stubbed: a stub arriving after hydration is dropped, and
// a hydrated record arriving over a stub keeps is_stub cleared.
func (s *Store) upsertPaper(snap *Snapshot, p types.Paper) {
	existing, ok := snap.Papers[p.ID]
	if !ok {
		snap.Papers[p.ID] = p
		return
	}
	if p.IsStub {
		if !existing.IsStub {
			return
		}
		// Stub over stub: keep whichever fields are known.
		if p.Title == "" {
			p.Title = existing.Title
		}
		if p.CitedByCount == 0 {
			p.CitedByCount = existing.CitedByCount
		}
	}
	if p.Abstract == nil {
		p.Abstract = existing.Abstract
	}
	p.AbstractFetched = p.AbstractFetched || existing.AbstractFetched
	p.IsStub = p.IsStub && existing.IsStub
	snap.Papers[p.ID] = p
}

func (s *Store) upsertAuthor(snap *Snapshot, a types.Author) {
	existing, ok := snap.Authors[a.ID]
	if !ok {
		snap.Authors[a.ID] = a
		return
	}
	if a.DisplayName == "" {
		a.DisplayName = existing.DisplayName
	}
	if a.ORCID == "" {
		a.ORCID = existing.ORCID
	}
	a.IsStub = a.IsStub && existing.IsStub
	snap.Authors[a.ID] = a
}

// registerExternalID adds an index entry. An external id never remaps
// to a different internal id; conflicting registrations keep the first
// mapping and are logged as data-quality faults.
func (s *Store) registerExternalID(snap *Snapshot, e types.ExternalIDEntry) {
	if current, ok := snap.ExternalIDs[e.ID]; ok && current != e.InternalID {
		s.log.Warn("external id already mapped",
			zap.String("namespace", string(e.ID.Namespace)),
			zap.String("value", e.ID.Value),
			zap.String("mapped_to", current),
			zap.String("rejected", e.InternalID))
		return
	}
	snap.ExternalIDs[e.ID] = e.InternalID
}

// upsertAuthorship records an authorship edge. Edges referencing an
// unknown paper or author, and duplicate author positions within one
// paper, are data-quality faults: logged, kept best-effort.
func (s *Store) upsertAuthorship(snap *Snapshot, a types.Authorship) {
	if _, ok := snap.Papers[a.PaperID]; !ok {
		s.log.Warn("authorship references unknown paper", zap.String("paper_id", a.PaperID))
	}
	if _, ok := snap.Authors[a.AuthorID]; !ok {
		s.log.Warn("authorship references unknown author", zap.String("author_id", a.AuthorID))
	}
	for key, other := range snap.Authorships {
		if key.PaperID == a.PaperID && key.AuthorID != a.AuthorID && other.Position == a.Position {
			s.log.Warn("duplicate author position",
				zap.String("paper_id", a.PaperID),
				zap.Int("position", a.Position))
			break
		}
	}
	snap.Authorships[a.Key()] = a
}

// upsertRelationship records a directed edge, rejecting self-loops.
func (s *Store) upsertRelationship(snap *Snapshot, r types.Relationship) {
	if r.SourceID == r.TargetID {
		s.log.Warn("self-loop rejected", zap.String("id", r.SourceID), zap.String("kind", string(r.Kind)))
		return
	}
	snap.Relationships[r.Key()] = r
}

func patchPaper(snap *Snapshot, p types.PaperPatch) error {
	paper, ok := snap.Papers[p.PaperID]
	if !ok {
		return fmt.Errorf("paper %s not found", p.PaperID)
	}
	if p.Title != nil {
		paper.Title = *p.Title
	}
	if p.Year != nil {
		paper.Year = *p.Year
	}
	if p.Date != nil {
		paper.Date = *p.Date
	}
	if p.Venue != nil {
		paper.Venue = *p.Venue
	}
	if p.Abstract != nil {
		paper.Abstract = p.Abstract
	}
	if p.FWCI != nil {
		paper.FWCI = *p.FWCI
	}
	if p.CitedByCount != nil {
		paper.CitedByCount = *p.CitedByCount
	}
	if p.Type != nil {
		paper.Type = *p.Type
	}
	if p.Language != nil {
		paper.Language = *p.Language
	}
	if len(p.Keywords) > 0 {
		paper.Keywords = p.Keywords
	}
	if p.OAURL != nil {
		paper.OAURL = *p.OAURL
	}
	if p.OAStatus != nil {
		paper.OAStatus = *p.OAStatus
	}
	if p.MarkHydrated {
		paper.IsStub = false
		paper.AbstractFetched = true
	}
	snap.Papers[p.PaperID] = paper
	return nil
}

func applyMerge(snap *Snapshot, plan merge.Plan) {
	if len(plan.Deletions) == 0 {
		return
	}
	snap.Authors[plan.Survivor.ID] = plan.Survivor
	for _, key := range plan.AuthorshipDeletes {
		delete(snap.Authorships, key)
	}
	for _, edge := range plan.AuthorshipAdds {
		snap.Authorships[edge.Key()] = edge
	}
	for _, e := range plan.Repoint {
		snap.ExternalIDs[e.ID] = e.InternalID
	}
	for _, victim := range plan.Deletions {
		delete(snap.Authors, victim)
	}
}
