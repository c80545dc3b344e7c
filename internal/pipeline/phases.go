// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/citegraph/internal/fetch"
	"github.com/pdiddy/citegraph/internal/progress"
	"github.com/pdiddy/citegraph/internal/store"
	"github.com/pdiddy/citegraph/pkg/types"
)

// seed resets the graph, ingests the master paper in full, then fetches
// its direct citations and ingests each citing paper as a stub with its
// authorship and citation edges.
func (p *Pipeline) seed(ctx context.Context, master *fetch.RawRecord) error {
	p.emit(
		types.Message{Kind: types.KindGraphReset},
		statusMsg(types.StateLoading, "building citation graph"),
		p.progressMsg(progress.StepSeed, 0),
	)

	masterID, msgs := p.ingestRecord(master, false)
	p.mu.Lock()
	p.masterID = masterID
	p.masterIDs = master.ExternalIDs()
	p.mu.Unlock()
	p.emit(msgs...)

	primary := primaryID(master.ExternalIDs())
	citers, err := p.client.FetchCitations(ctx, primary, p.cfg.MaxSeedResults)
	if err != nil {
		return fmt.Errorf("fetching direct citations: %w", err)
	}
	p.log.Info("seed citations fetched", zap.Int("count", len(citers)))

	for i := range citers {
		rec := &citers[i]
		citerID, citerMsgs := p.ingestRecord(rec, true)
		citerMsgs = append(citerMsgs, types.Message{
			Kind:         types.KindRelationshipUpsert,
			Relationship: &types.Relationship{SourceID: citerID, TargetID: masterID, Kind: types.RelCites},
		})
		citerMsgs = append(citerMsgs, p.progressMsg(progress.StepSeed, float64(i+1)/float64(len(citers))))
		p.emit(citerMsgs...)
	}

	p.emit(
		p.progressMsg(progress.StepSeed, 1),
		types.Message{Kind: types.KindPhaseComplete, Phase: &types.PhaseComplete{Phase: types.PhaseSeed}},
	)
	return nil
}

// enrich fetches secondary-source metadata for the master paper:
// abstract reconstructed from the positional inverted index, impact
// score, language, keywords, and institution-resolved authorships. The
// caller emits the completion message after transitioning to the
// awaiting-extend state, so the extend trigger always finds the
// pipeline ready.
func (p *Pipeline) enrich(ctx context.Context) error {
	p.emit(
		statusMsg(types.StateEnriching, "enriching master metadata"),
		p.progressMsg(progress.StepEnrich, 0),
	)

	p.mu.Lock()
	masterID := p.masterID
	masterIDs := p.masterIDs
	p.mu.Unlock()

	work, err := p.enricher.FetchWork(ctx, masterIDs)
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		// No enrichment record: fall back to whatever abstract is
		// already known and move on. Not fatal.
		p.emit(warningMsg("enrichment source has no record for the master paper"))
	case err != nil:
		return fmt.Errorf("enrichment fetch: %w", err)
	default:
		p.emit(p.enrichmentMessages(masterID, work)...)
	}

	p.emit(
		p.progressMsg(progress.StepEnrich, 1),
		statusMsg(types.StateActive, "graph ready"),
	)
	return nil
}

// enrichmentMessages builds the master patch plus the authorship
// refinements the enrichment record carries.
func (p *Pipeline) enrichmentMessages(masterID string, work *fetch.RawRecord) []types.Message {
	patch := &types.PaperPatch{PaperID: masterID, MarkHydrated: true}
	if abstract := fetch.ReconstructAbstract(work.AbstractInvertedIndex); abstract != "" {
		patch.Abstract = &abstract
	}
	if work.FWCI > 0 {
		patch.FWCI = &work.FWCI
	}
	if work.Language != "" {
		patch.Language = &work.Language
	}
	if work.CitedByCount > 0 {
		patch.CitedByCount = &work.CitedByCount
	}
	if len(work.Keywords) > 0 {
		patch.Keywords = work.Keywords
	}
	if work.OAURL != "" {
		patch.OAURL = &work.OAURL
		patch.OAStatus = &work.OAStatus
	}
	msgs := []types.Message{{Kind: types.KindPaperPatch, Patch: patch}}

	// Re-resolve the work's ids so the enrichment-source id joins the
	// index, then refine authorships: ORCID matches here are what
	// reveal duplicate author records from the seed pass.
	if _, paperMerge := p.resolver.Resolve(work.ExternalIDs()); paperMerge != nil {
		p.log.Warn("enrichment record resolved to a different paper identity",
			zap.String("survivor", paperMerge.SurvivorID))
	}
	for _, raw := range work.Authorships {
		msgs = append(msgs, p.ingestAuthorship(masterID, work, raw)...)
	}
	for _, entry := range p.resolver.DrainRegistrations() {
		e := entry
		msgs = append(msgs, types.Message{Kind: types.KindExternalID, ExternalID: &e})
	}
	return msgs
}

// extend fetches second-degree citations and hydrates every paper still
// marked as a stub. It reads the live store snapshot, so stubs created
// concurrently by user interaction are picked up too.
func (p *Pipeline) extend(ctx context.Context) error {
	snap := p.snapshot()
	p.mu.Lock()
	masterID := p.masterID
	p.mu.Unlock()

	newStubs, err := p.extendSecondDegree(ctx, snap, masterID)
	if err != nil {
		return err
	}

	// The second-degree batches may still be in flight on the channel, so
	// the stubs they created are carried over directly rather than read
	// back from a snapshot.
	if err := p.hydrateStubs(ctx, p.snapshot(), newStubs); err != nil {
		return err
	}

	p.emit(
		p.progressMsg(progress.StepExtendHydrate, 1),
		types.Message{Kind: types.KindPhaseComplete, Phase: &types.PhaseComplete{Phase: types.PhaseExtend}},
	)
	return nil
}

// extendSecondDegree fetches citers of each direct citer and returns
// the external ids of every stub it created, keyed by internal id.
// Citers above the fan-out threshold are skipped to bound the graph;
// each skip is a logged decision, not an error.
func (p *Pipeline) extendSecondDegree(ctx context.Context, snap *store.Snapshot, masterID string) (map[string][]types.NamespacedID, error) {
	var citers []string
	for _, rel := range snap.Relationships {
		if rel.Kind == types.RelCites && rel.TargetID == masterID {
			citers = append(citers, rel.SourceID)
		}
	}

	extIDs := reverseIndex(snap.ExternalIDs)

	var mu sync.Mutex
	completed := 0
	newStubs := map[string][]types.NamespacedID{}

	g, gctx := p.boundedGroup(ctx)
	for _, citerID := range citers {
		citerID := citerID
		paper, ok := snap.Papers[citerID]
		if !ok {
			continue
		}
		if paper.CitedByCount > p.cfg.StubFanoutThreshold {
			p.log.Info("fan-out skip", zap.String("paper_id", citerID), zap.Int("cited_by", paper.CitedByCount))
			continue
		}
		ids := extIDs[citerID]
		primary := primaryID(ids)
		if primary.Value == "" {
			continue
		}

		g.Go(func() error {
			secondDegree, err := p.client.FetchCitations(gctx, primary, p.cfg.MaxSeedResults)
			if err != nil {
				// One citer failing to expand is absorbed as a warning;
				// the rest of the phase continues.
				p.emit(warningMsg("second-degree fetch for %s failed: %v", citerID, err))
				return nil
			}
			var msgs []types.Message
			var ingested []fetch.RawRecord
			var ingestedIDs []string
			for i := range secondDegree {
				rec := &secondDegree[i]
				secondID, recMsgs := p.ingestRecord(rec, true)
				msgs = append(msgs, recMsgs...)
				msgs = append(msgs, types.Message{
					Kind:         types.KindRelationshipUpsert,
					Relationship: &types.Relationship{SourceID: secondID, TargetID: citerID, Kind: types.RelCites},
				})
				ingested = append(ingested, *rec)
				ingestedIDs = append(ingestedIDs, secondID)
			}
			mu.Lock()
			for i, id := range ingestedIDs {
				newStubs[id] = ingested[i].ExternalIDs()
			}
			completed++
			frac := float64(completed) / float64(len(citers))
			mu.Unlock()
			msgs = append(msgs, p.progressMsg(progress.StepExtendFetch, frac))
			p.emit(msgs...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("second-degree fetch: %w", err)
	}
	p.emit(p.progressMsg(progress.StepExtendFetch, 1))
	return newStubs, nil
}

// hydrateStubs fetches the full record for every stub paper and patches
// it in place, flipping is_stub exactly once. A stub the source cannot
// find is still marked hydrated so the attempt is recorded. extra
// carries stubs not yet visible in the snapshot with their external ids.
func (p *Pipeline) hydrateStubs(ctx context.Context, snap *store.Snapshot, extra map[string][]types.NamespacedID) error {
	extIDs := reverseIndex(snap.ExternalIDs)

	stubSet := map[string]bool{}
	for id, paper := range snap.Papers {
		if paper.IsStub {
			stubSet[id] = true
		}
	}
	for id, ids := range extra {
		if paper, ok := snap.Papers[id]; ok && !paper.IsStub {
			continue
		}
		stubSet[id] = true
		if len(extIDs[id]) == 0 {
			extIDs[id] = ids
		}
	}
	if len(stubSet) == 0 {
		return nil
	}
	stubs := make([]string, 0, len(stubSet))
	for id := range stubSet {
		stubs = append(stubs, id)
	}

	var mu sync.Mutex
	completed := 0

	g, gctx := p.boundedGroup(ctx)
	for _, stubID := range stubs {
		stubID := stubID
		g.Go(func() error {
			ids := extIDs[stubID]
			var msgs []types.Message

			rec, err := p.client.FetchByIdentifiers(gctx, ids)
			switch {
			case errors.Is(err, fetch.ErrNotFound) || len(ids) == 0:
				msgs = append(msgs,
					warningMsg("stub %s has no fetchable record", stubID),
					types.Message{Kind: types.KindPaperPatch, Patch: &types.PaperPatch{PaperID: stubID, MarkHydrated: true}},
				)
			case err != nil:
				p.emit(warningMsg("hydrating %s failed: %v", stubID, err))
				return nil
			default:
				msgs = p.hydrationMessages(stubID, rec)
			}

			mu.Lock()
			completed++
			frac := float64(completed) / float64(len(stubs))
			mu.Unlock()
			msgs = append(msgs, p.progressMsg(progress.StepExtendHydrate, frac))
			p.emit(msgs...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("stub hydration: %w", err)
	}
	return nil
}

// hydrationMessages patches a stub with its fetched record and ingests
// the author list the stub was created without.
func (p *Pipeline) hydrationMessages(paperID string, rec *fetch.RawRecord) []types.Message {
	patch := &types.PaperPatch{PaperID: paperID, MarkHydrated: true}
	if rec.Title != "" {
		patch.Title = &rec.Title
	}
	if rec.Year > 0 {
		patch.Year = &rec.Year
	}
	if d := rec.Date(); !d.IsZero() {
		patch.Date = &d
	}
	if rec.Venue != "" {
		patch.Venue = &rec.Venue
	}
	abstract := rec.Abstract
	if abstract == "" {
		abstract = fetch.ReconstructAbstract(rec.AbstractInvertedIndex)
	}
	if abstract != "" {
		patch.Abstract = &abstract
	}
	if rec.CitedByCount > 0 {
		patch.CitedByCount = &rec.CitedByCount
	}
	if rec.Type != "" {
		patch.Type = &rec.Type
	}
	if len(rec.Keywords) > 0 {
		patch.Keywords = rec.Keywords
	}
	if rec.OAURL != "" {
		patch.OAURL = &rec.OAURL
		patch.OAStatus = &rec.OAStatus
	}

	msgs := []types.Message{{Kind: types.KindPaperPatch, Patch: patch}}
	if _, merge := p.resolver.Resolve(rec.ExternalIDs()); merge != nil {
		p.log.Warn("hydration record resolved to a different paper identity",
			zap.String("survivor", merge.SurvivorID))
	}
	for _, raw := range rec.Authorships {
		msgs = append(msgs, p.ingestAuthorship(paperID, rec, raw)...)
	}
	for _, entry := range p.resolver.DrainRegistrations() {
		e := entry
		msgs = append(msgs, types.Message{Kind: types.KindExternalID, ExternalID: &e})
	}
	return msgs
}

// primaryID picks the identifier the primary source can be queried
// with, honoring namespace priority.
func primaryID(ids []types.NamespacedID) types.NamespacedID {
	for _, ns := range []types.Namespace{types.NSSemantic, types.NSDOI, types.NSOpenAlex} {
		for _, id := range ids {
			if id.Namespace == ns {
				return id
			}
		}
	}
	return types.NamespacedID{}
}

// reverseIndex inverts the external-id index to internal id → ids.
func reverseIndex(index map[types.NamespacedID]string) map[string][]types.NamespacedID {
	out := make(map[string][]types.NamespacedID, len(index))
	for ext, internal := range index {
		out[internal] = append(out[internal], ext)
	}
	return out
}
