// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/citegraph/internal/fetch"
	"github.com/pdiddy/citegraph/pkg/types"
)

// ingestRecord resolves one raw record and its author list into graph
// messages. Every entity is resolved to an internal id before any edge
// referencing it is produced. asStub marks the paper as not yet
// hydrated; the master and hydration fetches ingest with asStub false.
func (p *Pipeline) ingestRecord(rec *fetch.RawRecord, asStub bool) (string, []types.Message) {
	paperID, paperMerge := p.resolver.Resolve(rec.ExternalIDs())
	if paperMerge != nil {
		// Papers are append-only and never merged; the priority winner
		// simply absorbs the colliding ids.
		p.log.Warn("conflicting paper identities resolved by priority",
			zap.String("survivor", paperMerge.SurvivorID),
			zap.Strings("victims", paperMerge.VictimIDs))
	}

	msgs := []types.Message{{Kind: types.KindPaperUpsert, Paper: buildPaper(paperID, rec, asStub)}}

	for _, raw := range rec.Authorships {
		authorMsgs := p.ingestAuthorship(paperID, rec, raw)
		msgs = append(msgs, authorMsgs...)
	}

	for _, entry := range p.resolver.DrainRegistrations() {
		e := entry
		msgs = append(msgs, types.Message{Kind: types.KindExternalID, ExternalID: &e})
	}
	return paperID, msgs
}

// ingestAuthorship resolves one author entry plus its institutions and
// returns their upserts and the authorship edge. A conflicting author
// resolution schedules a merge for the reconciler.
func (p *Pipeline) ingestAuthorship(paperID string, rec *fetch.RawRecord, raw fetch.RawAuthorship) []types.Message {
	var msgs []types.Message

	authorID, authorMerge := p.resolver.Resolve(authorIDs(rec, raw))
	author := &types.Author{
		ID:          authorID,
		DisplayName: raw.DisplayName,
		ORCID:       raw.ORCID,
		IsStub:      raw.SemanticAuthorID == "" && raw.OpenAlexAuthorID == "" && raw.ORCID == "",
	}
	msgs = append(msgs, types.Message{Kind: types.KindAuthorUpsert, Author: author})
	if authorMerge != nil {
		msgs = append(msgs, types.Message{
			Kind:  types.KindAuthorMerge,
			Merge: &types.AuthorMergeRequest{SurvivorID: authorMerge.SurvivorID, VictimIDs: authorMerge.VictimIDs},
		})
	}

	var institutionIDs []string
	for _, inst := range raw.Institutions {
		instID, _ := p.resolver.Resolve(institutionKeys(inst))
		institutionIDs = append(institutionIDs, instID)
		msgs = append(msgs, types.Message{Kind: types.KindInstitutionUpsert, Institution: &types.Institution{
			ID:          instID,
			ROR:         inst.ROR,
			DisplayName: inst.DisplayName,
			CountryCode: inst.CountryCode,
			Type:        inst.Type,
		}})
	}

	msgs = append(msgs, types.Message{Kind: types.KindAuthorshipUpsert, Authorship: &types.Authorship{
		PaperID:        paperID,
		AuthorID:       authorID,
		Position:       raw.Position,
		Corresponding:  raw.Corresponding,
		RawName:        raw.RawName,
		InstitutionIDs: institutionIDs,
	}})
	return msgs
}

// authorIDs lists an author's external ids, strongest first. An author
// with no identifier at all falls back to a name-derived key scoped to
// the record's source, so the same bare name resolves idempotently
// instead of minting a fresh id per appearance.
func authorIDs(rec *fetch.RawRecord, raw fetch.RawAuthorship) []types.NamespacedID {
	var ids []types.NamespacedID
	if raw.ORCID != "" {
		ids = append(ids, types.NamespacedID{Namespace: types.NSORCID, Value: raw.ORCID})
	}
	if raw.SemanticAuthorID != "" {
		ids = append(ids, types.NamespacedID{Namespace: types.NSSemantic, Value: "author:" + raw.SemanticAuthorID})
	}
	if raw.OpenAlexAuthorID != "" {
		ids = append(ids, types.NamespacedID{Namespace: types.NSOpenAlex, Value: raw.OpenAlexAuthorID})
	}
	if len(ids) == 0 && raw.DisplayName != "" {
		ns := types.NSSemantic
		if rec.SemanticID == "" {
			ns = types.NSOpenAlex
		}
		ids = append(ids, types.NamespacedID{Namespace: ns, Value: "author-name:" + strings.ToLower(raw.DisplayName)})
	}
	return ids
}

// institutionKeys lists an institution's dedup keys: the registry id
// when known, else a name-derived key.
func institutionKeys(inst fetch.RawInstitution) []types.NamespacedID {
	if inst.ROR != "" {
		return []types.NamespacedID{{Namespace: types.NSROR, Value: inst.ROR}}
	}
	return []types.NamespacedID{{
		Namespace: types.NSOpenAlex,
		Value:     "institution-name:" + strings.ToLower(inst.DisplayName),
	}}
}

func buildPaper(id string, rec *fetch.RawRecord, asStub bool) *types.Paper {
	paper := &types.Paper{
		ID:           id,
		Title:        rec.Title,
		Year:         rec.Year,
		Date:         rec.Date(),
		Venue:        rec.Venue,
		FWCI:         rec.FWCI,
		CitedByCount: rec.CitedByCount,
		Type:         rec.Type,
		Language:     rec.Language,
		Keywords:     rec.Keywords,
		OAURL:        rec.OAURL,
		OAStatus:     rec.OAStatus,
		IsStub:       asStub,
	}
	if !asStub {
		paper.AbstractFetched = true
	}
	abstract := rec.Abstract
	if abstract == "" {
		abstract = fetch.ReconstructAbstract(rec.AbstractInvertedIndex)
	}
	if abstract != "" {
		paper.Abstract = &abstract
	}
	return paper
}
