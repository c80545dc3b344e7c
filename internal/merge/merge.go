// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge plans the consolidation of duplicate author records.
// The planner is pure: it reads graph state and produces the rewrite
// set that the store applies in one atomic step.
package merge

import (
	"sort"

	"github.com/pdiddy/citegraph/pkg/types"
)

// Plan is the atomic rewrite produced for one merge: updated survivor
// record, rewritten authorship edges, repointed external ids, and the
// victim ids to delete. Authorship edges keyed by a victim are removed
// and re-added under the survivor so no edge ever references a deleted
// author id.
type Plan struct {
	Survivor          types.Author
	AuthorshipAdds    []types.Authorship
	AuthorshipDeletes []types.AuthorshipKey
	Repoint           []types.ExternalIDEntry
	Deletions         []string
}

// Compute builds the merge plan for folding victims into survivor.
// Field union prefers non-empty values; on conflicting non-empty values
// the survivor wins. The raw author name on each rewritten edge is
// preserved untouched. Victim ids absent from the author set are
// skipped rather than failing the whole merge.
func Compute(
	authors map[string]types.Author,
	authorships map[types.AuthorshipKey]types.Authorship,
	index map[types.NamespacedID]string,
	survivorID string,
	victimIDs []string,
) Plan {
	plan := Plan{Survivor: authors[survivorID]}
	plan.Survivor.ID = survivorID

	victims := make(map[string]bool, len(victimIDs))
	for _, v := range victimIDs {
		if v == survivorID {
			continue
		}
		if _, ok := authors[v]; !ok {
			continue
		}
		victims[v] = true
		plan.Deletions = append(plan.Deletions, v)
	}

	// Union mergeable fields, survivor-wins on conflict.
	for v := range victims {
		va := authors[v]
		if plan.Survivor.DisplayName == "" {
			plan.Survivor.DisplayName = va.DisplayName
		}
		if plan.Survivor.ORCID == "" {
			plan.Survivor.ORCID = va.ORCID
		}
		if !va.IsStub {
			plan.Survivor.IsStub = false
		}
	}

	// Rewrite authorship edges from victims to the survivor. When the
	// survivor already holds an edge on the same paper, the victim edge
	// is dropped and only its deletion is recorded.
	for key, edge := range authorships {
		if !victims[key.AuthorID] {
			continue
		}
		plan.AuthorshipDeletes = append(plan.AuthorshipDeletes, key)

		rewritten := edge
		rewritten.AuthorID = survivorID
		if _, taken := authorships[rewritten.Key()]; taken {
			continue
		}
		plan.AuthorshipAdds = append(plan.AuthorshipAdds, rewritten)
	}

	// Repoint external ids indexed to a victim. Entries are never
	// removed from the index, only redirected.
	for extID, internal := range index {
		if victims[internal] {
			plan.Repoint = append(plan.Repoint, types.ExternalIDEntry{ID: extID, InternalID: survivorID})
		}
	}

	sort.Strings(plan.Deletions)
	sort.Slice(plan.AuthorshipAdds, func(i, j int) bool {
		a, b := plan.AuthorshipAdds[i], plan.AuthorshipAdds[j]
		if a.PaperID != b.PaperID {
			return a.PaperID < b.PaperID
		}
		return a.Position < b.Position
	})
	return plan
}
