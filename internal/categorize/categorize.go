// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package categorize derives relationship-degree tags for papers
// relative to the master paper. The function is pure: it reads the
// current paper and relationship sets and produces disjoint buckets.
package categorize

import (
	"sort"

	"github.com/pdiddy/citegraph/pkg/types"
)

// Result holds the three degree buckets. The buckets are pairwise
// disjoint and never contain the master paper or any stub. Precedence
// is direct > second-degree > co-cited: a paper qualifying for more
// than one bucket lands in the highest.
type Result struct {
	Direct       []string
	SecondDegree []string
	CoCited      []string
}

// Categorize classifies every non-stub paper relative to masterID.
//
// Direct: papers with a cites edge pointing at the master. Second
// degree: papers citing a direct citer. Co-cited: targets of a cites
// edge sourced from a direct citer, or targets of a similar edge from
// the master.
func Categorize(
	papers map[string]types.Paper,
	relationships map[types.RelationshipKey]types.Relationship,
	masterID string,
) Result {
	eligible := func(id string) bool {
		if id == masterID {
			return false
		}
		p, ok := papers[id]
		return ok && !p.IsStub
	}

	direct := map[string]bool{}
	for _, rel := range relationships {
		if rel.Kind == types.RelCites && rel.TargetID == masterID && eligible(rel.SourceID) {
			direct[rel.SourceID] = true
		}
	}

	second := map[string]bool{}
	coCited := map[string]bool{}
	for _, rel := range relationships {
		switch rel.Kind {
		case types.RelCites:
			if direct[rel.TargetID] && eligible(rel.SourceID) && !direct[rel.SourceID] {
				second[rel.SourceID] = true
			}
			if direct[rel.SourceID] && eligible(rel.TargetID) && !direct[rel.TargetID] {
				coCited[rel.TargetID] = true
			}
		case types.RelSimilar:
			if rel.SourceID == masterID && eligible(rel.TargetID) && !direct[rel.TargetID] {
				coCited[rel.TargetID] = true
			}
		}
	}

	// Enforce precedence: a second-degree citer that is also co-cited
	// is classified second-degree only.
	for id := range second {
		delete(coCited, id)
	}

	return Result{
		Direct:       sortedKeys(direct),
		SecondDegree: sortedKeys(second),
		CoCited:      sortedKeys(coCited),
	}
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	// Stable output keeps downstream rendering and tests deterministic.
	sort.Strings(out)
	return out
}
