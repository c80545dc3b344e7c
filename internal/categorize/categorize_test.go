// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package categorize

import (
	"testing"

	"github.com/pdiddy/citegraph/pkg/types"
)

func papers(ids ...string) map[string]types.Paper {
	out := make(map[string]types.Paper, len(ids))
	for _, id := range ids {
		out[id] = types.Paper{ID: id, Title: id}
	}
	return out
}

func cites(source, target string) types.Relationship {
	return types.Relationship{SourceID: source, TargetID: target, Kind: types.RelCites}
}

func similar(source, target string) types.Relationship {
	return types.Relationship{SourceID: source, TargetID: target, Kind: types.RelSimilar}
}

func relMap(rels ...types.Relationship) map[types.RelationshipKey]types.Relationship {
	out := make(map[types.RelationshipKey]types.Relationship, len(rels))
	for _, r := range rels {
		out[r.Key()] = r
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name       string
		papers     map[string]types.Paper
		rels       map[types.RelationshipKey]types.Relationship
		wantDirect []string
		wantSecond []string
		wantCo     []string
	}{
		{
			name:       "direct citers",
			papers:     papers("m", "d1", "d2"),
			rels:       relMap(cites("d1", "m"), cites("d2", "m")),
			wantDirect: []string{"d1", "d2"},
		},
		{
			name:       "second degree cites a direct citer",
			papers:     papers("m", "d1", "s1"),
			rels:       relMap(cites("d1", "m"), cites("s1", "d1")),
			wantDirect: []string{"d1"},
			wantSecond: []string{"s1"},
		},
		{
			name:       "co-cited via direct citer reference",
			papers:     papers("m", "d1", "c1"),
			rels:       relMap(cites("d1", "m"), cites("d1", "c1")),
			wantDirect: []string{"d1"},
			wantCo:     []string{"c1"},
		},
		{
			name:   "co-cited via similar edge from master",
			papers: papers("m", "c1"),
			rels:   relMap(similar("m", "c1")),
			wantCo: []string{"c1"},
		},
		{
			name:       "direct trumps second degree and co-cited",
			papers:     papers("m", "d1", "d2"),
			rels:       relMap(cites("d1", "m"), cites("d2", "m"), cites("d2", "d1"), cites("d1", "d2")),
			wantDirect: []string{"d1", "d2"},
		},
		{
			name:       "second degree trumps co-cited",
			papers:     papers("m", "d1", "d2", "x"),
			rels:       relMap(cites("d1", "m"), cites("d2", "m"), cites("x", "d1"), cites("d2", "x")),
			wantDirect: []string{"d1", "d2"},
			wantSecond: []string{"x"},
		},
		{
			name:   "stubs and master excluded",
			papers: map[string]types.Paper{"m": {ID: "m"}, "stub": {ID: "stub", IsStub: true}},
			rels:   relMap(cites("stub", "m"), similar("m", "stub")),
		},
		{
			name:       "unknown ids excluded",
			papers:     papers("m", "d1"),
			rels:       relMap(cites("d1", "m"), cites("d1", "missing")),
			wantDirect: []string{"d1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.papers, tt.rels, "m")
			if !equalStrings(got.Direct, tt.wantDirect) {
				t.Errorf("direct = %v, want %v", got.Direct, tt.wantDirect)
			}
			if !equalStrings(got.SecondDegree, tt.wantSecond) {
				t.Errorf("second degree = %v, want %v", got.SecondDegree, tt.wantSecond)
			}
			if !equalStrings(got.CoCited, tt.wantCo) {
				t.Errorf("co-cited = %v, want %v", got.CoCited, tt.wantCo)
			}
		})
	}
}

func TestCategorizeBucketsAreDisjoint(t *testing.T) {
	p := papers("m", "a", "b", "c", "d")
	rels := relMap(
		cites("a", "m"),
		cites("b", "m"),
		cites("c", "a"),
		cites("a", "c"),
		cites("b", "d"),
		similar("m", "d"),
	)
	got := Categorize(p, rels, "m")

	seen := map[string]string{}
	for bucket, ids := range map[string][]string{
		"direct": got.Direct, "second": got.SecondDegree, "co-cited": got.CoCited,
	} {
		for _, id := range ids {
			if prev, ok := seen[id]; ok {
				t.Errorf("paper %s in both %s and %s", id, prev, bucket)
			}
			seen[id] = bucket
			if id == "m" {
				t.Errorf("master classified in %s", bucket)
			}
		}
	}
}
