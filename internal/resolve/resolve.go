// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve deduplicates incoming entities across external
// identifier namespaces. Every paper, author, and institution record is
// resolved to an internal id before any edge referencing it is
// recorded, so edges are always expressed in internal ids.
package resolve

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pdiddy/citegraph/pkg/types"
)

// MergeCandidate records that two previously-distinct internal ids were
// observed to name the same entity. The pipeline turns author
// candidates into merge messages for the reconciler.
type MergeCandidate struct {
	SurvivorID string
	VictimIDs  []string
}

// Resolver maps sets of external ids to internal ids. It is seeded from
// the store's external-id index and accumulates its own registrations,
// which the pipeline emits as index-registration messages. Safe for
// concurrent use by fetch workers.
type Resolver struct {
	mu       sync.Mutex
	index    map[types.NamespacedID]string
	priority map[types.Namespace]int

	registered []types.ExternalIDEntry
}

// New returns a resolver seeded with a copy of index. A nil index
// starts empty. The priority list orders namespaces for conflict
// resolution; empty means types.DefaultNamespacePriority.
func New(index map[types.NamespacedID]string, priority []types.Namespace) *Resolver {
	if len(priority) == 0 {
		priority = types.DefaultNamespacePriority
	}
	r := &Resolver{
		index:    make(map[types.NamespacedID]string, len(index)),
		priority: make(map[types.Namespace]int, len(priority)),
	}
	for k, v := range index {
		r.index[k] = v
	}
	for i, ns := range priority {
		r.priority[ns] = i
	}
	return r
}

// Resolve maps the supplied external ids to one internal id, minting a
// new short uid when none are known. Resolving the same external id
// twice always yields the same internal id. When distinct known ids
// disagree, the id under the highest-priority namespace wins and the
// losers are returned as a merge candidate for the caller to schedule.
func (r *Resolver) Resolve(ids []types.NamespacedID) (string, *MergeCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids = r.ordered(ids)

	var winner string
	var losers []string
	for _, id := range ids {
		internal, ok := r.index[id]
		if !ok {
			continue
		}
		if winner == "" {
			winner = internal
			continue
		}
		if internal != winner && !slices.Contains(losers, internal) {
			losers = append(losers, internal)
		}
	}

	if winner == "" {
		winner = mintShortUID()
	}
	var candidate *MergeCandidate
	if len(losers) > 0 {
		candidate = &MergeCandidate{SurvivorID: winner, VictimIDs: losers}
		// Every id indexed to a loser repoints to the winner, not just
		// the ids on this record: a later record carrying one of the
		// loser's other ids must resolve to the survivor. The store
		// repoints its own index when the merge applies.
		for id, internal := range r.index {
			if slices.Contains(losers, internal) {
				r.index[id] = winner
			}
		}
	}

	// Register every supplied id to the winner.
	for _, id := range ids {
		current, ok := r.index[id]
		if ok && current == winner {
			continue
		}
		r.index[id] = winner
		r.registered = append(r.registered, types.ExternalIDEntry{ID: id, InternalID: winner})
	}
	return winner, candidate
}

// Lookup reports the internal id for one external id, if known.
func (r *Resolver) Lookup(id types.NamespacedID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	internal, ok := r.index[id]
	return internal, ok
}

// DrainRegistrations returns and clears the external-id registrations
// accumulated since the previous drain.
func (r *Resolver) DrainRegistrations() []types.ExternalIDEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.registered
	r.registered = nil
	return out
}

// ordered sorts ids by namespace priority so "first found" follows the
// configured priority list. Unknown namespaces sort last.
func (r *Resolver) ordered(ids []types.NamespacedID) []types.NamespacedID {
	out := make([]types.NamespacedID, 0, len(ids))
	for _, id := range ids {
		if id.Value == "" {
			continue
		}
		out = append(out, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.rank(out[i].Namespace) < r.rank(out[j].Namespace)
	})
	return out
}

func (r *Resolver) rank(ns types.Namespace) int {
	if rank, ok := r.priority[ns]; ok {
		return rank
	}
	return len(r.priority)
}

// mintShortUID returns a 12-character uid derived from a random UUID.
func mintShortUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
