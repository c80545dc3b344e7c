// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/citegraph/pkg/types"
)

// countingClient records upstream call counts and serves canned records.
type countingClient struct {
	lookups   int
	citations int
	record    RawRecord
}

func (c *countingClient) FetchByQuery(ctx context.Context, text string, limit int) ([]RawRecord, error) {
	return []RawRecord{c.record}, nil
}

func (c *countingClient) FetchByIdentifiers(ctx context.Context, ids []types.NamespacedID) (*RawRecord, error) {
	c.lookups++
	rec := c.record
	return &rec, nil
}

func (c *countingClient) FetchCitations(ctx context.Context, id types.NamespacedID, limit int) ([]RawRecord, error) {
	c.citations++
	return []RawRecord{c.record}, nil
}

func newTestCache(t *testing.T, inner Client) *CachedClient {
	t.Helper()
	cache, err := NewCachedClient(inner, ":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("NewCachedClient() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCachedLookupHitsUpstreamOnce(t *testing.T) {
	inner := &countingClient{record: RawRecord{
		SemanticID: "abc123",
		DOI:        "10.1234/example.1",
		Title:      "Cached Paper",
	}}
	cache := newTestCache(t, inner)
	ctx := context.Background()
	ids := []types.NamespacedID{{Namespace: types.NSSemantic, Value: "abc123"}}

	first, err := cache.FetchByIdentifiers(ctx, ids)
	if err != nil {
		t.Fatalf("first lookup error = %v", err)
	}
	second, err := cache.FetchByIdentifiers(ctx, ids)
	if err != nil {
		t.Fatalf("second lookup error = %v", err)
	}

	if inner.lookups != 1 {
		t.Errorf("upstream lookups = %d, want 1", inner.lookups)
	}
	if first.Title != second.Title || second.Title != "Cached Paper" {
		t.Errorf("titles = %q, %q", first.Title, second.Title)
	}
}

func TestCachedLookupServesUnderAnyRecordID(t *testing.T) {
	inner := &countingClient{record: RawRecord{
		SemanticID: "abc123",
		DOI:        "10.1234/example.1",
		Title:      "Cached Paper",
	}}
	cache := newTestCache(t, inner)
	ctx := context.Background()

	if _, err := cache.FetchByIdentifiers(ctx, []types.NamespacedID{
		{Namespace: types.NSSemantic, Value: "abc123"},
	}); err != nil {
		t.Fatalf("seed lookup error = %v", err)
	}

	// The same record requested by its DOI must be a cache hit.
	rec, err := cache.FetchByIdentifiers(ctx, []types.NamespacedID{
		{Namespace: types.NSDOI, Value: "10.1234/example.1"},
	})
	if err != nil {
		t.Fatalf("doi lookup error = %v", err)
	}
	if inner.lookups != 1 {
		t.Errorf("upstream lookups = %d, want 1", inner.lookups)
	}
	if rec.SemanticID != "abc123" {
		t.Errorf("record = %+v", rec)
	}
}

func TestCitationListingsPopulateTheCache(t *testing.T) {
	inner := &countingClient{record: RawRecord{
		SemanticID: "citer1",
		Title:      "Citer",
	}}
	cache := newTestCache(t, inner)
	ctx := context.Background()

	if _, err := cache.FetchCitations(ctx,
		types.NamespacedID{Namespace: types.NSSemantic, Value: "master"}, 10); err != nil {
		t.Fatalf("citations error = %v", err)
	}

	// The citing record seen in the listing must not trigger a fresh
	// upstream lookup during hydration.
	if _, err := cache.FetchByIdentifiers(ctx, []types.NamespacedID{
		{Namespace: types.NSSemantic, Value: "citer1"},
	}); err != nil {
		t.Fatalf("hydration lookup error = %v", err)
	}
	if inner.lookups != 0 {
		t.Errorf("upstream lookups = %d, want 0", inner.lookups)
	}
}
