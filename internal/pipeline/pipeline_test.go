// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/citegraph/internal/bridge"
	"github.com/pdiddy/citegraph/internal/fetch"
	"github.com/pdiddy/citegraph/internal/store"
	"github.com/pdiddy/citegraph/pkg/types"
)

// fakeClient serves canned records keyed by identifier value.
type fakeClient struct {
	citations    map[string][]fetch.RawRecord
	records      map[string]fetch.RawRecord
	citationsErr error
}

func (f *fakeClient) FetchByQuery(ctx context.Context, text string, limit int) ([]fetch.RawRecord, error) {
	return nil, fetch.ErrNotFound
}

func (f *fakeClient) FetchByIdentifiers(ctx context.Context, ids []types.NamespacedID) (*fetch.RawRecord, error) {
	for _, id := range ids {
		if rec, ok := f.records[id.Value]; ok {
			return &rec, nil
		}
	}
	return nil, fetch.ErrNotFound
}

func (f *fakeClient) FetchCitations(ctx context.Context, id types.NamespacedID, limit int) ([]fetch.RawRecord, error) {
	if f.citationsErr != nil {
		return nil, f.citationsErr
	}
	return f.citations[id.Value], nil
}

type fakeEnricher struct {
	work *fetch.RawRecord
	err  error
}

func (f *fakeEnricher) FetchWork(ctx context.Context, ids []types.NamespacedID) (*fetch.RawRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.work, nil
}

// runSession wires a pipeline to a store through a bridge the way the
// CLI does, starts it on master, and blocks until the session finishes.
func runSession(t *testing.T, client fetch.Client, enricher fetch.Enricher, master *fetch.RawRecord) (*store.Store, *Pipeline) {
	t.Helper()

	st := store.New(zap.NewNop())
	msgCh := make(chan []types.Message, 256)

	pipe, err := New(client, enricher, types.GraphConfig{}, msgCh, st.Snapshot, zap.NewNop())
	require.NoError(t, err)

	br := bridge.New(st, zap.NewNop())
	br.OnEnrichComplete(func() {
		if err := pipe.StartExtend(context.Background()); err != nil {
			t.Errorf("StartExtend() error = %v", err)
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		br.Run(msgCh)
	}()

	require.NoError(t, pipe.Start(context.Background(), master))
	select {
	case <-pipe.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	close(msgCh)
	wg.Wait()
	return st, pipe
}

func sessionMaster() *fetch.RawRecord {
	return &fetch.RawRecord{
		SemanticID:   "master",
		DOI:          "10.1/master",
		Title:        "Master Paper",
		Year:         2018,
		Abstract:     "seed abstract",
		CitedByCount: 100,
		Authorships: []fetch.RawAuthorship{{
			SemanticAuthorID: "sa1",
			ORCID:            "0000-0001-0000-0001",
			DisplayName:      "Jane Smith",
			RawName:          "Smith, Jane",
			Position:         0,
		}},
	}
}

func sessionClient() *fakeClient {
	return &fakeClient{
		citations: map[string][]fetch.RawRecord{
			"master": {
				{
					SemanticID:   "c1",
					Title:        "Citer One",
					CitedByCount: 10,
					Authorships: []fetch.RawAuthorship{{
						SemanticAuthorID: "sa9",
						DisplayName:      "J Smith",
						RawName:          "Smith, J",
						Position:         0,
					}},
				},
				// Above the fan-out threshold: hydrated but never expanded.
				{SemanticID: "c2", Title: "Citer Two", CitedByCount: 1000},
			},
			"c1": {
				{SemanticID: "sd1", Title: "Second Degree"},
			},
		},
		records: map[string]fetch.RawRecord{
			"c1": {
				SemanticID: "c1",
				Title:      "Citer One Full",
				Year:       2020,
				Abstract:   "citer one abstract",
				Authorships: []fetch.RawAuthorship{{
					SemanticAuthorID: "sa9",
					ORCID:            "0000-0001-0000-0001",
					DisplayName:      "Jane Smith",
					RawName:          "Jane Smith",
					Position:         0,
				}},
			},
			"c2":  {SemanticID: "c2", Title: "Citer Two Full", Year: 2021},
			"sd1": {SemanticID: "sd1", Title: "Second Degree Full", Year: 2022},
		},
	}
}

func sessionEnricher() *fakeEnricher {
	return &fakeEnricher{work: &fetch.RawRecord{
		OpenAlexID:            "W100",
		DOI:                   "10.1/master",
		Title:                 "Master Paper",
		FWCI:                  2.5,
		Language:              "en",
		AbstractInvertedIndex: map[string][]int{"improved": {0}, "abstract": {1}},
		Authorships: []fetch.RawAuthorship{{
			OpenAlexAuthorID: "A100",
			ORCID:            "0000-0001-0000-0001",
			DisplayName:      "Jane Smith",
			RawName:          "Jane Smith",
			Position:         0,
		}},
	}}
}

func TestFullSession(t *testing.T) {
	st, pipe := runSession(t, sessionClient(), sessionEnricher(), sessionMaster())

	assert.Equal(t, StateDone, pipe.State())
	status := st.Status()
	assert.Equal(t, types.StateActive, status.State)
	assert.Equal(t, 100, status.Progress)

	snap := st.Snapshot()
	require.Len(t, snap.Papers, 4)
	assert.Equal(t, 0, snap.Stats().Stubs, "every stub must be hydrated by session end")

	master := snap.Papers[pipe.MasterID()]
	require.NotNil(t, master.Abstract)
	assert.Equal(t, "improved abstract", *master.Abstract)
	assert.Equal(t, 2.5, master.FWCI)
	assert.True(t, master.AbstractFetched)

	// The enrichment-source id joins the index under the master.
	assert.Equal(t, pipe.MasterID(),
		snap.ExternalIDs[types.NamespacedID{Namespace: types.NSOpenAlex, Value: "W100"}])

	c1 := snap.Papers[snap.ExternalIDs[types.NamespacedID{Namespace: types.NSSemantic, Value: "c1"}]]
	assert.Equal(t, "Citer One Full", c1.Title)
	assert.Equal(t, 2020, c1.Year)
	assert.False(t, c1.IsStub)

	// c1 and c2 cite the master, sd1 cites c1.
	assert.Len(t, snap.Relationships, 3)
	c2ID := snap.ExternalIDs[types.NamespacedID{Namespace: types.NSSemantic, Value: "c2"}]
	sd1ID := snap.ExternalIDs[types.NamespacedID{Namespace: types.NSSemantic, Value: "sd1"}]
	_, ok := snap.Relationships[types.RelationshipKey{SourceID: c2ID, TargetID: pipe.MasterID(), Kind: types.RelCites}]
	assert.True(t, ok)
	_, ok = snap.Relationships[types.RelationshipKey{SourceID: sd1ID, TargetID: c1.ID, Kind: types.RelCites}]
	assert.True(t, ok)

	// Hydration revealed that the master's author and c1's author share
	// an ORCID; exactly one author record holds it afterwards.
	withORCID := 0
	for _, a := range snap.Authors {
		if a.ORCID == "0000-0001-0000-0001" {
			withORCID++
		}
	}
	assert.Equal(t, 1, withORCID)
	for key := range snap.Authorships {
		_, ok := snap.Authors[key.AuthorID]
		assert.True(t, ok, "authorship %v references a deleted author", key)
	}
}

func TestStartRejectsOverciteMaster(t *testing.T) {
	st := store.New(zap.NewNop())
	msgCh := make(chan []types.Message, 8)
	pipe, err := New(&fakeClient{}, &fakeEnricher{}, types.GraphConfig{}, msgCh, st.Snapshot, zap.NewNop())
	require.NoError(t, err)

	master := sessionMaster()
	master.CitedByCount = 5000
	err = pipe.Start(context.Background(), master)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "narrow the selection")
	assert.Equal(t, StateIdle, pipe.State())

	assert.Error(t, pipe.Start(context.Background(), nil))
}

func TestStartExtendRequiresEnrichCompletion(t *testing.T) {
	st := store.New(zap.NewNop())
	msgCh := make(chan []types.Message, 8)
	pipe, err := New(&fakeClient{}, &fakeEnricher{}, types.GraphConfig{}, msgCh, st.Snapshot, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, pipe.StartExtend(context.Background()))
}

// An unbuffered channel makes every emit rendezvous with the consumer,
// so reacting to the enrich completion inline exercises the earliest
// possible trigger. StartExtend must already find the pipeline ready.
func TestExtendTriggerFindsPipelineReady(t *testing.T) {
	st := store.New(zap.NewNop())
	msgCh := make(chan []types.Message)

	pipe, err := New(sessionClient(), sessionEnricher(), types.GraphConfig{}, msgCh, st.Snapshot, zap.NewNop())
	require.NoError(t, err)

	br := bridge.New(st, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msgs := range msgCh {
			br.Tick(msgs)
			for _, m := range msgs {
				if m.Kind != types.KindPhaseComplete || m.Phase == nil || m.Phase.Phase != types.PhaseEnrich {
					continue
				}
				if err := pipe.StartExtend(context.Background()); err != nil {
					t.Errorf("StartExtend() error = %v", err)
				}
			}
		}
	}()

	require.NoError(t, pipe.Start(context.Background(), sessionMaster()))
	select {
	case <-pipe.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	close(msgCh)
	wg.Wait()

	assert.Equal(t, StateDone, pipe.State())
	assert.Equal(t, types.StateActive, st.Status().State)
}

func TestEnrichmentNotFoundIsNotFatal(t *testing.T) {
	st, pipe := runSession(t, sessionClient(), &fakeEnricher{err: fetch.ErrNotFound}, sessionMaster())

	assert.Equal(t, StateDone, pipe.State())
	assert.Equal(t, types.StateActive, st.Status().State)

	// The seed abstract survives when no enrichment record exists.
	master := st.Snapshot().Papers[pipe.MasterID()]
	require.NotNil(t, master.Abstract)
	assert.Equal(t, "seed abstract", *master.Abstract)
}

func TestSeedFetchFailureIsFatal(t *testing.T) {
	client := sessionClient()
	client.citationsErr = context.DeadlineExceeded

	st := store.New(zap.NewNop())
	msgCh := make(chan []types.Message, 64)
	pipe, err := New(client, sessionEnricher(), types.GraphConfig{}, msgCh, st.Snapshot, zap.NewNop())
	require.NoError(t, err)

	br := bridge.New(st, zap.NewNop())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		br.Run(msgCh)
	}()

	require.NoError(t, pipe.Start(context.Background(), sessionMaster()))
	select {
	case <-pipe.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("failed session did not release waiters")
	}
	close(msgCh)
	wg.Wait()

	assert.Equal(t, StateFailed, pipe.State())
	assert.Equal(t, types.StateError, st.Status().State)
	assert.True(t, br.Halted())
}

func TestDoubleStartRejected(t *testing.T) {
	st := store.New(zap.NewNop())
	msgCh := make(chan []types.Message, 256)
	pipe, err := New(sessionClient(), sessionEnricher(), types.GraphConfig{}, msgCh, st.Snapshot, zap.NewNop())
	require.NoError(t, err)

	go func() {
		for range msgCh {
		}
	}()

	require.NoError(t, pipe.Start(context.Background(), sessionMaster()))
	assert.Error(t, pipe.Start(context.Background(), sessionMaster()))
}
