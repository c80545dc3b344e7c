// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/citegraph/pkg/types"
)

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{
			name: "repeated word at multiple positions",
			index: map[string][]int{
				"the": {0, 4},
				"cat": {1},
				"sat": {2},
				"on":  {3},
				"mat": {5},
			},
			want: "the cat sat on the mat",
		},
		{
			name:  "single word",
			index: map[string][]int{"abstract": {0}},
			want:  "abstract",
		},
		{
			name:  "empty index",
			index: map[string][]int{},
			want:  "",
		},
		{
			name:  "nil index",
			index: nil,
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReconstructAbstract(tt.index); got != tt.want {
				t.Errorf("ReconstructAbstract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func withOpenAlexServer(t *testing.T, handler http.HandlerFunc) *OpenAlexClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	orig := openAlexAPIBase
	openAlexAPIBase = server.URL + "/works/"
	t.Cleanup(func() { openAlexAPIBase = orig })

	return &OpenAlexClient{
		Client: server.Client(),
		Cfg:    types.FetchConfig{OpenAlexEmail: "polite@example.org"},
	}
}

func TestFetchWork(t *testing.T) {
	client := withOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/W2741809807" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("mailto"); got != "polite@example.org" {
			t.Errorf("mailto = %q", got)
		}
		w.Write([]byte(`{
			"id": "https://openalex.org/W2741809807",
			"doi": "https://doi.org/10.1234/Example.1",
			"title": "A Work",
			"publication_date": "2019-03-01",
			"publication_year": 2019,
			"language": "en",
			"type": "article",
			"cited_by_count": 42,
			"fwci": 1.7,
			"abstract_inverted_index": {"hello": [0], "world": [1]},
			"primary_location": {"source": {"display_name": "Journal of Examples"}},
			"open_access": {"is_oa": true, "oa_status": "gold", "oa_url": "https://example.org/oa.pdf"},
			"keywords": [{"display_name": "Graphs"}],
			"authorships": [{
				"author_position": "first",
				"author": {
					"id": "https://openalex.org/A5003442464",
					"orcid": "https://orcid.org/0000-0001-2345-6789",
					"display_name": "Jane Smith"
				},
				"raw_author_name": "Smith, Jane",
				"is_corresponding": true,
				"institutions": [{
					"id": "https://openalex.org/I121332964",
					"ror": "https://ror.org/03vek6s52",
					"display_name": "Example University",
					"country_code": "US",
					"type": "education"
				}]
			}]
		}`))
	})

	rec, err := client.FetchWork(context.Background(), []types.NamespacedID{
		{Namespace: types.NSOpenAlex, Value: "W2741809807"},
	})
	if err != nil {
		t.Fatalf("FetchWork() error = %v", err)
	}

	if rec.OpenAlexID != "W2741809807" {
		t.Errorf("openalex id = %q, want bare W id", rec.OpenAlexID)
	}
	if rec.DOI != "10.1234/example.1" {
		t.Errorf("doi = %q, want normalized", rec.DOI)
	}
	if rec.FWCI != 1.7 || rec.Language != "en" {
		t.Errorf("fwci/language = %v/%q", rec.FWCI, rec.Language)
	}
	if rec.Venue != "Journal of Examples" {
		t.Errorf("venue = %q", rec.Venue)
	}
	if got := ReconstructAbstract(rec.AbstractInvertedIndex); got != "hello world" {
		t.Errorf("abstract = %q", got)
	}
	if len(rec.Authorships) != 1 {
		t.Fatalf("authorships = %d", len(rec.Authorships))
	}
	auth := rec.Authorships[0]
	if auth.OpenAlexAuthorID != "A5003442464" {
		t.Errorf("author id = %q, want bare A id", auth.OpenAlexAuthorID)
	}
	if auth.ORCID != "0000-0001-2345-6789" {
		t.Errorf("orcid = %q, want bare orcid", auth.ORCID)
	}
	if auth.RawName != "Smith, Jane" || !auth.Corresponding {
		t.Errorf("authorship = %+v", auth)
	}
	if len(auth.Institutions) != 1 || auth.Institutions[0].ROR != "03vek6s52" {
		t.Errorf("institutions = %+v", auth.Institutions)
	}
}

func TestFetchWorkDOIPathForm(t *testing.T) {
	client := withOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/https://doi.org/10.1234/example.1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"id": "https://openalex.org/W1", "title": "X"}`))
	})

	_, err := client.FetchWork(context.Background(), []types.NamespacedID{
		{Namespace: types.NSDOI, Value: "10.1234/example.1"},
	})
	if err != nil {
		t.Fatalf("FetchWork() error = %v", err)
	}
}

func TestFetchWorkNotFound(t *testing.T) {
	client := withOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.FetchWork(context.Background(), []types.NamespacedID{
		{Namespace: types.NSOpenAlex, Value: "W404"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFetchWorkNoUsableID(t *testing.T) {
	client := &OpenAlexClient{Client: http.DefaultClient}
	_, err := client.FetchWork(context.Background(), []types.NamespacedID{
		{Namespace: types.NSSemantic, Value: "abc"},
	})
	if err == nil {
		t.Error("expected error for unusable identifiers")
	}
}
