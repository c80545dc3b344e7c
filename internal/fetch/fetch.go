// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch talks to the bibliographic and enrichment APIs and
// returns validated raw records for the pipeline to ingest. The graph
// itself never stores raw records; they exist only at this boundary.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/pdiddy/citegraph/pkg/types"
)

// ErrNotFound reports that no record exists for the requested
// identifiers.
var ErrNotFound = errors.New("record not found")

// RawRecord is one bibliographic record as returned by a source, with
// explicit optional fields per source rather than an untyped bag.
type RawRecord struct {
	SemanticID string `json:"semantic_id,omitempty"`
	DOI        string `json:"doi,omitempty"`
	OpenAlexID string `json:"openalex_id,omitempty"`

	Title           string  `json:"title"`
	Year            int     `json:"year,omitempty"`
	PublicationDate string  `json:"publication_date,omitempty"`
	Venue           string  `json:"venue,omitempty"`
	Abstract        string  `json:"abstract,omitempty"`
	FWCI            float64 `json:"fwci,omitempty"`
	CitedByCount    int     `json:"cited_by_count"`
	Type            string  `json:"type,omitempty"`
	Language        string  `json:"language,omitempty"`

	Keywords []string `json:"keywords,omitempty"`
	OAURL    string   `json:"oa_url,omitempty"`
	OAStatus string   `json:"oa_status,omitempty"`

	// AbstractInvertedIndex maps each word to the zero-based token
	// positions where it appears. Supplied by the enrichment source in
	// place of plain abstract text.
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index,omitempty"`

	Authorships []RawAuthorship `json:"authorships,omitempty"`
}

// RawAuthorship is one entry of a record's author list.
type RawAuthorship struct {
	SemanticAuthorID string `json:"semantic_author_id,omitempty"`
	OpenAlexAuthorID string `json:"openalex_author_id,omitempty"`
	ORCID            string `json:"orcid,omitempty"`

	DisplayName string `json:"display_name"`
	// RawName is the unnormalized name exactly as the source printed it.
	RawName       string `json:"raw_name"`
	Position      int    `json:"position"`
	Corresponding bool   `json:"corresponding,omitempty"`

	Institutions []RawInstitution `json:"institutions,omitempty"`
}

// RawInstitution is one affiliation of an authorship entry.
type RawInstitution struct {
	ROR         string `json:"ror,omitempty"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ExternalIDs returns the record's identifiers in all known namespaces.
func (r *RawRecord) ExternalIDs() []types.NamespacedID {
	var ids []types.NamespacedID
	if r.SemanticID != "" {
		ids = append(ids, types.NamespacedID{Namespace: types.NSSemantic, Value: r.SemanticID})
	}
	if r.DOI != "" {
		ids = append(ids, types.NamespacedID{Namespace: types.NSDOI, Value: types.NormalizeDOI(r.DOI)})
	}
	if r.OpenAlexID != "" {
		ids = append(ids, types.NamespacedID{Namespace: types.NSOpenAlex, Value: r.OpenAlexID})
	}
	return ids
}

// Date parses the record's publication date, falling back to January 1
// of the publication year.
func (r *RawRecord) Date() time.Time {
	if r.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", r.PublicationDate); err == nil {
			return t
		}
	}
	if r.Year > 0 {
		return time.Date(r.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// Client fetches records from the primary bibliographic source.
type Client interface {
	// FetchByQuery searches for papers matching free text.
	FetchByQuery(ctx context.Context, text string, limit int) ([]RawRecord, error)

	// FetchByIdentifiers looks up one paper by any of its external ids.
	// Returns ErrNotFound when the source has no matching record.
	FetchByIdentifiers(ctx context.Context, ids []types.NamespacedID) (*RawRecord, error)

	// FetchCitations lists papers citing the identified paper.
	FetchCitations(ctx context.Context, id types.NamespacedID, limit int) ([]RawRecord, error)
}

// Enricher fetches richer metadata for a known paper from the
// secondary source.
type Enricher interface {
	// FetchWork looks up one work by DOI or enrichment-source id.
	// Returns ErrNotFound when the source has no matching record.
	FetchWork(ctx context.Context, ids []types.NamespacedID) (*RawRecord, error)
}
