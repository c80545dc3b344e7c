// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the citation graph data model shared by the
// store, pipeline, and synchronization layers.
package types

import "time"

// Paper is one node in the citation graph. Papers are append-only: once
// created they are never deleted, and a paper that has been hydrated is
// never re-stubbed.
type Paper struct {
	// ID is the internal short uid minted by the dedup resolver.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as reported by the bibliographic source.
	Title string `json:"title" yaml:"title"`

	// Year is the publication year (0 when unknown).
	Year int `json:"year" yaml:"year"`

	// Date is the full publication date when the source supplies one.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Venue is the journal or conference label.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Abstract is nil until a hydration or enrichment fetch supplies one.
	Abstract *string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// AbstractFetched records that a hydration attempt completed, even
	// when the source had no abstract to give.
	AbstractFetched bool `json:"abstract_fetched" yaml:"abstract_fetched"`

	// FWCI is the field-weighted citation impact score.
	FWCI float64 `json:"fwci,omitempty" yaml:"fwci,omitempty"`

	// CitedByCount is the total citation count reported upstream.
	CitedByCount int `json:"cited_by_count" yaml:"cited_by_count"`

	// Type is the publication type (e.g. "JournalArticle").
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Language is the publication language code.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Keywords lists source keywords in source order.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// OAURL and OAStatus describe open-access availability.
	OAURL    string `json:"oa_url,omitempty" yaml:"oa_url,omitempty"`
	OAStatus string `json:"oa_status,omitempty" yaml:"oa_status,omitempty"`

	// IsStub marks a paper created from a relationship edge alone,
	// before its own record has been fetched.
	IsStub bool `json:"is_stub" yaml:"is_stub"`
}

// Author is a person node. Authors are mutable and mergeable: duplicate
// author records discovered across enrichment passes are consolidated by
// the merge reconciler.
type Author struct {
	ID string `json:"id" yaml:"id"`

	// DisplayName is the normalized display form of the name.
	DisplayName string `json:"display_name" yaml:"display_name"`

	// ORCID is the strongest author dedup key; empty when unknown.
	ORCID string `json:"orcid,omitempty" yaml:"orcid,omitempty"`

	IsStub bool `json:"is_stub" yaml:"is_stub"`
}

// Institution is an affiliation node. Immutable after creation.
type Institution struct {
	ID string `json:"id" yaml:"id"`

	// ROR is the institution registry identifier; empty when unknown.
	ROR string `json:"ror,omitempty" yaml:"ror,omitempty"`

	DisplayName string `json:"display_name" yaml:"display_name"`
	CountryCode string `json:"country_code,omitempty" yaml:"country_code,omitempty"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
}

// AuthorshipKey identifies an authorship edge. The (paper, author) pair
// is unique within the graph.
type AuthorshipKey struct {
	PaperID  string `json:"paper_id" yaml:"paper_id"`
	AuthorID string `json:"author_id" yaml:"author_id"`
}

// Authorship links a paper to one of its authors.
type Authorship struct {
	PaperID  string `json:"paper_id" yaml:"paper_id"`
	AuthorID string `json:"author_id" yaml:"author_id"`

	// Position is the zero-based citation-order position. Duplicate
	// positions within one paper are a data-quality fault that is
	// logged, not fatal.
	Position int `json:"position" yaml:"position"`

	// Corresponding marks the corresponding author.
	Corresponding bool `json:"corresponding,omitempty" yaml:"corresponding,omitempty"`

	// RawName is the unnormalized name string from the source record.
	// Retained permanently for audit, including after author merges.
	RawName string `json:"raw_name" yaml:"raw_name"`

	// InstitutionIDs lists affiliations in source order.
	InstitutionIDs []string `json:"institution_ids,omitempty" yaml:"institution_ids,omitempty"`
}

// Key returns the identifying (paper, author) pair.
func (a Authorship) Key() AuthorshipKey {
	return AuthorshipKey{PaperID: a.PaperID, AuthorID: a.AuthorID}
}

// RelationKind distinguishes citation edges from similarity edges.
type RelationKind string

const (
	RelCites   RelationKind = "cites"
	RelSimilar RelationKind = "similar"
)

// RelationshipKey identifies a relationship edge. No duplicate edges
// with an identical (source, target, kind) triple, no self-loops.
type RelationshipKey struct {
	SourceID string       `json:"source_id" yaml:"source_id"`
	TargetID string       `json:"target_id" yaml:"target_id"`
	Kind     RelationKind `json:"kind" yaml:"kind"`
}

// Relationship is a directed edge: source cites (or resembles) target.
type Relationship struct {
	SourceID string       `json:"source_id" yaml:"source_id"`
	TargetID string       `json:"target_id" yaml:"target_id"`
	Kind     RelationKind `json:"kind" yaml:"kind"`
}

// Key returns the identifying (source, target, kind) triple.
func (r Relationship) Key() RelationshipKey {
	return RelationshipKey{SourceID: r.SourceID, TargetID: r.TargetID, Kind: r.Kind}
}

// PaperPatch is a partial update applied to one existing paper, used for
// hydration and enrichment writes. Nil pointer fields are left untouched.
type PaperPatch struct {
	PaperID string `json:"paper_id" yaml:"paper_id"`

	Title        *string    `json:"title,omitempty" yaml:"title,omitempty"`
	Year         *int       `json:"year,omitempty" yaml:"year,omitempty"`
	Date         *time.Time `json:"date,omitempty" yaml:"date,omitempty"`
	Venue        *string    `json:"venue,omitempty" yaml:"venue,omitempty"`
	Abstract     *string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	FWCI         *float64   `json:"fwci,omitempty" yaml:"fwci,omitempty"`
	CitedByCount *int       `json:"cited_by_count,omitempty" yaml:"cited_by_count,omitempty"`
	Type         *string    `json:"type,omitempty" yaml:"type,omitempty"`
	Language     *string    `json:"language,omitempty" yaml:"language,omitempty"`
	Keywords     []string   `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	OAURL        *string    `json:"oa_url,omitempty" yaml:"oa_url,omitempty"`
	OAStatus     *string    `json:"oa_status,omitempty" yaml:"oa_status,omitempty"`

	// MarkHydrated clears the stub flag and records the fetch attempt.
	// A patch can only clear IsStub, never set it.
	MarkHydrated bool `json:"mark_hydrated,omitempty" yaml:"mark_hydrated,omitempty"`
}
