// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Namespace scopes an external identifier to its source.
type Namespace string

const (
	// NSSemantic is the primary bibliographic-source paper/author id.
	NSSemantic Namespace = "semanticscholar"

	// NSDOI is a DOI, normalized per NormalizeDOI.
	NSDOI Namespace = "doi"

	// NSORCID is an author ORCID.
	NSORCID Namespace = "orcid"

	// NSROR is an institution registry id.
	NSROR Namespace = "ror"

	// NSOpenAlex is the enrichment-source work/author id.
	NSOpenAlex Namespace = "openalex"
)

// DefaultNamespacePriority orders namespaces for conflict resolution
// during dedup: when supplied external ids resolve to different internal
// ids, the id found under the highest-priority namespace wins.
var DefaultNamespacePriority = []Namespace{NSSemantic, NSDOI, NSORCID, NSROR, NSOpenAlex}

// NamespacedID is an external identifier scoped to its source.
type NamespacedID struct {
	Namespace Namespace `json:"namespace" yaml:"namespace"`
	Value     string    `json:"value" yaml:"value"`
}

// ExternalIDEntry maps one external id to one internal id. Many external
// ids may map to the same internal id; an external id never maps to more
// than one internal id.
type ExternalIDEntry struct {
	ID         NamespacedID `json:"id" yaml:"id"`
	InternalID string       `json:"internal_id" yaml:"internal_id"`
}

// NormalizeDOI strips resolver prefixes and lowercases a DOI so the same
// work indexed by different sources produces the same index key.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(doi)
}
