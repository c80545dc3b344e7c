// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/citegraph/internal/httputil"
	"github.com/pdiddy/citegraph/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// OpenAlexClient is the enrichment client. OpenAlex supplies the
// abstract inverted index, FWCI, language, and institution-resolved
// authorships that the primary source lacks.
type OpenAlexClient struct {
	Client *http.Client
	Cfg    types.FetchConfig
}

var _ Enricher = (*OpenAlexClient)(nil)

// FetchWork looks up one work by DOI or OpenAlex id.
func (c *OpenAlexClient) FetchWork(ctx context.Context, ids []types.NamespacedID) (*RawRecord, error) {
	path := openAlexWorkPath(ids)
	if path == "" {
		return nil, fmt.Errorf("no identifier usable by OpenAlex")
	}

	reqURL := openAlexAPIBase + path
	if c.Cfg.OpenAlexEmail != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.Cfg.OpenAlexEmail)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAlex request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	rec := work.toRecord()
	return &rec, nil
}

// openAlexWorkPath builds the work path segment. DOIs are looked up via
// their resolver URL form; native ids are bare.
func openAlexWorkPath(ids []types.NamespacedID) string {
	for _, id := range ids {
		if id.Namespace == types.NSOpenAlex && id.Value != "" {
			return id.Value
		}
	}
	for _, id := range ids {
		if id.Namespace == types.NSDOI && id.Value != "" {
			return "https://doi.org/" + id.Value
		}
	}
	return ""
}

// ReconstructAbstract converts an abstract inverted index back to plain
// text: each word is placed at each of its positions and the result is
// joined in position order.
func ReconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexWork struct {
	ID                    string               `json:"id"`
	DOI                   string               `json:"doi"`
	Title                 string               `json:"title"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	Language              string               `json:"language"`
	Type                  string               `json:"type"`
	CitedByCount          int                  `json:"cited_by_count"`
	FWCI                  float64              `json:"fwci"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
	Keywords              []openAlexKeyword    `json:"keywords"`
	Authorships           []openAlexAuthorship `json:"authorships"`
}

type openAlexLocation struct {
	Source *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

type openAlexKeyword struct {
	DisplayName string `json:"display_name"`
}

type openAlexAuthorship struct {
	AuthorPosition string `json:"author_position"`
	Author         struct {
		ID          string `json:"id"`
		ORCID       string `json:"orcid"`
		DisplayName string `json:"display_name"`
	} `json:"author"`
	RawAuthorName   string `json:"raw_author_name"`
	IsCorresponding bool   `json:"is_corresponding"`
	Institutions    []struct {
		ID          string `json:"id"`
		ROR         string `json:"ror"`
		DisplayName string `json:"display_name"`
		CountryCode string `json:"country_code"`
		Type        string `json:"type"`
	} `json:"institutions"`
}

func (w openAlexWork) toRecord() RawRecord {
	r := RawRecord{
		OpenAlexID:            shortOpenAlexID(w.ID),
		DOI:                   types.NormalizeDOI(w.DOI),
		Title:                 w.Title,
		Year:                  w.PublicationYear,
		PublicationDate:       w.PublicationDate,
		Language:              w.Language,
		Type:                  w.Type,
		CitedByCount:          w.CitedByCount,
		FWCI:                  w.FWCI,
		AbstractInvertedIndex: w.AbstractInvertedIndex,
		OAURL:                 w.OpenAccess.OAURL,
		OAStatus:              w.OpenAccess.OAStatus,
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		r.Venue = w.PrimaryLocation.Source.DisplayName
	}
	for _, kw := range w.Keywords {
		if kw.DisplayName != "" {
			r.Keywords = append(r.Keywords, kw.DisplayName)
		}
	}
	for i, a := range w.Authorships {
		auth := RawAuthorship{
			OpenAlexAuthorID: shortOpenAlexID(a.Author.ID),
			ORCID:            normalizeORCID(a.Author.ORCID),
			DisplayName:      a.Author.DisplayName,
			RawName:          a.RawAuthorName,
			Position:         i,
			Corresponding:    a.IsCorresponding,
		}
		if auth.RawName == "" {
			auth.RawName = a.Author.DisplayName
		}
		for _, inst := range a.Institutions {
			auth.Institutions = append(auth.Institutions, RawInstitution{
				ROR:         strings.TrimPrefix(inst.ROR, "https://ror.org/"),
				DisplayName: inst.DisplayName,
				CountryCode: inst.CountryCode,
				Type:        inst.Type,
			})
		}
		r.Authorships = append(r.Authorships, auth)
	}
	return r
}

// shortOpenAlexID strips the https://openalex.org/ prefix so the bare
// W/A id is used as the index value.
func shortOpenAlexID(id string) string {
	return strings.TrimPrefix(id, "https://openalex.org/")
}

func normalizeORCID(orcid string) string {
	return strings.TrimPrefix(orcid, "https://orcid.org/")
}
