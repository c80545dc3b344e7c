// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/citegraph/internal/httputil"
	"github.com/pdiddy/citegraph/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a
// var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticPaperFields = "paperId,externalIds,title,abstract,venue,year,publicationDate," +
	"citationCount,publicationTypes,isOpenAccess,openAccessPdf,s2FieldsOfStudy,authors"

// SemanticClient is the primary bibliographic client, backed by the
// Semantic Scholar Graph API.
type SemanticClient struct {
	Client *http.Client
	Cfg    types.FetchConfig
}

var _ Client = (*SemanticClient)(nil)

// FetchByQuery searches for papers matching text.
func (c *SemanticClient) FetchByQuery(ctx context.Context, text string, limit int) ([]RawRecord, error) {
	if text == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{
		"query":  {text},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {semanticPaperFields},
	}

	var sr struct {
		Data []semanticPaper `json:"data"`
	}
	if err := c.get(ctx, semanticAPIBase+"/paper/search?"+params.Encode(), &sr); err != nil {
		return nil, fmt.Errorf("Semantic Scholar search: %w", err)
	}

	records := make([]RawRecord, 0, len(sr.Data))
	for _, p := range sr.Data {
		records = append(records, p.toRecord())
	}
	return records, nil
}

// FetchByIdentifiers looks up one paper by its strongest available id.
func (c *SemanticClient) FetchByIdentifiers(ctx context.Context, ids []types.NamespacedID) (*RawRecord, error) {
	path := semanticPaperPath(ids)
	if path == "" {
		return nil, fmt.Errorf("no identifier usable by Semantic Scholar")
	}

	params := url.Values{"fields": {semanticPaperFields}}
	var p semanticPaper
	if err := c.get(ctx, semanticAPIBase+"/paper/"+path+"?"+params.Encode(), &p); err != nil {
		return nil, fmt.Errorf("Semantic Scholar lookup %s: %w", path, err)
	}
	rec := p.toRecord()
	return &rec, nil
}

// FetchCitations lists papers citing the identified paper, newest-first
// per the API's default ordering.
func (c *SemanticClient) FetchCitations(ctx context.Context, id types.NamespacedID, limit int) ([]RawRecord, error) {
	path := semanticPaperPath([]types.NamespacedID{id})
	if path == "" {
		return nil, fmt.Errorf("no identifier usable by Semantic Scholar")
	}
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{
		"fields": {semanticPaperFields},
		"limit":  {fmt.Sprintf("%d", limit)},
	}

	var cr struct {
		Data []struct {
			CitingPaper semanticPaper `json:"citingPaper"`
		} `json:"data"`
	}
	if err := c.get(ctx, semanticAPIBase+"/paper/"+path+"/citations?"+params.Encode(), &cr); err != nil {
		return nil, fmt.Errorf("Semantic Scholar citations %s: %w", path, err)
	}

	records := make([]RawRecord, 0, len(cr.Data))
	for _, entry := range cr.Data {
		if entry.CitingPaper.PaperID == "" {
			continue
		}
		records = append(records, entry.CitingPaper.toRecord())
	}
	return records, nil
}

func (c *SemanticClient) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)
	if c.Cfg.SemanticScholarAPIKey != "" {
		req.Header.Set("x-api-key", c.Cfg.SemanticScholarAPIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)
	if err != nil {
		return fmt.Errorf("API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// semanticPaperPath builds the paper path segment from the
// highest-priority usable identifier.
func semanticPaperPath(ids []types.NamespacedID) string {
	for _, id := range ids {
		if id.Namespace == types.NSSemantic && id.Value != "" {
			return id.Value
		}
	}
	for _, id := range ids {
		if id.Namespace == types.NSDOI && id.Value != "" {
			return "DOI:" + id.Value
		}
	}
	return ""
}

// Semantic Scholar API JSON structures.
type semanticPaper struct {
	PaperID     string `json:"paperId"`
	ExternalIDs struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
	Title            string   `json:"title"`
	Abstract         *string  `json:"abstract"`
	Venue            string   `json:"venue"`
	Year             int      `json:"year"`
	PublicationDate  string   `json:"publicationDate"`
	CitationCount    int      `json:"citationCount"`
	PublicationTypes []string `json:"publicationTypes"`
	IsOpenAccess     bool     `json:"isOpenAccess"`
	OpenAccessPdf    *struct {
		URL    string `json:"url"`
		Status string `json:"status"`
	} `json:"openAccessPdf"`
	S2FieldsOfStudy []struct {
		Category string `json:"category"`
	} `json:"s2FieldsOfStudy"`
	Authors []struct {
		AuthorID    string `json:"authorId"`
		Name        string `json:"name"`
		ExternalIDs struct {
			ORCID string `json:"ORCID"`
		} `json:"externalIds"`
	} `json:"authors"`
}

func (p semanticPaper) toRecord() RawRecord {
	r := RawRecord{
		SemanticID:      p.PaperID,
		DOI:             types.NormalizeDOI(p.ExternalIDs.DOI),
		Title:           p.Title,
		Venue:           p.Venue,
		Year:            p.Year,
		PublicationDate: p.PublicationDate,
		CitedByCount:    p.CitationCount,
	}
	if p.Abstract != nil {
		r.Abstract = *p.Abstract
	}
	if len(p.PublicationTypes) > 0 {
		r.Type = p.PublicationTypes[0]
	}
	if p.OpenAccessPdf != nil {
		r.OAURL = p.OpenAccessPdf.URL
		r.OAStatus = p.OpenAccessPdf.Status
	}
	for _, f := range p.S2FieldsOfStudy {
		if f.Category != "" {
			r.Keywords = append(r.Keywords, f.Category)
		}
	}
	for i, a := range p.Authors {
		r.Authorships = append(r.Authorships, RawAuthorship{
			SemanticAuthorID: a.AuthorID,
			ORCID:            a.ExternalIDs.ORCID,
			DisplayName:      a.Name,
			RawName:          a.Name,
			Position:         i,
		})
	}
	return r
}
