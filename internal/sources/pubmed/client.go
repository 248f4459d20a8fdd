package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oncospatial/litsync/internal/domain"
	"github.com/oncospatial/litsync/internal/sources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	DefaultRateLimit = 3.0

	// KeyedRateLimit is the rate limit granted with an API key.
	KeyedRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default esearch page size.
	DefaultPageSize = 200

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// fetchBatchSize bounds the number of PMIDs sent to esummary/efetch in
	// a single request, keeping URLs well under server limits.
	fetchBatchSize = 200

	// maxResponseBytes caps the response body size read from any endpoint.
	maxResponseBytes = 10 << 20

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"

	// articleURLBase is the canonical web page prefix for a PMID.
	articleURLBase = "https://pubmed.ncbi.nlm.nih.gov/"
)

// Accession patterns for GEO series and SRA/BioProject identifiers found
// in data bank entries and reference citations.
var (
	geoAccessionRe = regexp.MustCompile(`GSE\d+`)
	sraAccessionRe = regexp.MustCompile(`(?:PRJNA|SRP|SRR|SRX|SRS)\d+`)
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to
	// DefaultRateLimit, or KeyedRateLimit when an API key is set.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// PageSize is the esearch page size. Defaults to DefaultPageSize.
	PageSize int
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
		if c.APIKey != "" {
			c.RateLimit = KeyedRateLimit
		}
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > MaxResultsLimit {
		c.PageSize = MaxResultsLimit
	}
}

// SearchParams controls an esearch query.
type SearchParams struct {
	// Query is the PubMed query expression.
	Query string

	// RelDays restricts results to publication dates within the last N
	// days. Zero means no date restriction.
	RelDays int

	// Offset is the zero-based result offset for pagination.
	Offset int

	// PageSize overrides the client's configured page size when positive.
	PageSize int
}

// SearchPage is one page of PMIDs from a search.
type SearchPage struct {
	PMIDs      []string
	Total      int
	Offset     int
	NextOffset int
	HasMore    bool
}

// Client talks to the PubMed E-utilities endpoints.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "litsync/1.0 (https://github.com/oncospatial/litsync)",
	}

	return &Client{
		config:     cfg,
		httpClient: sources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search returns one page of PMIDs matching the query via esearch.fcgi.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchPage, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = c.config.PageSize
	}
	if pageSize > MaxResultsLimit {
		pageSize = MaxResultsLimit
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", params.Query)
	q.Set("retmode", "json")
	q.Set("retmax", strconv.Itoa(pageSize))
	q.Set("usehistory", "y")
	if params.Offset > 0 {
		q.Set("retstart", strconv.Itoa(params.Offset))
	}
	if params.RelDays > 0 {
		q.Set("reldate", strconv.Itoa(params.RelDays))
		q.Set("datetype", "pdat")
	}

	body, err := c.get(ctx, "/esearch.fcgi", q)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	var envelope esearchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse esearch response: %w", err)
	}

	total, _ := strconv.Atoi(envelope.ESearchResult.Count.String())
	nextOffset := params.Offset + len(envelope.ESearchResult.IDList)

	return &SearchPage{
		PMIDs:      envelope.ESearchResult.IDList,
		Total:      total,
		Offset:     params.Offset,
		NextOffset: nextOffset,
		HasMore:    len(envelope.ESearchResult.IDList) > 0 && nextOffset < total,
	}, nil
}

// Summaries retrieves lightweight bibliographic summaries for the given
// PMIDs via esummary.fcgi, keyed by PMID.
func (c *Client) Summaries(ctx context.Context, pmids []string) (map[string]domain.Record, error) {
	records := make(map[string]domain.Record, len(pmids))

	for _, batch := range batchPMIDs(pmids, fetchBatchSize) {
		q := url.Values{}
		q.Set("db", "pubmed")
		q.Set("id", strings.Join(batch, ","))
		q.Set("retmode", "json")

		body, err := c.get(ctx, "/esummary.fcgi", q)
		if err != nil {
			return nil, fmt.Errorf("esummary failed: %w", err)
		}

		var envelope esummaryEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to parse esummary response: %w", err)
		}

		for key, raw := range envelope.Result {
			// The result object carries a "uids" index array next to the
			// per-PMID summary objects.
			if key == "uids" {
				continue
			}
			var summary DocSummary
			if err := json.Unmarshal(raw, &summary); err != nil {
				return nil, fmt.Errorf("failed to parse summary for %s: %w", key, err)
			}
			records[key] = summaryToRecord(key, summary)
		}
	}

	return records, nil
}

// Details retrieves full article detail for the given PMIDs via
// efetch.fcgi, keyed by PMID. Detail records carry the abstract, MeSH
// annotations, dataset accessions, and the raw article XML.
func (c *Client) Details(ctx context.Context, pmids []string) (map[string]domain.Record, error) {
	records := make(map[string]domain.Record, len(pmids))

	for _, batch := range batchPMIDs(pmids, fetchBatchSize) {
		q := url.Values{}
		q.Set("db", "pubmed")
		q.Set("id", strings.Join(batch, ","))
		q.Set("retmode", "xml")
		q.Set("rettype", "abstract")

		body, err := c.get(ctx, "/efetch.fcgi", q)
		if err != nil {
			return nil, fmt.Errorf("efetch failed: %w", err)
		}

		var articleSet PubmedArticleSet
		if err := xml.Unmarshal(body, &articleSet); err != nil {
			return nil, fmt.Errorf("failed to parse efetch response: %w", err)
		}

		for _, article := range articleSet.Articles {
			rec := articleToRecord(article)
			if rec.PMID != "" {
				records[rec.PMID] = rec
			}
		}
	}

	return records, nil
}

// get executes a GET against the given E-utilities endpoint and returns
// the response body. The API key is appended when configured.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	u, err := url.Parse(c.config.BaseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}
	return body, nil
}

// summaryToRecord converts an esummary document summary to a record.
func summaryToRecord(pmid string, s DocSummary) domain.Record {
	rec := domain.Record{
		PMID:       pmid,
		Title:      s.Title,
		Journal:    s.FullJournalName,
		PubDateRaw: s.PubDate,
		URL:        articleURLBase + pmid + "/",
	}
	if rec.Journal == "" {
		rec.Journal = s.Source
	}

	for _, id := range s.ArticleIDs {
		switch id.IDType {
		case "doi":
			rec.DOI = id.Value
		case "pmc":
			rec.PMCID = id.Value
		}
	}
	if rec.DOI == "" {
		rec.DOI = doiFromELocation(s.ELocationID)
	}

	for _, a := range s.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, a.Name)
		}
	}
	rec.PublicationTypes = append(rec.PublicationTypes, s.PubTypes...)

	return rec
}

// doiFromELocation extracts a DOI from an esummary elocationid string,
// which typically reads "doi: 10.1038/s41467-023-36325-2".
func doiFromELocation(eloc string) string {
	eloc = strings.TrimSpace(eloc)
	lower := strings.ToLower(eloc)
	if idx := strings.Index(lower, "doi:"); idx >= 0 {
		return strings.TrimSpace(eloc[idx+len("doi:"):])
	}
	return ""
}

// articleToRecord converts an efetch article to a detail record.
func articleToRecord(article PubmedArticle) domain.Record {
	citation := article.MedlineCitation
	pubmedData := article.PubmedData

	rec := domain.Record{
		PMID:     citation.PMID.Value,
		Title:    citation.Article.ArticleTitle,
		DOI:      extractDOI(citation.Article, pubmedData),
		Abstract: extractAbstract(citation.Article.Abstract),
		URL:      articleURLBase + citation.PMID.Value + "/",
	}

	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "pmc" {
			rec.PMCID = aid.Value
			break
		}
	}

	rec.Journal = citation.Article.Journal.Title
	if rec.Journal == "" {
		rec.Journal = citation.Article.Journal.ISOAbbreviation
	}
	rec.PubDateRaw = rawPubDate(citation.Article.Journal.JournalIssue.PubDate)

	if citation.Article.AuthorList != nil {
		for _, a := range citation.Article.AuthorList.Authors {
			if name := authorName(a); name != "" {
				rec.Authors = append(rec.Authors, name)
			}
		}
	}

	if citation.Article.PublicationTypeList != nil {
		for _, pt := range citation.Article.PublicationTypeList.PublicationTypes {
			rec.PublicationTypes = append(rec.PublicationTypes, pt.Value)
		}
	}

	rec.MeshHeadings, rec.MeshTerms, rec.MajorMesh = extractMesh(citation.MeshHeadingList)
	rec.GEOAccessions, rec.SRAAccessions = extractAccessions(article)

	if raw, err := xml.Marshal(article); err == nil {
		rec.RawPayload = string(raw)
	}

	return rec
}

// extractDOI extracts the DOI from article metadata. ELocationID is
// checked first, then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}
	return ""
}

// extractAbstract joins the abstract sections, prefixing labeled sections
// with their label so structured abstracts stay readable as plain text.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			text = at.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// authorName formats an author as "Forename Lastname", falling back to the
// collective name for consortium authors.
func authorName(a Author) string {
	if a.CollectiveName != "" {
		return a.CollectiveName
	}
	switch {
	case a.ForeName != "" && a.LastName != "":
		return a.ForeName + " " + a.LastName
	case a.Initials != "" && a.LastName != "":
		return a.Initials + " " + a.LastName
	default:
		return a.LastName
	}
}

// rawPubDate reconstructs the source's publication date string.
func rawPubDate(pd PubDate) string {
	if pd.MedlineDate != "" {
		return pd.MedlineDate
	}
	parts := make([]string, 0, 3)
	if pd.Year != "" {
		parts = append(parts, pd.Year)
	}
	if pd.Month != "" {
		parts = append(parts, pd.Month)
	}
	if pd.Day != "" {
		parts = append(parts, pd.Day)
	}
	if pd.Season != "" {
		parts = append(parts, pd.Season)
	}
	return strings.Join(parts, " ")
}

// extractMesh flattens the MeSH heading list into the display string,
// the descriptor term list, and the major-topic descriptor list. A
// descriptor counts as major when it or any of its qualifiers is flagged.
func extractMesh(list *MeshHeadingList) (headings string, terms, major []string) {
	if list == nil {
		return "", nil, nil
	}

	display := make([]string, 0, len(list.MeshHeadings))
	for _, mh := range list.MeshHeadings {
		terms = append(terms, mh.DescriptorName.Value)

		isMajor := mh.DescriptorName.MajorTopic == "Y"
		entry := mh.DescriptorName.Value
		for _, q := range mh.QualifierNames {
			entry += "/" + q.Value
			if q.MajorTopic == "Y" {
				isMajor = true
			}
		}
		if isMajor {
			major = append(major, mh.DescriptorName.Value)
		}
		display = append(display, entry)
	}
	return strings.Join(display, "; "), terms, major
}

// extractAccessions mines GEO and SRA accessions from data bank entries and
// reference citations, returning each list sorted and deduplicated.
func extractAccessions(article PubmedArticle) (geo, sra []string) {
	geoSet := make(map[string]struct{})
	sraSet := make(map[string]struct{})

	scan := func(text string) {
		for _, m := range geoAccessionRe.FindAllString(text, -1) {
			geoSet[m] = struct{}{}
		}
		for _, m := range sraAccessionRe.FindAllString(text, -1) {
			sraSet[m] = struct{}{}
		}
	}

	if dbl := article.MedlineCitation.Article.DataBankList; dbl != nil {
		for _, db := range dbl.DataBanks {
			if db.AccessionNumberList == nil {
				continue
			}
			for _, acc := range db.AccessionNumberList.AccessionNumbers {
				scan(acc)
			}
		}
	}

	if refs := article.PubmedData.ReferenceList; refs != nil {
		for _, ref := range refs.References {
			scan(ref.Citation)
		}
	}

	geo = setToSortedSlice(geoSet)
	sra = setToSortedSlice(sraSet)
	return geo, sra
}

func setToSortedSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// batchPMIDs splits the PMID list into chunks of at most size.
func batchPMIDs(pmids []string, size int) [][]string {
	if len(pmids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(pmids)+size-1)/size)
	for start := 0; start < len(pmids); start += size {
		end := start + size
		if end > len(pmids) {
			end = len(pmids)
		}
		batches = append(batches, pmids[start:end])
	}
	return batches
}
