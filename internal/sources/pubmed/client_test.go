package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncospatial/litsync/internal/domain"
	"github.com/oncospatial/litsync/internal/sources"
)

// Sample API responses for testing.
const esearchResponseJSON = `{
	"header": {"type": "esearch", "version": "0.3"},
	"esearchresult": {
		"count": "245",
		"retmax": "2",
		"retstart": "0",
		"idlist": ["36750562", "87654321"],
		"webenv": "MCID_abc123",
		"querykey": "1"
	}
}`

const esearchEmptyResponseJSON = `{
	"esearchresult": {
		"count": "0",
		"retmax": "0",
		"retstart": "0",
		"idlist": []
	}
}`

const esummaryResponseJSON = `{
	"header": {"type": "esummary", "version": "0.3"},
	"result": {
		"uids": ["36750562"],
		"36750562": {
			"uid": "36750562",
			"title": "Spatial transcriptomics of prostate tumor microenvironment.",
			"fulljournalname": "Nature Communications",
			"source": "Nat Commun",
			"pubdate": "2023 Feb 7",
			"elocationid": "doi: 10.1038/s41467-023-36325-2",
			"authors": [
				{"name": "Hirz T", "authtype": "Author"},
				{"name": "Mei S", "authtype": "Author"}
			],
			"articleids": [
				{"idtype": "pubmed", "idtypen": 1, "value": "36750562"},
				{"idtype": "doi", "idtypen": 3, "value": "10.1038/s41467-023-36325-2"},
				{"idtype": "pmc", "idtypen": 8, "value": "PMC9905601"}
			],
			"pubtype": ["Journal Article"]
		}
	}
}`

const efetchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">36750562</PMID>
			<Article PubModel="Electronic">
				<Journal>
					<JournalIssue CitedMedium="Internet">
						<Volume>14</Volume>
						<Issue>1</Issue>
						<PubDate>
							<Year>2023</Year>
							<Month>Feb</Month>
							<Day>7</Day>
						</PubDate>
					</JournalIssue>
					<Title>Nature Communications</Title>
					<ISOAbbreviation>Nat Commun</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Spatial transcriptomics of prostate tumor microenvironment.</ArticleTitle>
				<ELocationID EIdType="doi" ValidYN="Y">10.1038/s41467-023-36325-2</ELocationID>
				<Abstract>
					<AbstractText Label="BACKGROUND">Prostate tumors show heterogeneous microenvironments.</AbstractText>
					<AbstractText Label="METHODS">We applied single-cell and spatial transcriptomics to matched specimens.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Hirz</LastName>
						<ForeName>Taghreed</ForeName>
						<Initials>T</Initials>
					</Author>
					<Author ValidYN="Y">
						<CollectiveName>Tumor Atlas Consortium</CollectiveName>
					</Author>
				</AuthorList>
				<PublicationTypeList>
					<PublicationType UI="D016428">Journal Article</PublicationType>
				</PublicationTypeList>
				<DataBankList CompleteYN="Y">
					<DataBank>
						<DataBankName>GEO</DataBankName>
						<AccessionNumberList>
							<AccessionNumber>GSE181294</AccessionNumber>
						</AccessionNumberList>
					</DataBank>
				</DataBankList>
			</Article>
			<MeshHeadingList>
				<MeshHeading>
					<DescriptorName UI="D011471" MajorTopicYN="Y">Prostatic Neoplasms</DescriptorName>
					<QualifierName UI="Q000235" MajorTopicYN="N">genetics</QualifierName>
				</MeshHeading>
				<MeshHeading>
					<DescriptorName UI="D005091" MajorTopicYN="N">Gene Expression Profiling</DescriptorName>
					<QualifierName UI="Q000379" MajorTopicYN="Y">methods</QualifierName>
				</MeshHeading>
				<MeshHeading>
					<DescriptorName UI="D006801" MajorTopicYN="N">Humans</DescriptorName>
				</MeshHeading>
			</MeshHeadingList>
		</MedlineCitation>
		<PubmedData>
			<PublicationStatus>epublish</PublicationStatus>
			<ArticleIdList>
				<ArticleId IdType="pubmed">36750562</ArticleId>
				<ArticleId IdType="doi">10.1038/s41467-023-36325-2</ArticleId>
				<ArticleId IdType="pmc">PMC9905601</ArticleId>
			</ArticleIdList>
			<ReferenceList>
				<Reference>
					<Citation>Raw data are deposited under accession GSE176031 and PRJNA741320.</Citation>
				</Reference>
			</ReferenceList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

const pmcResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<pmc-articleset>
	<article>
		<front>
			<article-meta>
				<abstract>
					<p>Prostate tumors show heterogeneous microenvironments across zones.</p>
				</abstract>
			</article-meta>
		</front>
		<body>
			<sec sec-type="materials|methods">
				<title>Methods</title>
				<p>Fresh specimens were dissociated and profiled with 10x Visium.</p>
			</sec>
			<sec sec-type="results">
				<title>Results</title>
				<p>We identified spatially restricted tumor subclones.</p>
			</sec>
			<sec>
				<title>Data availability</title>
				<p>Sequencing data are available under GSE181294.</p>
			</sec>
		</body>
	</article>
</pmc-articleset>`

// newMockClient creates a client pointed at a mock server with relaxed
// rate limits so tests run fast.
func newMockClient(serverURL string) *Client {
	cfg := Config{
		BaseURL:   serverURL,
		RateLimit: 1000,
		BurstSize: 1000,
		Timeout:   5 * time.Second,
	}
	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
		RetryDelay: 10 * time.Millisecond,
	})
	return NewWithHTTPClient(cfg, httpClient)
}

func TestSearch(t *testing.T) {
	t.Run("returns PMIDs and pagination info", func(t *testing.T) {
		var gotQuery map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/esearch.fcgi", r.URL.Path)
			gotQuery = map[string]string{
				"db":      r.URL.Query().Get("db"),
				"term":    r.URL.Query().Get("term"),
				"retmode": r.URL.Query().Get("retmode"),
				"reldate": r.URL.Query().Get("reldate"),
				"dtype":   r.URL.Query().Get("datetype"),
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(esearchResponseJSON))
		}))
		defer server.Close()

		client := newMockClient(server.URL)
		page, err := client.Search(context.Background(), SearchParams{
			Query:   "prostate cancer AND spatial transcriptomics",
			RelDays: 30,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"36750562", "87654321"}, page.PMIDs)
		assert.Equal(t, 245, page.Total)
		assert.Equal(t, 2, page.NextOffset)
		assert.True(t, page.HasMore)

		assert.Equal(t, "pubmed", gotQuery["db"])
		assert.Equal(t, "prostate cancer AND spatial transcriptomics", gotQuery["term"])
		assert.Equal(t, "json", gotQuery["retmode"])
		assert.Equal(t, "30", gotQuery["reldate"])
		assert.Equal(t, "pdat", gotQuery["dtype"])
	})

	t.Run("empty results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(esearchEmptyResponseJSON))
		}))
		defer server.Close()

		client := newMockClient(server.URL)
		page, err := client.Search(context.Background(), SearchParams{Query: "xyzzy"})
		require.NoError(t, err)

		assert.Empty(t, page.PMIDs)
		assert.Zero(t, page.Total)
		assert.False(t, page.HasMore)
	})

	t.Run("sends API key when configured", func(t *testing.T) {
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.URL.Query().Get("api_key")
			_, _ = w.Write([]byte(esearchEmptyResponseJSON))
		}))
		defer server.Close()

		cfg := Config{BaseURL: server.URL, APIKey: "test-key", RateLimit: 1000, BurstSize: 1000}
		httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
			RateLimit: 1000, BurstSize: 1000, RetryDelay: 10 * time.Millisecond,
		})
		client := NewWithHTTPClient(cfg, httpClient)

		_, err := client.Search(context.Background(), SearchParams{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, "test-key", gotKey)
	})

	t.Run("API error surfaces as external error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("invalid query"))
		}))
		defer server.Close()

		client := newMockClient(server.URL)
		_, err := client.Search(context.Background(), SearchParams{Query: "q"})
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "PubMed", apiErr.Source)
	})
}

func TestSummaries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/esummary.fcgi", r.URL.Path)
		require.Equal(t, "36750562", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(esummaryResponseJSON))
	}))
	defer server.Close()

	client := newMockClient(server.URL)
	records, err := client.Summaries(context.Background(), []string{"36750562"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records["36750562"]
	assert.Equal(t, "36750562", rec.PMID)
	assert.Equal(t, "Spatial transcriptomics of prostate tumor microenvironment.", rec.Title)
	assert.Equal(t, "Nature Communications", rec.Journal)
	assert.Equal(t, "2023 Feb 7", rec.PubDateRaw)
	assert.Equal(t, "10.1038/s41467-023-36325-2", rec.DOI)
	assert.Equal(t, "PMC9905601", rec.PMCID)
	assert.Equal(t, []string{"Hirz T", "Mei S"}, rec.Authors)
	assert.Equal(t, []string{"Journal Article"}, rec.PublicationTypes)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/36750562/", rec.URL)
}

func TestSummariesEmptyInput(t *testing.T) {
	client := newMockClient("http://unused.invalid")
	records, err := client.Summaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/efetch.fcgi", r.URL.Path)
		require.Equal(t, "xml", r.URL.Query().Get("retmode"))
		_, _ = w.Write([]byte(efetchResponseXML))
	}))
	defer server.Close()

	client := newMockClient(server.URL)
	records, err := client.Details(context.Background(), []string{"36750562"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records["36750562"]
	assert.Equal(t, "10.1038/s41467-023-36325-2", rec.DOI)
	assert.Equal(t, "PMC9905601", rec.PMCID)
	assert.Equal(t, "Nature Communications", rec.Journal)
	assert.Equal(t, "2023 Feb 7", rec.PubDateRaw)
	assert.Contains(t, rec.Abstract, "BACKGROUND: Prostate tumors show heterogeneous microenvironments.")
	assert.Contains(t, rec.Abstract, "METHODS: We applied single-cell and spatial transcriptomics")
	assert.Equal(t, []string{"Taghreed Hirz", "Tumor Atlas Consortium"}, rec.Authors)
	assert.NotEmpty(t, rec.RawPayload)

	t.Run("mesh extraction", func(t *testing.T) {
		assert.Equal(t, []string{"Prostatic Neoplasms", "Gene Expression Profiling", "Humans"}, rec.MeshTerms)
		assert.Equal(t, []string{"Prostatic Neoplasms", "Gene Expression Profiling"}, rec.MajorMesh)
		assert.Equal(t,
			"Prostatic Neoplasms/genetics; Gene Expression Profiling/methods; Humans",
			rec.MeshHeadings)
	})

	t.Run("accession mining", func(t *testing.T) {
		assert.Equal(t, []string{"GSE176031", "GSE181294"}, rec.GEOAccessions)
		assert.Equal(t, []string{"PRJNA741320"}, rec.SRAAccessions)
	})
}

func TestFullText(t *testing.T) {
	t.Run("extracts sections", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/efetch.fcgi", r.URL.Path)
			require.Equal(t, "pmc", r.URL.Query().Get("db"))
			require.Equal(t, "9905601", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(pmcResponseXML))
		}))
		defer server.Close()

		client := newMockClient(server.URL)
		ft, err := client.FullText(context.Background(), "PMC9905601")
		require.NoError(t, err)
		require.False(t, ft.Empty())

		assert.Contains(t, ft.Abstract, "heterogeneous microenvironments across zones")
		assert.Contains(t, ft.Methods, "10x Visium")
		assert.Contains(t, ft.Results, "spatially restricted tumor subclones")
		assert.Contains(t, ft.Availability, "GSE181294")
	})

	t.Run("empty pmcid rejected", func(t *testing.T) {
		client := newMockClient("http://unused.invalid")
		_, err := client.FullText(context.Background(), "PMC")
		require.Error(t, err)
	})

	t.Run("deposit without sections", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<pmc-articleset><article><body/></article></pmc-articleset>`))
		}))
		defer server.Close()

		client := newMockClient(server.URL)
		ft, err := client.FullText(context.Background(), "12345")
		require.NoError(t, err)
		assert.True(t, ft.Empty())
	})
}

func TestConfigDefaults(t *testing.T) {
	t.Run("without API key", func(t *testing.T) {
		cfg := Config{}
		cfg.applyDefaults()
		assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
		assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
		assert.Equal(t, DefaultPageSize, cfg.PageSize)
	})

	t.Run("API key raises rate limit", func(t *testing.T) {
		cfg := Config{APIKey: "k"}
		cfg.applyDefaults()
		assert.Equal(t, KeyedRateLimit, cfg.RateLimit)
	})

	t.Run("page size capped", func(t *testing.T) {
		cfg := Config{PageSize: 99999}
		cfg.applyDefaults()
		assert.Equal(t, MaxResultsLimit, cfg.PageSize)
	})
}

func TestBatchPMIDs(t *testing.T) {
	assert.Nil(t, batchPMIDs(nil, 10))

	batches := batchPMIDs([]string{"1", "2", "3", "4", "5"}, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"1", "2"}, batches[0])
	assert.Equal(t, []string{"5"}, batches[2])
}

func TestDoiFromELocation(t *testing.T) {
	assert.Equal(t, "10.1038/s41467-023-36325-2", doiFromELocation("doi: 10.1038/s41467-023-36325-2"))
	assert.Equal(t, "", doiFromELocation("pii: S0000"))
	assert.Equal(t, "", doiFromELocation(""))
}
