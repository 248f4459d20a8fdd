// Package pubmed provides a client for the NCBI PubMed E-utilities API.
//
// The client drives the three E-utilities endpoints used by the sync
// pipeline: esearch.fcgi to find PMIDs for a query, esummary.fcgi for
// lightweight bibliographic summaries, and efetch.fcgi for full article
// detail including abstracts, MeSH annotations, and data bank accessions.
// A companion PMC client retrieves open-access full text.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import (
	"encoding/json"
	"encoding/xml"
)

// esearchEnvelope wraps the JSON response from esearch.fcgi.
type esearchEnvelope struct {
	ESearchResult ESearchResult `json:"esearchresult"`
}

// ESearchResult holds the PMIDs matching a search query. Count, RetMax,
// and RetStart arrive as JSON strings and are decoded via json.Number.
type ESearchResult struct {
	Count    json.Number `json:"count"`
	RetMax   json.Number `json:"retmax"`
	RetStart json.Number `json:"retstart"`
	IDList   []string    `json:"idlist"`
	WebEnv   string      `json:"webenv"`
	QueryKey string      `json:"querykey"`
}

// esummaryEnvelope wraps the JSON response from esummary.fcgi. The result
// object keys summaries by PMID alongside a "uids" array, so individual
// entries are decoded lazily from RawMessage.
type esummaryEnvelope struct {
	Result map[string]json.RawMessage `json:"result"`
}

// DocSummary is a single document summary from esummary.fcgi.
type DocSummary struct {
	UID             string             `json:"uid"`
	Title           string             `json:"title"`
	FullJournalName string             `json:"fulljournalname"`
	Source          string             `json:"source"`
	PubDate         string             `json:"pubdate"`
	EPubDate        string             `json:"epubdate"`
	ELocationID     string             `json:"elocationid"`
	Authors         []DocSummaryAuthor `json:"authors"`
	ArticleIDs      []DocSummaryID     `json:"articleids"`
	PubTypes        []string           `json:"pubtype"`
}

// DocSummaryAuthor is an author entry in a document summary.
type DocSummaryAuthor struct {
	Name     string `json:"name"`
	AuthType string `json:"authtype"`
}

// DocSummaryID is an identifier entry (doi, pmc, pubmed) in a summary.
type DocSummaryID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

// PubmedArticleSet represents the XML response from efetch.fcgi.
type PubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle represents a single article in the PubMed database.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
	PubmedData      PubmedData      `xml:"PubmedData"`
}

// MedlineCitation contains the core bibliographic information.
type MedlineCitation struct {
	PMID            PMID             `xml:"PMID"`
	Article         Article          `xml:"Article"`
	MeshHeadingList *MeshHeadingList `xml:"MeshHeadingList,omitempty"`
	KeywordList     *KeywordList     `xml:"KeywordList,omitempty"`
}

// PMID represents the PubMed identifier with optional version.
type PMID struct {
	Version int    `xml:"Version,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Article contains the article metadata.
type Article struct {
	Journal             Journal              `xml:"Journal"`
	ArticleTitle        string               `xml:"ArticleTitle"`
	ELocationID         []ELocationID        `xml:"ELocationID,omitempty"`
	Abstract            *Abstract            `xml:"Abstract,omitempty"`
	AuthorList          *AuthorList          `xml:"AuthorList,omitempty"`
	PublicationTypeList *PublicationTypeList `xml:"PublicationTypeList,omitempty"`
	DataBankList        *DataBankList        `xml:"DataBankList,omitempty"`
	ArticleDate         []ArticleDate        `xml:"ArticleDate,omitempty"`
}

// Journal contains journal information.
type Journal struct {
	Title           string       `xml:"Title,omitempty"`
	ISOAbbreviation string       `xml:"ISOAbbreviation,omitempty"`
	JournalIssue    JournalIssue `xml:"JournalIssue"`
}

// JournalIssue contains the volume, issue, and publication date.
type JournalIssue struct {
	Volume  string  `xml:"Volume,omitempty"`
	Issue   string  `xml:"Issue,omitempty"`
	PubDate PubDate `xml:"PubDate"`
}

// PubDate represents the publication date which may have various formats,
// including the free-text MedlineDate form ("2020 Jan-Feb").
type PubDate struct {
	Year        string `xml:"Year,omitempty"`
	Month       string `xml:"Month,omitempty"`
	Day         string `xml:"Day,omitempty"`
	Season      string `xml:"Season,omitempty"`
	MedlineDate string `xml:"MedlineDate,omitempty"`
}

// ELocationID represents an electronic location identifier (DOI or PII).
type ELocationID struct {
	EIdType string `xml:"EIdType,attr"`
	Valid   string `xml:"ValidYN,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Abstract contains the article abstract, which may have multiple sections.
type Abstract struct {
	AbstractTexts []AbstractText `xml:"AbstractText"`
}

// AbstractText represents a section of the abstract. Structured abstracts
// carry labeled sections (Background, Methods, Results, etc.).
type AbstractText struct {
	Label       string `xml:"Label,attr,omitempty"`
	NlmCategory string `xml:"NlmCategory,attr,omitempty"`
	Value       string `xml:",chardata"`
}

// AuthorList contains the list of authors.
type AuthorList struct {
	Authors []Author `xml:"Author"`
}

// Author represents a single author.
type Author struct {
	LastName       string `xml:"LastName,omitempty"`
	ForeName       string `xml:"ForeName,omitempty"`
	Initials       string `xml:"Initials,omitempty"`
	CollectiveName string `xml:"CollectiveName,omitempty"`
}

// ArticleDate represents the article publication date.
type ArticleDate struct {
	DateType string `xml:"DateType,attr,omitempty"`
	Year     string `xml:"Year"`
	Month    string `xml:"Month,omitempty"`
	Day      string `xml:"Day,omitempty"`
}

// PublicationTypeList contains the publication types.
type PublicationTypeList struct {
	PublicationTypes []PublicationType `xml:"PublicationType"`
}

// PublicationType represents a publication type (e.g., Journal Article).
type PublicationType struct {
	UI    string `xml:"UI,attr,omitempty"`
	Value string `xml:",chardata"`
}

// DataBankList contains links to external data repositories (GEO, SRA,
// dbGaP) registered with the article.
type DataBankList struct {
	DataBanks []DataBank `xml:"DataBank"`
}

// DataBank is a single repository entry with its accession numbers.
type DataBank struct {
	DataBankName        string               `xml:"DataBankName"`
	AccessionNumberList *AccessionNumberList `xml:"AccessionNumberList,omitempty"`
}

// AccessionNumberList contains repository accession numbers.
type AccessionNumberList struct {
	AccessionNumbers []string `xml:"AccessionNumber"`
}

// MeshHeadingList contains the MeSH terms assigned to the article.
type MeshHeadingList struct {
	MeshHeadings []MeshHeading `xml:"MeshHeading"`
}

// MeshHeading represents a MeSH descriptor with optional qualifiers.
type MeshHeading struct {
	DescriptorName DescriptorName  `xml:"DescriptorName"`
	QualifierNames []QualifierName `xml:"QualifierName,omitempty"`
}

// DescriptorName represents a MeSH descriptor.
type DescriptorName struct {
	UI         string `xml:"UI,attr,omitempty"`
	MajorTopic string `xml:"MajorTopicYN,attr,omitempty"`
	Value      string `xml:",chardata"`
}

// QualifierName represents a MeSH qualifier.
type QualifierName struct {
	UI         string `xml:"UI,attr,omitempty"`
	MajorTopic string `xml:"MajorTopicYN,attr,omitempty"`
	Value      string `xml:",chardata"`
}

// KeywordList contains author-provided keywords.
type KeywordList struct {
	Keywords []Keyword `xml:"Keyword"`
}

// Keyword represents a single keyword.
type Keyword struct {
	MajorTopic string `xml:"MajorTopicYN,attr,omitempty"`
	Value      string `xml:",chardata"`
}

// PubmedData contains additional PubMed-specific data.
type PubmedData struct {
	PublicationStatus string         `xml:"PublicationStatus,omitempty"`
	ArticleIdList     ArticleIdList  `xml:"ArticleIdList"`
	ReferenceList     *ReferenceList `xml:"ReferenceList,omitempty"`
}

// ArticleIdList contains various identifiers for the article.
type ArticleIdList struct {
	ArticleIds []ArticleId `xml:"ArticleId"`
}

// ArticleId represents an article identifier (PMID, DOI, PMC, etc.).
type ArticleId struct {
	IdType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// ReferenceList contains the article's cited references. Reference
// citations are scanned for repository accessions that authors mention
// in data availability statements.
type ReferenceList struct {
	References []Reference `xml:"Reference"`
}

// Reference is a single cited reference.
type Reference struct {
	Citation      string         `xml:"Citation,omitempty"`
	ArticleIdList *ArticleIdList `xml:"ArticleIdList,omitempty"`
}
