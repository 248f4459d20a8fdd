package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// FullText holds the article sections extracted from a PMC deposit that
// matter for downstream annotation. Any field may be empty when the
// deposit lacks that section.
type FullText struct {
	Abstract     string
	Methods      string
	Results      string
	Availability string
}

// Empty reports whether no usable section was found.
func (f *FullText) Empty() bool {
	return f == nil ||
		(f.Abstract == "" && f.Methods == "" && f.Results == "" && f.Availability == "")
}

// FullText retrieves the open-access full text for a PMC identifier and
// extracts the abstract, methods, results, and data availability sections.
// The pmcid may be given with or without the "PMC" prefix.
func (c *Client) FullText(ctx context.Context, pmcid string) (*FullText, error) {
	id := strings.TrimPrefix(strings.TrimSpace(pmcid), "PMC")
	if id == "" {
		return nil, fmt.Errorf("empty pmcid")
	}

	q := url.Values{}
	q.Set("db", "pmc")
	q.Set("id", id)
	q.Set("retmode", "xml")

	body, err := c.get(ctx, "/efetch.fcgi", q)
	if err != nil {
		return nil, fmt.Errorf("pmc efetch failed: %w", err)
	}

	var root xmlNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("failed to parse pmc response: %w", err)
	}

	ft := &FullText{}
	collectSections(&root, ft)
	return ft, nil
}

// xmlNode is a generic XML tree node. PMC JATS markup nests sections and
// formatting elements arbitrarily deep, so sections are located by walking
// the tree rather than by a fixed schema.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// attr returns the value of the named attribute, or "".
func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// text flattens the node's character data depth-first, collapsing
// whitespace runs to single spaces.
func (n *xmlNode) text() string {
	var b strings.Builder
	n.writeText(&b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (n *xmlNode) writeText(b *strings.Builder) {
	if c := strings.TrimSpace(n.Content); c != "" {
		b.WriteString(c)
		b.WriteByte(' ')
	}
	for i := range n.Nodes {
		n.Nodes[i].writeText(b)
	}
}

// title returns the text of the node's title child, if any.
func (n *xmlNode) title() string {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == "title" {
			return n.Nodes[i].text()
		}
	}
	return ""
}

// collectSections walks the JATS tree and fills ft with the first match
// for each section of interest. Sections are recognized by their sec-type
// attribute or their title.
func collectSections(n *xmlNode, ft *FullText) {
	switch n.XMLName.Local {
	case "abstract":
		if ft.Abstract == "" {
			ft.Abstract = n.text()
		}
		return
	case "sec":
		kind := classifySection(n.attr("sec-type"), n.title())
		switch kind {
		case sectionMethods:
			if ft.Methods == "" {
				ft.Methods = n.text()
				return
			}
		case sectionResults:
			if ft.Results == "" {
				ft.Results = n.text()
				return
			}
		case sectionAvailability:
			if ft.Availability == "" {
				ft.Availability = n.text()
				return
			}
		}
	}

	for i := range n.Nodes {
		collectSections(&n.Nodes[i], ft)
	}
}

type sectionKind int

const (
	sectionOther sectionKind = iota
	sectionMethods
	sectionResults
	sectionAvailability
)

// classifySection maps a JATS section to a known kind using its sec-type
// attribute and title text. Availability is checked before methods since
// "data availability" titles sometimes appear inside methods sections.
func classifySection(secType, title string) sectionKind {
	st := strings.ToLower(secType)
	tl := strings.ToLower(title)

	switch {
	case strings.Contains(st, "availability") ||
		strings.Contains(tl, "data availability") ||
		strings.Contains(tl, "code availability") ||
		strings.Contains(tl, "availability of data"):
		return sectionAvailability
	case strings.Contains(st, "method") || strings.Contains(tl, "method") ||
		strings.Contains(st, "materials") || strings.Contains(tl, "materials and"):
		return sectionMethods
	case strings.Contains(st, "result") || strings.Contains(tl, "result"):
		return sectionResults
	default:
		return sectionOther
	}
}
