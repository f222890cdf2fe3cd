package arxiv

import "encoding/xml"

// Feed represents the Atom XML response from the arXiv API.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	Lang         string   `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	TotalResults int      `xml:"totalResults"`
	Entries      []Entry  `xml:"entry"`
}

// Entry represents a single arXiv paper in the Atom feed.
type Entry struct {
	ID              string     `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title           string     `xml:"title"`
	Summary         Text       `xml:"summary"`
	Published       string     `xml:"published"`
	PrimaryCategory Category   `xml:"primary_category"`
	Categories      []Category `xml:"category"`
	DOI             string     `xml:"doi"`
}

// Text is an Atom text construct that may carry a language.
type Text struct {
	Lang  string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Value string `xml:",chardata"`
}

// Category represents an arXiv subject category.
type Category struct {
	Term string `xml:"term,attr"`
}
