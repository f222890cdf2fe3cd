package domain

import (
	"strings"
	"time"
)

// doiURLPrefixes are stripped from DOIs before they are used as identifiers.
var doiURLPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// CanonicalID normalizes a DOI into the identifier used as the dataset key.
// The DOI is trimmed, stripped of any resolver prefix and lower-cased.
// Returns empty string if the input carries no DOI.
func CanonicalID(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range doiURLPrefixes {
		if strings.HasPrefix(lower, prefix) {
			lower = lower[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(lower)
}

// DOIURL returns the resolver URL for a canonical identifier.
func DOIURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://doi.org/" + id
}

// Author represents a paper author with an optional organization.
type Author struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	if a.Organization == "" {
		return a.Name
	}
	var sb strings.Builder
	sb.WriteString(a.Name)
	sb.WriteString(" (")
	sb.WriteString(a.Organization)
	sb.WriteString(")")
	return sb.String()
}

// Conference describes the venue a paper was presented at.
type Conference struct {
	Name  string     `json:"name,omitempty"`
	Place string     `json:"place,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
}

// IsZero reports whether no conference field is set.
func (c Conference) IsZero() bool {
	return c.Name == "" && c.Place == "" && c.Date == nil
}

// PaperRecord is one resolved paper in the citation graph.
//
// ID and Title are set when the record is created and never change afterwards.
// Every other field may be filled in later by enrichment.
type PaperRecord struct {
	// ID is the canonical identifier (a lower-cased DOI).
	ID string `json:"id"`

	// DOIURL is the landing URL reported by the metadata source.
	DOIURL string `json:"url_doi,omitempty"`

	Title   string   `json:"title"`
	Authors []Author `json:"authors"`

	// Date is the publication date, nil when unknown.
	Date *time.Time `json:"date,omitempty"`

	Language   string     `json:"language,omitempty"`
	Category   string     `json:"category,omitempty"`
	Conference Conference `json:"conference"`
	Publisher  string     `json:"publisher,omitempty"`
	Keywords   []string   `json:"key_words"`

	// References holds canonical identifiers of the papers this one cites.
	// An empty slice on a processed record means no reference resolved.
	References []string `json:"reference"`

	// ReferencesProcessed is set once the reference pipeline has run.
	ReferencesProcessed bool `json:"references_processed"`
}

// Clone returns a deep copy of the record.
func (p *PaperRecord) Clone() *PaperRecord {
	if p == nil {
		return nil
	}
	c := *p
	if p.Authors != nil {
		c.Authors = make([]Author, len(p.Authors))
		copy(c.Authors, p.Authors)
	}
	if p.Keywords != nil {
		c.Keywords = cloneStrings(p.Keywords)
	}
	if p.References != nil {
		c.References = cloneStrings(p.References)
	}
	if p.Date != nil {
		d := *p.Date
		c.Date = &d
	}
	if p.Conference.Date != nil {
		d := *p.Conference.Date
		c.Conference.Date = &d
	}
	return &c
}

// cloneStrings copies s, keeping an empty list distinct from nil.
func cloneStrings(s []string) []string {
	c := make([]string, len(s))
	copy(c, s)
	return c
}

// HasIdentifier returns true if the record has a canonical identifier.
func (p *PaperRecord) HasIdentifier() bool {
	return p.ID != ""
}
