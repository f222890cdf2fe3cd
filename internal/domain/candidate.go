package domain

import "time"

// ReferenceKind tags the shape of a raw reference entry.
type ReferenceKind string

const (
	// ReferenceKindDOI is an entry that carries a direct identifier.
	ReferenceKindDOI ReferenceKind = "doi"
	// ReferenceKindUnstructured is a free-text citation string.
	ReferenceKindUnstructured ReferenceKind = "unstructured"
	// ReferenceKindStructuredTitle is a title fragment taken from a structured citation.
	ReferenceKindStructuredTitle ReferenceKind = "structured_title"
)

// RawReferenceEntry is an unresolved reference as supplied by the metadata source.
type RawReferenceEntry struct {
	Kind  ReferenceKind
	Value string
}

// IsIdentifier reports whether the entry carries a direct identifier.
func (e RawReferenceEntry) IsIdentifier() bool {
	return e.Kind == ReferenceKindDOI
}

// Candidate is an unvalidated record returned by a metadata search.
// Optional fields are empty when the source did not report them;
// HasReferences distinguishes "no reference list" from "empty reference list".
type Candidate struct {
	ID        string
	URL       string
	Title     string
	Authors   []Author
	Date      *time.Time
	Venue     Conference
	Publisher string
	Subjects  []string
	Language  string

	References    []RawReferenceEntry
	HasReferences bool

	Source SourceType
}

// SeedSummary is the minimal description of a paper a resolution starts from.
// It comes from the catalog or is synthesized from a reference candidate.
type SeedSummary struct {
	// CatalogID is the catalog's own identifier, if any.
	CatalogID string

	Title string

	// ArxivID is the external classification identifier, if known.
	ArxivID string

	Published  *time.Time
	Conference string

	// Authors lists author names known to the catalog.
	Authors []string
}

// CatalogPage is one page of seed summaries.
type CatalogPage struct {
	Page    int
	Total   int
	Results []SeedSummary

	// HasNext is false when the catalog reports no further page.
	HasNext bool
}

// ClassificationQuery selects a paper to classify: by external id when
// present, otherwise by title.
type ClassificationQuery struct {
	ArxivID string
	Title   string
}

// ByID reports whether the query is keyed by identifier.
func (q ClassificationQuery) ByID() bool {
	return q.ArxivID != ""
}

// Classification is a subject category and language for a paper.
type Classification struct {
	Category string
	Language string

	// MatchedTitle is the title of the record the classification was taken
	// from, used to validate title-keyed lookups.
	MatchedTitle string

	// TitleKeyed is set when the lookup was made by title rather than id.
	TitleKeyed bool

	Source SourceType
}
