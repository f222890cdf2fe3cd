// Package domain provides the domain model for the citation graph service.
package domain

// SourceType identifies the external API that produced a piece of data.
type SourceType string

const (
	SourceTypeCrossref       SourceType = "crossref"
	SourceTypePapersWithCode SourceType = "paperswithcode"
	SourceTypeArXiv          SourceType = "arxiv"
	SourceTypeOpenAlex       SourceType = "openalex"
	SourceTypeIEEE           SourceType = "ieee"
)

// Match stages used to label rejected candidates.
const (
	StageSeed      = "seed"
	StageReference = "reference"
	StageClassify  = "classification"
)
