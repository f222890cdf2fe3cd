// Package openalex classifies papers through the OpenAlex works API.
//
// OpenAlex is a free, open catalog of scholarly papers. Only the fields
// needed for subject classification are decoded.
//
// API Documentation: https://docs.openalex.org/
package openalex

// SearchResponse represents the top-level response from the OpenAlex works search endpoint.
type SearchResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta contains metadata about the search results.
type Meta struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Work represents an academic work (paper) in OpenAlex.
type Work struct {
	ID           string  `json:"id"`
	DOI          string  `json:"doi"`
	Title        string  `json:"title"`
	DisplayName  string  `json:"display_name"`
	Language     string  `json:"language"`
	PrimaryTopic *Topic  `json:"primary_topic"`
	Topics       []Topic `json:"topics"`
}

// Topic is an OpenAlex topic with its place in the field hierarchy.
type Topic struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Subfield    *Hierarchy `json:"subfield"`
	Field       *Hierarchy `json:"field"`
	Domain      *Hierarchy `json:"domain"`
}

// Hierarchy is one level (subfield, field, domain) of the topic taxonomy.
type Hierarchy struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
