// Package crossref provides the bibliographic metadata source backed by the
// Crossref REST API.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorksResponse is the envelope of the /works search endpoint.
type WorksResponse struct {
	Status  string       `json:"status"`
	Message WorksMessage `json:"message"`
}

// WorksMessage holds the search results.
type WorksMessage struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// WorkResponse is the envelope of the /works/{doi} endpoint.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work is a Crossref work record restricted to the selected fields.
type Work struct {
	DOI            string      `json:"DOI"`
	URL            string      `json:"URL"`
	Title          []string    `json:"title"`
	Subject        []string    `json:"subject"`
	Publisher      string      `json:"publisher"`
	Reference      []Reference `json:"reference"`
	Author         []Author    `json:"author"`
	Issued         DateParts   `json:"issued"`
	Event          *Event      `json:"event"`
	ContainerTitle []string    `json:"container-title"`
	Language       string      `json:"language"`
}

// Reference is one entry of a work's deposited reference list.
type Reference struct {
	Key          string `json:"key"`
	DOI          string `json:"DOI"`
	Unstructured string `json:"unstructured"`
	ArticleTitle string `json:"article-title"`
	VolumeTitle  string `json:"volume-title"`
}

// Author is a contributor. Organizational authors carry only Name.
type Author struct {
	Given       string        `json:"given"`
	Family      string        `json:"family"`
	Name        string        `json:"name"`
	Affiliation []Affiliation `json:"affiliation"`
}

// Affiliation is an author's organization.
type Affiliation struct {
	Name string `json:"name"`
}

// Event describes the conference a work was presented at.
type Event struct {
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Start    DateParts `json:"start"`
}

// DateParts is Crossref's partial date: [[year, month, day]] with trailing
// parts optional.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}
