// Package paperswithcode lists seed papers from the Papers with Code v1 API.
package paperswithcode

// PaperPage is one page of the /papers/ listing.
type PaperPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Paper `json:"results"`
}

// Paper is a catalog entry.
type Paper struct {
	ID         string   `json:"id"`
	ArxivID    *string  `json:"arxiv_id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Published  *string  `json:"published"`
	Conference *string  `json:"conference"`
	Proceeding *string  `json:"proceeding"`
	URLAbs     string   `json:"url_abs"`
}
