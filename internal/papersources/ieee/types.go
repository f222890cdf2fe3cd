// Package ieee extracts raw reference strings from IEEE Xplore.
//
// A DOI is first resolved through the doi.org handle API to the Xplore
// document URL. References are then read from Xplore's REST endpoint and,
// when that yields nothing, from the rendered references page.
package ieee

import "encoding/json"

// HandleResponse is the doi.org handle API response.
type HandleResponse struct {
	ResponseCode int           `json:"responseCode"`
	Handle       string        `json:"handle"`
	Values       []HandleValue `json:"values"`
}

// HandleValue is one typed value of a handle record.
type HandleValue struct {
	Index int        `json:"index"`
	Type  string     `json:"type"`
	Data  HandleData `json:"data"`
}

// HandleData holds the value payload. Value is a string for URL records
// but may be an object for others.
type HandleData struct {
	Format string          `json:"format"`
	Value  json.RawMessage `json:"value"`
}

// ReferencesResponse is the Xplore REST references payload.
type ReferencesResponse struct {
	References []Reference `json:"references"`
}

// Reference is one citation of an Xplore document. Text may contain markup.
type Reference struct {
	Order string `json:"order"`
	Text  string `json:"text"`
	Title string `json:"title"`
}
