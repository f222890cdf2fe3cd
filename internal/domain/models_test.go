package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain doi", input: "10.1109/CVPR.2016.90", expected: "10.1109/cvpr.2016.90"},
		{name: "https resolver", input: "https://doi.org/10.1038/Nature14539", expected: "10.1038/nature14539"},
		{name: "dx resolver", input: "http://dx.doi.org/10.1145/3065386", expected: "10.1145/3065386"},
		{name: "doi scheme", input: "doi:10.5555/12345", expected: "10.5555/12345"},
		{name: "surrounding whitespace", input: "  10.1000/XYZ \n", expected: "10.1000/xyz"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalID(tt.input))
		})
	}
}

func TestDOIURL(t *testing.T) {
	assert.Equal(t, "https://doi.org/10.1/abc", DOIURL("10.1/abc"))
	assert.Empty(t, DOIURL(""))
}

func TestAuthor_String(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Author{Name: "Ada Lovelace"}.String())
	assert.Equal(t, "Ada Lovelace (Analytical Society)", Author{Name: "Ada Lovelace", Organization: "Analytical Society"}.String())
}

func TestPaperRecord_Clone(t *testing.T) {
	date := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	orig := &PaperRecord{
		ID:         "10.1/a",
		Title:      "A",
		Authors:    []Author{{Name: "X"}},
		Date:       &date,
		Conference: Conference{Name: "ICML", Date: &date},
		Keywords:   []string{"k"},
		References: []string{"10.1/b"},
	}

	c := orig.Clone()
	require.NotNil(t, c)
	assert.Equal(t, orig, c)

	c.Authors[0].Name = "changed"
	c.Keywords[0] = "changed"
	c.References[0] = "changed"
	*c.Date = c.Date.AddDate(1, 0, 0)
	*c.Conference.Date = c.Conference.Date.AddDate(1, 0, 0)

	assert.Equal(t, "X", orig.Authors[0].Name)
	assert.Equal(t, "k", orig.Keywords[0])
	assert.Equal(t, "10.1/b", orig.References[0])
	assert.Equal(t, 2020, orig.Date.Year())
	assert.Equal(t, 2020, orig.Conference.Date.Year())

	var nilRec *PaperRecord
	assert.Nil(t, nilRec.Clone())
}

func TestConference_IsZero(t *testing.T) {
	assert.True(t, Conference{}.IsZero())
	assert.False(t, Conference{Place: "Vienna"}.IsZero())
}

func TestClassificationQuery_ByID(t *testing.T) {
	assert.True(t, ClassificationQuery{ArxivID: "1512.03385"}.ByID())
	assert.False(t, ClassificationQuery{Title: "Deep Residual Learning"}.ByID())
}

func TestErrors(t *testing.T) {
	t.Run("not found unwraps to sentinel", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", NewNotFoundError("work", "10.1/x"))
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, "work not found: 10.1/x", NewNotFoundError("work", "10.1/x").Error())
	})

	t.Run("validation error unwraps to invalid input", func(t *testing.T) {
		err := NewValidationError("id", "required")
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Equal(t, "validation error: id: required", err.Error())
	})

	t.Run("external api error derives cause from status", func(t *testing.T) {
		assert.True(t, errors.Is(NewExternalAPIError("Crossref", 429, "", nil), ErrRateLimited))
		assert.True(t, errors.Is(NewExternalAPIError("Crossref", 503, "", nil), ErrServiceUnavailable))
		assert.True(t, errors.Is(NewExternalAPIError("Crossref", 404, "", nil), ErrNotFound))
		assert.Nil(t, NewExternalAPIError("Crossref", 400, "", nil).Unwrap())
	})

	t.Run("external api error keeps explicit cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewExternalAPIError("IEEE", 500, "bad", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "IEEE API error (status 500): bad", err.Error())
	})
}

func TestRawReferenceEntry_IsIdentifier(t *testing.T) {
	assert.True(t, RawReferenceEntry{Kind: ReferenceKindDOI, Value: "10.1/x"}.IsIdentifier())
	assert.False(t, RawReferenceEntry{Kind: ReferenceKindUnstructured, Value: "x"}.IsIdentifier())
	assert.False(t, RawReferenceEntry{Kind: ReferenceKindStructuredTitle, Value: "x"}.IsIdentifier())
}
