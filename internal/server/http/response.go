package httpserver

import (
	"time"

	"github.com/helixir/citation-graph-service/internal/acquisition"
	"github.com/helixir/citation-graph-service/internal/domain"
)

// Response types for JSON serialization.

type statusResponse struct {
	RunID            string            `json:"run_id,omitempty"`
	State            string            `json:"state"`
	StartPage        int               `json:"start_page"`
	CurrentPage      int               `json:"current_page"`
	LastPage         int               `json:"last_page"`
	ResumePage       int               `json:"resume_page"`
	PagesProcessed   int               `json:"pages_processed"`
	PagesFailed      int               `json:"pages_failed"`
	Dataset          *datasetResponse  `json:"dataset"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
	LastCheckpointAt *time.Time        `json:"last_checkpoint_at,omitempty"`
	Uptime           string            `json:"uptime,omitempty"`
	Error            string            `json:"error,omitempty"`
	Database         *databaseResponse `json:"database,omitempty"`
}

type datasetResponse struct {
	Papers             int   `json:"papers"`
	PapersResolved     int64 `json:"papers_resolved"`
	ReferencesResolved int64 `json:"references_resolved"`
	UnknownPublishers  int   `json:"unknown_publishers"`
}

type databaseResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type paperResponse struct {
	ID                  string              `json:"id"`
	DOIURL              string              `json:"doi_url,omitempty"`
	Title               string              `json:"title"`
	Authors             []authorResponse    `json:"authors"`
	Date                *time.Time          `json:"date,omitempty"`
	Language            string              `json:"language,omitempty"`
	Category            string              `json:"category,omitempty"`
	Conference          *conferenceResponse `json:"conference,omitempty"`
	Publisher           string              `json:"publisher,omitempty"`
	Keywords            []string            `json:"keywords"`
	References          []string            `json:"references"`
	ReferencesProcessed bool                `json:"references_processed"`
}

type authorResponse struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
}

type conferenceResponse struct {
	Name  string     `json:"name,omitempty"`
	Place string     `json:"place,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
}

// Converter functions

func progressToStatusResponse(p acquisition.Progress, now time.Time) statusResponse {
	resp := statusResponse{
		RunID:          p.RunID,
		State:          string(p.State),
		StartPage:      p.StartPage,
		CurrentPage:    p.CurrentPage,
		LastPage:       p.LastPage,
		ResumePage:     p.LastPage + 1,
		PagesProcessed: p.PagesProcessed,
		PagesFailed:    p.PagesFailed,
		Dataset: &datasetResponse{
			Papers:             p.Dataset.Papers,
			PapersResolved:     p.Dataset.PapersResolved,
			ReferencesResolved: p.Dataset.ReferencesResolved,
			UnknownPublishers:  p.Dataset.UnknownPublishers,
		},
		LastCheckpointAt: p.LastCheckpointAt,
		Error:            p.Error,
	}
	if resp.State == "" {
		resp.State = stateIdle
	}
	if !p.StartedAt.IsZero() {
		started := p.StartedAt
		resp.StartedAt = &started
		resp.Uptime = now.Sub(started).Truncate(time.Second).String()
	}
	if !p.UpdatedAt.IsZero() {
		updated := p.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

func domainPaperToResponse(p *domain.PaperRecord) paperResponse {
	authors := make([]authorResponse, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse{
			Name:         a.Name,
			Organization: a.Organization,
		}
	}
	resp := paperResponse{
		ID:                  p.ID,
		DOIURL:              p.DOIURL,
		Title:               p.Title,
		Authors:             authors,
		Date:                p.Date,
		Language:            p.Language,
		Category:            p.Category,
		Publisher:           p.Publisher,
		Keywords:            p.Keywords,
		References:          p.References,
		ReferencesProcessed: p.ReferencesProcessed,
	}
	if resp.Keywords == nil {
		resp.Keywords = []string{}
	}
	if resp.References == nil {
		resp.References = []string{}
	}
	if !p.Conference.IsZero() {
		resp.Conference = &conferenceResponse{
			Name:  p.Conference.Name,
			Place: p.Conference.Place,
			Date:  p.Conference.Date,
		}
	}
	return resp
}
