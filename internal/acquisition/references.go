package acquisition

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// quotedTitle captures everything between the first and last double quote.
var quotedTitle = regexp.MustCompile(`"(.+)"`)

var quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`)

// ExtractQuotedTitle returns the quoted portion of a scraped citation string.
// Curly quotes are treated as straight quotes. The second result is false
// for strings without a quoted title.
func ExtractQuotedTitle(s string) (string, bool) {
	m := quotedTitle.FindStringSubmatch(quoteReplacer.Replace(s))
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(m[1]), ",.;"))
	if title == "" {
		return "", false
	}
	return title, true
}

// resolveReferences produces the reference identifiers of cand. Structured
// lists win; the publisher extractor is consulted only when the metadata
// source supplied none.
func (r *Resolver) resolveReferences(ctx context.Context, g TaskGroup, cand *domain.Candidate, depth int) []string {
	if cand.HasReferences {
		entries := cand.References
		if r.config.MaxReferences > 0 && len(entries) > r.config.MaxReferences {
			entries = entries[:r.config.MaxReferences]
		}
		return r.resolveEntries(ctx, g, entries, depth)
	}
	if r.config.ExtractPublishers && strings.TrimSpace(cand.Publisher) != "" {
		return r.resolvePublisher(ctx, g, cand.ID, cand.Publisher, depth)
	}
	return []string{}
}

// resolveEntries resolves structured reference entries concurrently. The
// result keeps the order of entries; unresolved entries are dropped.
func (r *Resolver) resolveEntries(ctx context.Context, g TaskGroup, entries []domain.RawReferenceEntry, depth int) []string {
	resolved := make([]string, len(entries))

	var eg errgroup.Group
	for i, entry := range entries {
		if entry.IsIdentifier() {
			resolved[i] = r.acceptIdentifier(ctx, g, entry.Value, depth)
			continue
		}
		eg.Go(func() error {
			resolved[i] = r.resolveTitle(ctx, g, entry.Value, string(entry.Kind), depth)
			return nil
		})
	}
	_ = eg.Wait()

	return compact(resolved)
}

// resolvePublisher scrapes the publisher page of id and resolves every
// quoted title it yields.
func (r *Resolver) resolvePublisher(ctx context.Context, g TaskGroup, id, publisher string, depth int) []string {
	if !r.extractors.Has(publisher) {
		r.store.RecordUnknownPublisher(publisher)
		r.metrics.RecordUnknownPublisher(publisher)
		r.log(ctx).Debug().Str("paper_id", id).Str("publisher", publisher).Msg("no extractor for publisher")
		return []string{}
	}

	raw, err := r.extractors.Extract(ctx, id, publisher)
	if err != nil {
		r.degrade(ctx, domain.StageReference, err, "publisher extraction failed", id)
		return []string{}
	}

	titles := make([]string, 0, len(raw))
	for _, s := range raw {
		if title, ok := ExtractQuotedTitle(s); ok {
			titles = append(titles, title)
		} else {
			r.metrics.RecordReferenceUnresolved(kindScraped)
		}
	}

	resolved := make([]string, len(titles))
	var eg errgroup.Group
	for i, title := range titles {
		eg.Go(func() error {
			resolved[i] = r.resolveTitle(ctx, g, title, kindScraped, depth)
			return nil
		})
	}
	_ = eg.Wait()

	return compact(resolved)
}

// kindScraped labels references recovered by a publisher extractor.
const kindScraped = "scraped"

// acceptIdentifier accepts a direct identifier at once and schedules its
// resolution on g. The reference does not wait for that resolution.
func (r *Resolver) acceptIdentifier(ctx context.Context, g TaskGroup, value string, depth int) string {
	id := domain.CanonicalID(value)
	if id == "" {
		r.metrics.RecordReferenceUnresolved(string(domain.ReferenceKindDOI))
		return ""
	}
	r.metrics.RecordReferenceResolved(string(domain.ReferenceKindDOI))

	if r.descend(depth) && !r.store.Exists(id) {
		g.Go(func() error {
			r.ResolveIdentifier(ctx, g, id, depth+1)
			return nil
		})
	}
	return id
}

// resolveTitle looks up a citation title at the low threshold. A match is
// resolved inline before its identifier is returned.
func (r *Resolver) resolveTitle(ctx context.Context, g TaskGroup, title, kind string, depth int) string {
	cand, ok := r.search(ctx, title, r.config.Thresholds.Low, domain.StageReference)
	if !ok {
		r.metrics.RecordReferenceUnresolved(kind)
		return ""
	}
	r.metrics.RecordReferenceResolved(kind)

	if r.descend(depth) {
		r.resolveCandidate(ctx, g, cand, domain.SeedSummary{}, depth+1)
	}
	return cand.ID
}

// descend reports whether references found at depth may be resolved further.
func (r *Resolver) descend(depth int) bool {
	return r.config.MaxDepth <= 0 || depth < r.config.MaxDepth
}

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
