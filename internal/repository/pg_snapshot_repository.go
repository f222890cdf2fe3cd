package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/dataset"
	"github.com/helixir/citation-graph-service/internal/domain"
)

// checkpointLockKey is the advisory lock taken by every checkpoint transaction.
const checkpointLockKey int64 = 0x43495445 // "CITE"

const upsertPaperQuery = `
		INSERT INTO papers (
			canonical_id, doi_url, title, authors, published_at,
			language, category, conference_name, conference_place, conference_date,
			publisher, keywords, "references", references_processed,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15
		)
		ON CONFLICT (canonical_id) DO UPDATE SET
			doi_url = EXCLUDED.doi_url,
			authors = EXCLUDED.authors,
			published_at = COALESCE(EXCLUDED.published_at, papers.published_at),
			language = EXCLUDED.language,
			category = EXCLUDED.category,
			conference_name = EXCLUDED.conference_name,
			conference_place = EXCLUDED.conference_place,
			conference_date = COALESCE(EXCLUDED.conference_date, papers.conference_date),
			publisher = EXCLUDED.publisher,
			keywords = EXCLUDED.keywords,
			"references" = EXCLUDED."references",
			references_processed = EXCLUDED.references_processed OR papers.references_processed,
			updated_at = EXCLUDED.updated_at`

const insertCheckpointQuery = `
		INSERT INTO run_checkpoints (
			run_id, last_page, papers, papers_resolved, references_resolved,
			unknown_publishers, written_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

const latestCheckpointQuery = `
		SELECT run_id, last_page, papers, papers_resolved, references_resolved,
			unknown_publishers, written_at
		FROM run_checkpoints
		ORDER BY written_at DESC, id DESC
		LIMIT 1`

// PgSnapshotRepository mirrors dataset snapshots into PostgreSQL.
type PgSnapshotRepository struct {
	db        database.TxBeginner
	runID     uuid.UUID
	batchSize int
	logger    zerolog.Logger
}

// NewPgSnapshotRepository creates a repository writing checkpoints for runID.
func NewPgSnapshotRepository(db database.TxBeginner, runID uuid.UUID, batchSize int, logger zerolog.Logger) *PgSnapshotRepository {
	return &PgSnapshotRepository{
		db:        db,
		runID:     runID,
		batchSize: normalizeBatchSize(batchSize),
		logger:    logger.With().Str("component", "snapshot-postgres").Logger(),
	}
}

// Name identifies the writer in logs and metrics.
func (r *PgSnapshotRepository) Name() string {
	return "postgres"
}

// Checkpoint upserts every paper in snap and records the checkpoint, all in
// one transaction.
func (r *PgSnapshotRepository) Checkpoint(ctx context.Context, snap *dataset.Snapshot) error {
	if snap == nil {
		return domain.NewValidationError("snapshot", "snapshot cannot be nil")
	}

	writtenAt := snap.WrittenAt
	if writtenAt.IsZero() {
		writtenAt = time.Now().UTC()
	}
	unknownJSON, err := json.Marshal(nonNilCounts(snap.UnknownPublishers))
	if err != nil {
		return fmt.Errorf("failed to marshal unknown publishers: %w", err)
	}

	ids := snap.IDs()
	err = database.WithTransaction(ctx, r.db, r.logger, func(tx pgx.Tx) error {
		if err := database.AdvisoryLockTx(ctx, tx, checkpointLockKey); err != nil {
			return fmt.Errorf("failed to take checkpoint lock: %w", err)
		}

		for start := 0; start < len(ids); start += r.batchSize {
			end := min(start+r.batchSize, len(ids))
			if err := r.upsertBatch(ctx, tx, snap, ids[start:end], writtenAt); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, insertCheckpointQuery,
			r.runID,
			snap.LastPage,
			len(snap.Papers),
			snap.PapersResolved,
			snap.ReferencesResolved,
			unknownJSON,
			writtenAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug().
		Int("papers", len(ids)).
		Int("last_page", snap.LastPage).
		Msg("checkpoint mirrored")
	return nil
}

// upsertBatch sends one pgx.Batch of paper upserts.
func (r *PgSnapshotRepository) upsertBatch(ctx context.Context, tx DBTX, snap *dataset.Snapshot, ids []string, now time.Time) error {
	batch := &pgx.Batch{}
	for _, id := range ids {
		args, err := paperArgs(id, snap.Papers[id], now)
		if err != nil {
			return err
		}
		batch.Queue(upsertPaperQuery, args...)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := range ids {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert paper %s: %w", ids[i], err)
		}
	}
	return nil
}

// LatestCheckpoint returns the most recent checkpoint across all runs.
// Returns domain.ErrNotFound when no checkpoint has been written.
func (r *PgSnapshotRepository) LatestCheckpoint(ctx context.Context) (*CheckpointRecord, error) {
	var (
		rec         CheckpointRecord
		unknownJSON []byte
	)
	err := r.db.QueryRow(ctx, latestCheckpointQuery).Scan(
		&rec.RunID,
		&rec.LastPage,
		&rec.Papers,
		&rec.PapersResolved,
		&rec.ReferencesResolved,
		&unknownJSON,
		&rec.WrittenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("checkpoint", "latest")
		}
		return nil, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}

	if len(unknownJSON) > 0 {
		if err := json.Unmarshal(unknownJSON, &rec.UnknownPublishers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal unknown publishers: %w", err)
		}
	}
	return &rec, nil
}

// paperArgs flattens a record into upsertPaperQuery arguments.
func paperArgs(id string, rec *domain.PaperRecord, now time.Time) ([]any, error) {
	if rec == nil {
		return nil, domain.NewValidationError("paper", fmt.Sprintf("paper %s is nil", id))
	}
	if id == "" {
		return nil, domain.NewValidationError("canonical_id", "paper has no canonical ID")
	}

	authors := rec.Authors
	if authors == nil {
		authors = []domain.Author{}
	}
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}

	return []any{
		id,
		rec.DOIURL,
		rec.Title,
		authorsJSON,
		rec.Date,
		rec.Language,
		rec.Category,
		rec.Conference.Name,
		rec.Conference.Place,
		rec.Conference.Date,
		rec.Publisher,
		nonNilStrings(rec.Keywords),
		nonNilStrings(rec.References),
		rec.ReferencesProcessed,
		now,
	}, nil
}

// nonNilStrings maps nil to an empty slice; pgx encodes a nil slice as NULL.
func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
