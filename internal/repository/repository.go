// Package repository provides the PostgreSQL mirror of the citation graph.
//
// # Overview
//
// The JSON snapshot file is the primary output of a run. When the database
// mirror is enabled, every checkpoint is also written to PostgreSQL so that
// the graph can be queried while a long run is in progress.
//
// # Transactions
//
// A checkpoint is one transaction: a transaction-scoped advisory lock
// serializes concurrent writers, paper rows are upserted in pgx batches and a
// row is appended to run_checkpoints. A failed checkpoint leaves the previous
// one intact.
//
// # Usage Pattern
//
//	db, _ := database.New(ctx, &cfg.Database, logger)
//	repo := repository.NewPgSnapshotRepository(db, runID, cfg.Database.BatchSize, logger)
//	err := repo.Checkpoint(ctx, store.Snapshot())
package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/helixir/citation-graph-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// CheckpointRecord is one row of the run_checkpoints table.
type CheckpointRecord struct {
	RunID              uuid.UUID      `json:"run_id"`
	LastPage           int            `json:"last_page"`
	Papers             int            `json:"papers"`
	PapersResolved     int64          `json:"papers_resolved"`
	ReferencesResolved int64          `json:"references_resolved"`
	UnknownPublishers  map[string]int `json:"unknown_publishers"`
	WrittenAt          time.Time      `json:"written_at"`
}

// Batch size defaults and limits.
const (
	defaultBatchSize = 500
	maxBatchSize     = 5000
)

// normalizeBatchSize clamps a configured batch size to [1, maxBatchSize].
func normalizeBatchSize(n int) int {
	if n <= 0 {
		return defaultBatchSize
	}
	if n > maxBatchSize {
		return maxBatchSize
	}
	return n
}
