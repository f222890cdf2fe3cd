package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// FileWriter persists snapshots as a single JSON document.
// Each write replaces the whole file atomically via a temp file and rename.
type FileWriter struct {
	path   string
	indent bool
	logger zerolog.Logger
}

// NewFileWriter creates a writer targeting path.
func NewFileWriter(path string, indent bool, logger zerolog.Logger) *FileWriter {
	return &FileWriter{
		path:   path,
		indent: indent,
		logger: logger.With().Str("component", "snapshot-file").Logger(),
	}
}

// Name identifies the writer in logs and metrics.
func (w *FileWriter) Name() string {
	return "file"
}

// Path returns the target path.
func (w *FileWriter) Path() string {
	return w.path
}

// Checkpoint writes snap to the target path.
func (w *FileWriter) Checkpoint(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return domain.NewValidationError("snapshot", "snapshot cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.WrittenAt.IsZero() {
		snap.WrittenAt = time.Now().UTC()
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := w.encode(tmp, snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	committed = true

	w.logger.Debug().
		Str("path", w.path).
		Int("papers", len(snap.Papers)).
		Msg("snapshot written")
	return nil
}

func (w *FileWriter) encode(out io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(out)
	if w.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(snap)
}

// LoadSnapshot reads a snapshot written by FileWriter.
// Returns an error wrapping domain.ErrNotFound when the file does not exist.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open snapshot: %w", domain.NewNotFoundError("snapshot", path))
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Papers == nil {
		snap.Papers = make(map[string]*domain.PaperRecord)
	}
	if snap.UnknownPublishers == nil {
		snap.UnknownPublishers = make(map[string]int)
	}
	return &snap, nil
}
