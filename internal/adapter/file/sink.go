package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

// Sink writes artifact documents into a single output directory, one JSON
// file per document. Writes go through a temp file and rename so a crashed
// run never leaves a truncated artifact behind.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// NewSink creates a directory-backed artifact sink, creating the directory
// if needed.
func NewSink(dir string, logger *slog.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Sink{dir: dir, logger: logger}, nil
}

// WriteStreamlines writes <area>.streamlines.json.
func (s *Sink) WriteStreamlines(ctx context.Context, doc domain.StreamlineDocument) error {
	name := doc.AreaID + ".streamlines.json"
	if err := s.writeJSON(ctx, name, doc); err != nil {
		return err
	}
	s.logger.Debug("streamline artifact written", "area_id", doc.AreaID, "file", name)
	return nil
}

// WriteGrids writes <area>.<variable>.grid.json for every grid document.
func (s *Sink) WriteGrids(ctx context.Context, docs []domain.GridDocument) error {
	for _, doc := range docs {
		name := fmt.Sprintf("%s.%s.grid.json", doc.AreaID, doc.Variable)
		if err := s.writeJSON(ctx, name, doc); err != nil {
			return err
		}
		s.logger.Debug("grid artifact written",
			"area_id", doc.AreaID, "variable", doc.Variable, "file", name)
	}
	return nil
}

func (s *Sink) writeJSON(ctx context.Context, name string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
