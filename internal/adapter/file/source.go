// Package file reads area documents from a directory and writes artifact
// documents back to one. Naming convention inside a directory:
//
//	<area>.buildings.json            building document
//	<area>.<variable>.stations.json  station document, one per variable
//	<area>.streamlines.json          streamline artifact
//	<area>.<variable>.grid.json      grid artifact, one per variable
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
	"github.com/couchcryptid/cityflow-precompute/internal/pipeline"
)

const buildingsSuffix = ".buildings.json"
const stationsSuffix = ".stations.json"

// Source discovers area inputs under a single directory.
type Source struct {
	dir    string
	logger *slog.Logger
}

// NewSource creates a directory-backed area source.
func NewSource(dir string, logger *slog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// Areas lists every area that has a building document, together with all of
// its station documents, sorted by area ID. Station files whose areaId does
// not match their filename are rejected so a misplaced file cannot attach to
// the wrong area.
func (s *Source) Areas(ctx context.Context) ([]pipeline.AreaInput, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", s.dir, err)
	}

	byArea := make(map[string]*pipeline.AreaInput)
	var stationFiles []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, buildingsSuffix):
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			areaID := strings.TrimSuffix(name, buildingsSuffix)
			doc, err := s.readBuildings(name)
			if err != nil {
				return nil, err
			}
			if doc.AreaID != areaID {
				return nil, fmt.Errorf("%s: areaId %q does not match filename", name, doc.AreaID)
			}
			byArea[areaID] = &pipeline.AreaInput{Buildings: doc}
		case strings.HasSuffix(name, stationsSuffix):
			stationFiles = append(stationFiles, name)
		}
	}

	// Second pass so station files can be matched against discovered areas
	// regardless of directory order.
	sort.Strings(stationFiles)
	for _, name := range stationFiles {
		doc, err := s.readStations(name)
		if err != nil {
			return nil, err
		}
		area, ok := byArea[doc.AreaID]
		if !ok {
			s.logger.Warn("station document without building document, skipping",
				"file", name, "area_id", doc.AreaID)
			continue
		}
		area.Stations = append(area.Stations, doc)
	}

	ids := make([]string, 0, len(byArea))
	for id := range byArea {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	areas := make([]pipeline.AreaInput, 0, len(ids))
	for _, id := range ids {
		areas = append(areas, *byArea[id])
	}
	return areas, nil
}

func (s *Source) readBuildings(name string) (domain.BuildingDocument, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return domain.BuildingDocument{}, fmt.Errorf("read %s: %w", name, err)
	}
	doc, err := domain.ParseBuildingDocument(data)
	if err != nil {
		return domain.BuildingDocument{}, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

func (s *Source) readStations(name string) (domain.StationDocument, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return domain.StationDocument{}, fmt.Errorf("read %s: %w", name, err)
	}
	doc, err := domain.ParseStationDocument(data)
	if err != nil {
		return domain.StationDocument{}, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}
