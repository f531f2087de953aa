package file

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFixture(t *testing.T, dir, name string, doc any) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func testBuildings(areaID string) domain.BuildingDocument {
	return domain.BuildingDocument{
		AreaID: areaID,
		Bounds: domain.GeoBounds{MinLat: 35.60, MaxLat: 35.70, MinLng: 139.60, MaxLng: 139.70},
		Buildings: []domain.Building{
			{Footprint: [][2]float64{{-50, -50}, {50, -50}, {50, 50}, {-50, 50}}, Height: 40},
		},
	}
}

func float64Ptr(v float64) *float64 { return &v }

func testStations(areaID, variable string) domain.StationDocument {
	return domain.StationDocument{
		AreaID:   areaID,
		Variable: variable,
		Stations: []domain.RawStation{
			{StationID: "st-1", X: float64Ptr(-100), Z: float64Ptr(0), Value: 21.5},
		},
	}
}

func TestSourceAreas(t *testing.T) {
	t.Run("discovers areas with their station documents sorted by id", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "shibuya.buildings.json", testBuildings("shibuya"))
		writeFixture(t, dir, "shibuya.temperature.stations.json", testStations("shibuya", "temperature"))
		writeFixture(t, dir, "shibuya.pm25.stations.json", testStations("shibuya", "pm25"))
		writeFixture(t, dir, "akiba.buildings.json", testBuildings("akiba"))

		src := NewSource(dir, testLogger())
		areas, err := src.Areas(context.Background())
		require.NoError(t, err)
		require.Len(t, areas, 2)

		assert.Equal(t, "akiba", areas[0].Buildings.AreaID)
		assert.Empty(t, areas[0].Stations)

		assert.Equal(t, "shibuya", areas[1].Buildings.AreaID)
		require.Len(t, areas[1].Stations, 2)
		assert.Equal(t, "pm25", areas[1].Stations[0].Variable)
		assert.Equal(t, "temperature", areas[1].Stations[1].Variable)
	})

	t.Run("ignores unrelated files and subdirectories", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "shibuya.buildings.json", testBuildings("shibuya"))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

		src := NewSource(dir, testLogger())
		areas, err := src.Areas(context.Background())
		require.NoError(t, err)
		assert.Len(t, areas, 1)
	})

	t.Run("skips station document with no matching building document", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "shibuya.buildings.json", testBuildings("shibuya"))
		writeFixture(t, dir, "ghost.temperature.stations.json", testStations("ghost", "temperature"))

		src := NewSource(dir, testLogger())
		areas, err := src.Areas(context.Background())
		require.NoError(t, err)
		require.Len(t, areas, 1)
		assert.Empty(t, areas[0].Stations)
	})

	t.Run("rejects building document whose areaId does not match filename", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, "shibuya.buildings.json", testBuildings("other"))

		src := NewSource(dir, testLogger())
		_, err := src.Areas(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match filename")
	})

	t.Run("rejects malformed building document", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.buildings.json"), []byte("{not json"), 0o644))

		src := NewSource(dir, testLogger())
		_, err := src.Areas(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing directory is an error", func(t *testing.T) {
		src := NewSource(filepath.Join(t.TempDir(), "nope"), testLogger())
		_, err := src.Areas(context.Background())
		assert.Error(t, err)
	})
}

func TestSinkWrite(t *testing.T) {
	t.Run("writes streamline artifact under area name", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewSink(dir, testLogger())
		require.NoError(t, err)

		doc := domain.NewStreamlineDocument("shibuya", []domain.Streamline{
			{Direction: "E", Points: [][3]float64{{0, 20, 0}, {12, 20, 0}}},
		})
		require.NoError(t, sink.WriteStreamlines(context.Background(), doc))

		data, err := os.ReadFile(filepath.Join(dir, "shibuya.streamlines.json"))
		require.NoError(t, err)

		var got domain.StreamlineDocument
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "shibuya", got.AreaID)
		assert.Equal(t, 1, got.StreamlineCount)
	})

	t.Run("writes one grid artifact per variable", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewSink(dir, testLogger())
		require.NoError(t, err)

		bounds := domain.Bounds{MinX: -100, MaxX: 100, MinZ: -100, MaxZ: 100}
		docs := []domain.GridDocument{
			domain.NewGridDocument("shibuya", "temperature", 2, bounds, [][]float64{{1, 2}, {3, 4}}),
			domain.NewGridDocument("shibuya", "pm25", 2, bounds, [][]float64{{5, 6}, {7, 8}}),
		}
		require.NoError(t, sink.WriteGrids(context.Background(), docs))

		for _, name := range []string{"shibuya.temperature.grid.json", "shibuya.pm25.grid.json"} {
			data, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err, name)
			var got domain.GridDocument
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, 2, got.Size)
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewSink(dir, testLogger())
		require.NoError(t, err)

		doc := domain.NewStreamlineDocument("shibuya", nil)
		require.NoError(t, sink.WriteStreamlines(context.Background(), doc))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "shibuya.streamlines.json", entries[0].Name())
	})

	t.Run("creates missing output directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out", "artifacts")
		_, err := NewSink(dir, testLogger())
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("cancelled context aborts the write", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewSink(dir, testLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = sink.WriteStreamlines(ctx, domain.NewStreamlineDocument("shibuya", nil))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
