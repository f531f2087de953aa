// Command genarea generates a deterministic synthetic area fixture: one
// building document plus one station document per variable, written under the
// input-directory naming convention the precompute service expects. It uses
// the actual domain package so fixture geometry matches pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genarea \
//	  -area shibuya \
//	  -out data/areas \
//	  -variables temperature,windSpeed,pm25 \
//	  -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

// geoBounds is a fixed ~1.1 km square; fixtures always use the same frame so
// test assertions on projected coordinates stay stable across runs.
var geoBounds = domain.GeoBounds{
	MinLat: 35.655, MaxLat: 35.665,
	MinLng: 139.695, MaxLng: 139.705,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	areaID := flag.String("area", "", "area identifier (used in filenames and areaId fields)")
	outDir := flag.String("out", "", "output directory for the fixture documents")
	variables := flag.String("variables", "temperature,windSpeed,pm25", "comma-separated station variables")
	buildings := flag.Int("buildings", 40, "number of building footprints")
	stations := flag.Int("stations", 25, "number of stations per variable")
	seed := flag.Int64("seed", 1, "rng seed, same seed yields byte-identical fixtures")
	flag.Parse()

	if *areaID == "" || *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -area, -out")
	}

	// Fixed clock for reproducible generatedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))
	frame := domain.NewAreaFrame(geoBounds, 0)

	buildingDoc := genBuildings(*areaID, *buildings, rng)
	if err := writeJSON(filepath.Join(*outDir, *areaID+".buildings.json"), buildingDoc); err != nil {
		return fmt.Errorf("writing building fixture: %w", err)
	}
	log.Printf("wrote %d buildings: %s.buildings.json", len(buildingDoc.Buildings), *areaID)

	for _, v := range strings.Split(*variables, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		doc := genStations(*areaID, v, *stations, frame, rng)
		name := fmt.Sprintf("%s.%s.stations.json", *areaID, v)
		if err := writeJSON(filepath.Join(*outDir, name), doc); err != nil {
			return fmt.Errorf("writing station fixture %s: %w", v, err)
		}
		log.Printf("wrote %d stations: %s", len(doc.Stations), name)
	}

	printStats(buildingDoc, frame)
	return nil
}

// genBuildings places axis-aligned rectangular footprints inside the central
// 80% of the local frame, so streamline seeds near the rim start in the open.
func genBuildings(areaID string, n int, rng *rand.Rand) domain.BuildingDocument {
	frame := domain.NewAreaFrame(geoBounds, 0)
	lb := frame.LocalBounds
	spanX := lb.Width() * 0.8
	spanZ := lb.Depth() * 0.8

	bs := make([]domain.Building, 0, n)
	for i := 0; i < n; i++ {
		cx := lb.MinX + lb.Width()*0.1 + rng.Float64()*spanX
		cz := lb.MinZ + lb.Depth()*0.1 + rng.Float64()*spanZ
		hw := 8 + rng.Float64()*22  // half-width 8..30 m
		hd := 8 + rng.Float64()*22  // half-depth 8..30 m
		h := 12 + rng.Float64()*108 // height 12..120 m

		bs = append(bs, domain.Building{
			Footprint: [][2]float64{
				{cx - hw, cz - hd},
				{cx + hw, cz - hd},
				{cx + hw, cz + hd},
				{cx - hw, cz + hd},
			},
			Height: math.Round(h*10) / 10,
		})
	}

	return domain.BuildingDocument{
		AreaID:    areaID,
		Bounds:    geoBounds,
		Buildings: bs,
	}
}

// genStations scatters readings over the full local bounds. Most rows carry
// local x/z; every fifth row uses lat/lng instead so projection resolution
// stays exercised by fixtures too.
func genStations(areaID, variable string, n int, frame domain.AreaFrame, rng *rand.Rand) domain.StationDocument {
	lb := frame.LocalBounds
	base, spread := baseValue(variable)

	rows := make([]domain.RawStation, 0, n)
	for i := 0; i < n; i++ {
		x := lb.MinX + rng.Float64()*lb.Width()
		z := lb.MinZ + rng.Float64()*lb.Depth()
		value := math.Round((base+rng.NormFloat64()*spread)*100) / 100

		row := domain.RawStation{
			StationID: fmt.Sprintf("%s-%s-%03d", areaID, variable, i+1),
			Value:     value,
		}
		if i%5 == 4 {
			lat := frame.OriginLat + z/frame.Scale
			lng := frame.OriginLng + x/frame.Scale
			row.Lat, row.Lng = &lat, &lng
		} else {
			row.X, row.Z = &x, &z
		}
		rows = append(rows, row)
	}

	return domain.StationDocument{
		AreaID:   areaID,
		Variable: variable,
		Stations: rows,
	}
}

func baseValue(variable string) (base, spread float64) {
	switch variable {
	case "temperature":
		return 27.0, 1.8
	case "windSpeed":
		return 3.5, 1.2
	case "rainfall":
		return 0.8, 0.6
	case "pm25":
		return 18.0, 6.0
	default:
		return 50.0, 10.0
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(doc domain.BuildingDocument, frame domain.AreaFrame) {
	obstacles := domain.NewObstacleIndex(doc.Footprints())

	var maxHeight float64
	for _, b := range doc.Buildings {
		if b.Height > maxHeight {
			maxHeight = b.Height
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Frame origin: (%.4f, %.4f), scale %g\n", frame.OriginLat, frame.OriginLng, frame.Scale)
	fmt.Printf("Local bounds: x [%.1f, %.1f], z [%.1f, %.1f]\n",
		frame.LocalBounds.MinX, frame.LocalBounds.MaxX,
		frame.LocalBounds.MinZ, frame.LocalBounds.MaxZ)
	fmt.Printf("Footprints indexed: %d (skipped %d)\n", obstacles.Len(), obstacles.Skipped())
	fmt.Printf("Max building height: %g m\n", maxHeight)
	fmt.Printf("Origin inside a building: %v\n", obstacles.Contains(domain.Vec2{}))
}
