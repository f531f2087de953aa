// Command validate performs end-to-end integrity checks over a precompute
// run: area input documents, streamline artifacts, and grid artifacts. It
// verifies geometric invariants (streamlines stay out of buildings and inside
// the traced region) and recomputes every grid from the station documents to
// confirm the artifacts match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input-dir data/areas \
//	  -output-dir data/artifacts
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	fileadapter "github.com/couchcryptid/cityflow-precompute/internal/adapter/file"
	"github.com/couchcryptid/cityflow-precompute/internal/domain"
	"github.com/couchcryptid/cityflow-precompute/internal/flow"
	"github.com/couchcryptid/cityflow-precompute/internal/interp"
	"github.com/couchcryptid/cityflow-precompute/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// limits carries the tracer and interpolator parameters the artifacts are
// validated against. Defaults match the service configuration defaults.
type limits struct {
	stepSize  float64
	margin    float64
	yMin      float64
	yMax      float64
	minPoints int
	power     float64
}

func main() {
	inputDir := flag.String("input-dir", "", "directory containing area input documents")
	outputDir := flag.String("output-dir", "", "directory containing artifact documents")
	lim := limits{}
	flag.Float64Var(&lim.stepSize, "step-size", 12, "tracer step size the artifacts were produced with")
	flag.Float64Var(&lim.margin, "margin", 50, "out-of-bounds margin the artifacts were produced with")
	flag.Float64Var(&lim.yMin, "y-min", 10, "lower height clamp")
	flag.Float64Var(&lim.yMax, "y-max", 100, "upper height clamp")
	flag.IntVar(&lim.minPoints, "min-points", 15, "minimum streamline length")
	flag.Float64Var(&lim.power, "power", 2, "inverse-distance weighting power")
	flag.Parse()

	if *inputDir == "" || *outputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*inputDir, *outputDir, lim); code != 0 {
		os.Exit(code)
	}
}

func run(inputDir, outputDir string, lim limits) int {
	fmt.Println("=== Cityflow Artifact Integrity Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	source := fileadapter.NewSource(inputDir, logger)
	areas, err := source.Areas(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load area inputs: %v\n", err)
		return 1
	}
	if len(areas) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no areas found in %s\n", inputDir)
		return 1
	}

	phases := []*phase{
		validateInputs(areas),
		validateStreamlines(areas, outputDir, lim),
		validateGrids(areas, outputDir, lim),
		validateCoverage(areas, outputDir),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Areas: %d\n", len(areas))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Artifact loading ──

func loadArtifact[T any](dir, name string) (T, error) {
	var doc T
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

// ── Phase 1: Input Documents ──
// Validates frame derivation and station resolution for every area.

func validateInputs(areas []pipeline.AreaInput) *phase {
	p := &phase{name: "Phase 1: Input Documents"}

	for _, area := range areas {
		id := area.Buildings.AreaID
		frame := area.Buildings.Frame()
		lb := frame.LocalBounds

		if lb.Width() <= 0 || lb.Depth() <= 0 {
			p.errorf("%s: degenerate local bounds %+v", id, lb)
			continue
		}

		obstacles := domain.NewObstacleIndex(area.Buildings.Footprints())
		if skipped := obstacles.Skipped(); skipped > 0 {
			fmt.Printf("  Note: %s has %d degenerate footprint(s), skipped by the index\n", id, skipped)
		}

		for _, doc := range area.Stations {
			if doc.AreaID != id {
				p.errorf("%s: station document %q carries areaId %q", id, doc.Variable, doc.AreaID)
			}
			readings, positionless := doc.Resolve(frame)
			if positionless > 0 {
				fmt.Printf("  Note: %s/%s has %d positionless station row(s)\n", id, doc.Variable, positionless)
			}
			for _, r := range readings {
				if !lb.Contains(r.Position, 0) {
					p.errorf("%s/%s: station %s resolves outside local bounds: (%g, %g)",
						id, doc.Variable, r.StationID, r.Position.X, r.Position.Z)
				}
			}
		}
	}
	return p
}

// ── Phase 2: Streamline Geometry ──
// Validates the streamline artifact of every area against the tracer
// invariants: points outside obstacles, inside bounds plus margin, heights
// within the clamp range, uniform horizontal step spacing.

func validateStreamlines(areas []pipeline.AreaInput, outputDir string, lim limits) *phase {
	p := &phase{name: "Phase 2: Streamline Geometry"}

	labels := map[string]bool{}
	for _, c := range flow.CompassRose() {
		labels[c.Label] = true
	}

	for _, area := range areas {
		id := area.Buildings.AreaID
		doc, err := loadArtifact[domain.StreamlineDocument](outputDir, id+".streamlines.json")
		if err != nil {
			p.errorf("%s: load streamline artifact: %v", id, err)
			continue
		}

		if doc.AreaID != id {
			p.errorf("%s: artifact carries areaId %q", id, doc.AreaID)
		}
		if doc.StreamlineCount != len(doc.Streamlines) {
			p.errorf("%s: streamlineCount %d but %d streamlines present", id, doc.StreamlineCount, len(doc.Streamlines))
		}
		if doc.GeneratedAt.IsZero() {
			p.errorf("%s: generatedAt is zero", id)
		}

		frame := area.Buildings.Frame()
		obstacles := domain.NewObstacleIndex(area.Buildings.Footprints())

		for li, line := range doc.Streamlines {
			checkStreamline(p, id, li, line, frame.LocalBounds, obstacles, labels, lim)
		}
	}
	return p
}

func checkStreamline(p *phase, id string, li int, line domain.Streamline, lb domain.Bounds, obstacles *domain.ObstacleIndex, labels map[string]bool, lim limits) {
	if !labels[line.Direction] {
		p.errorf("%s line %d: direction %q is not a compass label", id, li, line.Direction)
	}
	if len(line.Points) < lim.minPoints {
		p.errorf("%s line %d: %d points, below minimum %d", id, li, len(line.Points), lim.minPoints)
	}

	for pi, pt := range line.Points {
		pos := domain.Vec2{X: pt[0], Z: pt[2]}
		if !lb.Contains(pos, lim.margin) {
			p.errorf("%s line %d point %d: (%g, %g) outside bounds plus margin", id, li, pi, pt[0], pt[2])
		}
		if obstacles.Contains(pos) {
			p.errorf("%s line %d point %d: (%g, %g) inside a building footprint", id, li, pi, pt[0], pt[2])
		}
		if pt[1] < lim.yMin || pt[1] > lim.yMax {
			p.errorf("%s line %d point %d: height %g outside [%g, %g]", id, li, pi, pt[1], lim.yMin, lim.yMax)
		}

		if pi == 0 {
			continue
		}
		prev := line.Points[pi-1]
		dx, dz := pt[0]-prev[0], pt[2]-prev[2]
		if step := math.Hypot(dx, dz); !floatEq(step, lim.stepSize) {
			p.errorf("%s line %d point %d: horizontal step %g, expected %g", id, li, pi, step, lim.stepSize)
		}
	}
}

// ── Phase 3: Grid Artifacts ──
// Recomputes every grid from its station document and compares cell by cell.

func validateGrids(areas []pipeline.AreaInput, outputDir string, lim limits) *phase {
	p := &phase{name: "Phase 3: Grid Artifacts"}

	for _, area := range areas {
		id := area.Buildings.AreaID
		frame := area.Buildings.Frame()

		for _, stations := range area.Stations {
			readings, _ := stations.Resolve(frame)
			if len(readings) == 0 {
				continue // pipeline produces no grid without readings
			}

			name := fmt.Sprintf("%s.%s.grid.json", id, stations.Variable)
			doc, err := loadArtifact[domain.GridDocument](outputDir, name)
			if err != nil {
				p.errorf("%s/%s: load grid artifact: %v", id, stations.Variable, err)
				continue
			}

			checkGrid(p, id, stations.Variable, doc, frame, readings, lim)
		}
	}
	return p
}

func checkGrid(p *phase, id, variable string, doc domain.GridDocument, frame domain.AreaFrame, readings []domain.StationReading, lim limits) {
	if doc.AreaID != id {
		p.errorf("%s/%s: artifact carries areaId %q", id, variable, doc.AreaID)
	}
	if doc.Variable != variable {
		p.errorf("%s/%s: artifact carries variable %q", id, variable, doc.Variable)
	}
	if doc.GeneratedAt.IsZero() {
		p.errorf("%s/%s: generatedAt is zero", id, variable)
	}
	if doc.Bounds != frame.LocalBounds {
		p.errorf("%s/%s: grid bounds %+v do not match frame bounds %+v", id, variable, doc.Bounds, frame.LocalBounds)
	}
	if len(doc.Values) != doc.Size {
		p.errorf("%s/%s: %d rows, size says %d", id, variable, len(doc.Values), doc.Size)
		return
	}
	for ri, row := range doc.Values {
		if len(row) != doc.Size {
			p.errorf("%s/%s row %d: %d cols, size says %d", id, variable, ri, len(row), doc.Size)
			return
		}
	}

	want := interp.Grid(doc.Bounds, doc.Size, readings, lim.power)
	for ri := range want {
		for ci := range want[ri] {
			if !floatEq(doc.Values[ri][ci], want[ri][ci]) {
				p.errorf("%s/%s cell [%d][%d]: artifact %g, recomputed %g",
					id, variable, ri, ci, doc.Values[ri][ci], want[ri][ci])
			}
		}
	}
}

// ── Phase 4: Artifact Coverage ──
// Every area with readings must have a full artifact set, and the output
// directory must not hold artifacts for unknown areas.

func validateCoverage(areas []pipeline.AreaInput, outputDir string) *phase {
	p := &phase{name: "Phase 4: Artifact Coverage"}

	known := map[string]bool{}
	for _, area := range areas {
		id := area.Buildings.AreaID
		known[id] = true

		if _, err := os.Stat(filepath.Join(outputDir, id+".streamlines.json")); err != nil {
			p.errorf("%s: streamline artifact missing", id)
		}
		frame := area.Buildings.Frame()
		for _, stations := range area.Stations {
			if readings, _ := stations.Resolve(frame); len(readings) == 0 {
				continue
			}
			name := fmt.Sprintf("%s.%s.grid.json", id, stations.Variable)
			if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
				p.errorf("%s/%s: grid artifact missing", id, stations.Variable)
			}
		}
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		p.errorf("read output dir: %v", err)
		return p
	}
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		areaID, _, _ := strings.Cut(name, ".")
		if !known[areaID] {
			p.errorf("orphan artifact %s: no area %q in input dir", name, areaID)
		}
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
