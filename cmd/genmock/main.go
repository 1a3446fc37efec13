// Command genmock writes a deterministic mock data directory: a raw
// occurrence export carrying the defects seen in real exports, and a
// neighbourhood boundary layer laid out as a grid over the city.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir dados -count 500 -seed 7 -latin1
//
// The output is laid out so that PIPELINES=clean,counts,seasons with
// DATA_DIR pointing at -out-dir runs end to end.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	gj "github.com/paulmach/go.geojson"
	"golang.org/x/text/encoding/charmap"
)

// neighborhoods are laid out row by row on a 3x3 grid.
var neighborhoods = []string{
	"Bangu", "Campo Grande", "Madureira",
	"Méier", "Penha", "Tijuca",
	"Centro", "Botafogo", "Copacabana",
}

// orphan has occurrences but no polygon.
const orphan = "Ilha do Governador"

var occurrenceTypes = []string{
	"Alagamento",
	"Bolsão d'água",
	"Lâmina d'água",
	"Transbordamento de rio",
}

const (
	originLon = -43.50
	originLat = -23.00
	cellDeg   = 0.05
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "dados", "data directory to populate")
	count := flag.Int("count", 200, "number of occurrences")
	seed := flag.Uint64("seed", 1, "random seed")
	latin1 := flag.Bool("latin1", false, "encode the raw export as ISO-8859-1")
	flag.Parse()

	if *count <= 0 {
		flag.Usage()
		return fmt.Errorf("-count must be positive")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))

	boundaries, err := boundaryLayer()
	if err != nil {
		return err
	}
	boundaryPath := filepath.Join(*outDir, "camadas", "Limite_de_Bairros.geojson")
	if err := writeFile(boundaryPath, boundaries); err != nil {
		return err
	}
	log.Printf("boundaries: %d polygons -> %s", len(neighborhoods), boundaryPath)

	occurrences, stats, err := occurrenceExport(rng, *count)
	if err != nil {
		return err
	}
	if *latin1 {
		occurrences, err = charmap.ISO8859_1.NewEncoder().Bytes(occurrences)
		if err != nil {
			return fmt.Errorf("encode latin-1: %w", err)
		}
	}
	rawPath := filepath.Join(*outDir, "brutos", "ocorrencias-geojson.json")
	if err := writeFile(rawPath, occurrences); err != nil {
		return err
	}
	log.Printf("occurrences: %d (empty coordinates %d, blank dates %d, orphans %d) -> %s",
		*count, stats.emptyCoords, stats.blankDates, stats.orphans, rawPath)
	return nil
}

// boundaryLayer builds the grid in SIRGAS 2000 geographic coordinates.
func boundaryLayer() ([]byte, error) {
	fc := gj.NewFeatureCollection()
	fc.CRS = map[string]interface{}{
		"type":       "name",
		"properties": map[string]interface{}{"name": "urn:ogc:def:crs:EPSG::4674"},
	}
	for i, name := range neighborhoods {
		lon, lat := cellOrigin(i)
		ring := [][]float64{
			{lon, lat},
			{lon + cellDeg, lat},
			{lon + cellDeg, lat + cellDeg},
			{lon, lat + cellDeg},
			{lon, lat},
		}
		f := gj.NewPolygonFeature([][][]float64{ring})
		f.SetProperty("NOME", name)
		f.SetProperty("codbairro", fmt.Sprintf("%03d", i+1))
		fc.AddFeature(f)
	}
	return json.MarshalIndent(fc, "", "  ")
}

func cellOrigin(i int) (lon, lat float64) {
	return originLon + float64(i%3)*cellDeg, originLat + float64(i/3)*cellDeg
}

type exportStats struct {
	emptyCoords int
	blankDates  int
	orphans     int
}

// occurrenceExport builds the raw export. Roughly 3% of the records have
// ["", ""] coordinates, 5% a blank date, 5% a trailing space in the
// neighbourhood name and 2% fall in a neighbourhood without a polygon.
func occurrenceExport(rng *rand.Rand, n int) ([]byte, exportStats, error) {
	var stats exportStats
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	features := make([]json.RawMessage, 0, n)
	for range n {
		cell := rng.IntN(len(neighborhoods))
		name := neighborhoods[cell]
		lon, lat := cellOrigin(cell)
		lon += rng.Float64() * cellDeg
		lat += rng.Float64() * cellDeg

		switch r := rng.Float64(); {
		case r < 0.02:
			name = orphan
			stats.orphans++
		case r < 0.07:
			name += " "
		}

		date := start.Add(time.Duration(rng.IntN(366*24)) * time.Hour).Format(time.RFC3339)
		if rng.Float64() < 0.05 {
			date = ""
			stats.blankDates++
		}
		kind := occurrenceTypes[rng.IntN(len(occurrenceTypes))]

		if rng.Float64() < 0.03 {
			stats.emptyCoords++
			raw, err := json.Marshal(map[string]any{
				"type":     "Feature",
				"geometry": map[string]any{"type": "Point", "coordinates": []string{"", ""}},
				"properties": map[string]any{
					"bairro": name, "tipo": kind, "data_inicio": date, "latitude": "", "longitude": "",
				},
			})
			if err != nil {
				return nil, stats, err
			}
			features = append(features, raw)
			continue
		}

		f := gj.NewPointFeature([]float64{round(lon), round(lat)})
		f.SetProperty("bairro", name)
		f.SetProperty("tipo", kind)
		f.SetProperty("data_inicio", date)
		f.SetProperty("latitude", round(lat))
		f.SetProperty("longitude", round(lon))
		raw, err := f.MarshalJSON()
		if err != nil {
			return nil, stats, err
		}
		features = append(features, raw)
	}

	doc, err := json.MarshalIndent(struct {
		Type     string            `json:"type"`
		Name     string            `json:"name"`
		Features []json.RawMessage `json:"features"`
	}{"FeatureCollection", "ocorrencias", features}, "", "  ")
	return doc, stats, err
}

func round(v float64) float64 {
	const scale = 1e6
	return float64(int64(v*scale)) / scale
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
