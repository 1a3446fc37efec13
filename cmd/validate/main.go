// Command validate re-checks the outputs of a run against the invariants of
// the pipelines: enriched field names and densities, season buckets within
// totals, and disjoint season extracts whose union matches the dated input.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -enriched dados/processados/Bairros_com_Contagem.geojson \
//	  -season-dir dados/processados/ocorrencias \
//	  -occurrences dados/clean/ocorrencias-geojson.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/flood-occurrence-etl/internal/adapter/geojson"
	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
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

func main() {
	enriched := flag.String("enriched", "", "enriched boundary layer written by the counts pipeline")
	seasonDir := flag.String("season-dir", "", "directory of <season>.json extracts")
	occurrences := flag.String("occurrences", "", "occurrence collection the run read (optional)")
	dateFields := flag.String("date-fields", "data_inicio,data_fim,data_particao", "date field candidates")
	flag.Parse()

	if *enriched == "" && *seasonDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*enriched, *seasonDir, *occurrences, strings.Split(*dateFields, ",")); code != 0 {
		os.Exit(code)
	}
}

func run(enrichedPath, seasonDir, occurrencesPath string, dateFields []string) int {
	ctx := context.Background()
	fmt.Println("=== Flood Occurrence Output Validation ===")
	fmt.Println()

	var phases []*phase

	if enrichedPath != "" {
		features, err := loadFeatures(ctx, enrichedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load enriched layer: %v\n", err)
			return 1
		}
		phases = append(phases,
			validateFieldNames(features),
			validateDensities(features),
			validateSeasonTotals(features),
		)
		fmt.Printf("Enriched layer: %d boundaries\n", len(features))
	}

	if seasonDir != "" {
		parts, err := loadSeasons(ctx, seasonDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load season extracts: %v\n", err)
			return 1
		}
		phases = append(phases, validateSeasonMembership(parts, dateFields), validateDisjoint(parts))

		if occurrencesPath != "" {
			input, err := loadFeatures(ctx, occurrencesPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "FATAL: load occurrences: %v\n", err)
				return 1
			}
			phases = append(phases, validateCoverage(parts, input, dateFields))
		}
		for _, s := range domain.Seasons {
			fmt.Printf("Season %-7s %d features\n", s.String()+":", len(parts[s]))
		}
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

// ── Data loading ──

func loadFeatures(ctx context.Context, path string) ([]domain.Feature, error) {
	c, err := geojson.ReadCollection(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Feature, 0, len(c.Features))
	for i, raw := range c.Features {
		f, err := domain.ParseFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// loadSeasons reads every extract present; a missing file is an empty season.
func loadSeasons(ctx context.Context, dir string) (map[domain.Season][]domain.Feature, error) {
	parts := map[domain.Season][]domain.Feature{}
	for _, s := range domain.Seasons {
		features, err := loadFeatures(ctx, filepath.Join(dir, s.String()+".json"))
		if errors.Is(err, geojson.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		parts[s] = features
	}
	return parts, nil
}

// ── Enriched layer ──

func validateFieldNames(features []domain.Feature) *phase {
	p := &phase{name: "Enriched field names"}
	for i, f := range features {
		for _, required := range []string{domain.FieldTotal, domain.FieldArea, domain.FieldDensity} {
			if !f.Properties.Has(required) {
				p.errorf("boundary %d: missing %s", i, required)
			}
		}
		for _, k := range enrichedKeys(f.Properties) {
			if len(k) > domain.MaxFieldNameLen {
				p.errorf("boundary %d: field %q longer than %d", i, k, domain.MaxFieldNameLen)
			}
		}
	}
	return p
}

func validateDensities(features []domain.Feature) *phase {
	p := &phase{name: "Densities match counts and area"}
	for i, f := range features {
		area := number(f.Properties, domain.FieldArea)
		for _, k := range enrichedKeys(f.Properties) {
			countKey, ok := countFieldFor(k)
			if !ok {
				continue
			}
			want := 0.0
			if area > 0 {
				want = number(f.Properties, countKey) / area
			}
			if got := number(f.Properties, k); math.Abs(got-want) > 1e-9*math.Max(1, want) {
				p.errorf("boundary %d: %s = %g, want %s/area = %g", i, k, got, countKey, want)
			}
		}
	}
	return p
}

func validateSeasonTotals(features []domain.Feature) *phase {
	p := &phase{name: "Season counts within totals"}
	for i, f := range features {
		sum := 0.0
		for _, s := range domain.Seasons {
			sum += number(f.Properties, domain.SeasonCountField(s))
		}
		if total := number(f.Properties, domain.FieldTotal); sum > total {
			p.errorf("boundary %d: season counts sum to %g, total is %g", i, sum, total)
		}
	}
	return p
}

// enrichedKeys returns the properties appended by the counts pipeline.
func enrichedKeys(a domain.Attributes) []string {
	var out []string
	for _, k := range a.Keys() {
		if k == domain.FieldTotal || k == domain.FieldArea || k == domain.FieldDensity ||
			strings.HasPrefix(k, "cont_") || strings.HasPrefix(k, "dens_") ||
			strings.HasPrefix(k, "c_") || strings.HasPrefix(k, "d_") {
			out = append(out, k)
		}
	}
	return out
}

// countFieldFor maps a density field to its count field.
func countFieldFor(densityField string) (string, bool) {
	switch {
	case densityField == domain.FieldDensity:
		return domain.FieldTotal, true
	case strings.HasPrefix(densityField, "dens_"):
		return "cont_" + strings.TrimPrefix(densityField, "dens_"), true
	case strings.HasPrefix(densityField, "d_"):
		return "c_" + strings.TrimPrefix(densityField, "d_"), true
	}
	return "", false
}

func number(a domain.Attributes, key string) float64 {
	v, _ := a.Get(key)
	switch n := v.(type) {
	case interface{ Float64() (float64, error) }:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	}
	return 0
}

// ── Season extracts ──

func validateSeasonMembership(parts map[domain.Season][]domain.Feature, dateFields []string) *phase {
	p := &phase{name: "Season extracts classified correctly"}
	for season, features := range parts {
		for i, f := range features {
			field, ok := domain.ResolveField(domain.NewSchema(f.Properties), dateFields)
			if !ok {
				p.errorf("%s[%d]: no date field", season, i)
				continue
			}
			v, _ := f.Properties.Get(field)
			if got := domain.Classify(v); got != season {
				p.errorf("%s[%d]: %v classifies as %s", season, i, v, got)
			}
		}
	}
	return p
}

func validateDisjoint(parts map[domain.Season][]domain.Feature) *phase {
	p := &phase{name: "Season extracts disjoint"}
	owner := map[string]domain.Season{}
	for _, s := range domain.Seasons {
		for i, f := range parts[s] {
			key := string(f.Raw)
			if prev, dup := owner[key]; dup && prev != s {
				p.errorf("%s[%d] also in %s", s, i, prev)
			}
			owner[key] = s
		}
	}
	return p
}

// validateCoverage checks that every dated input record landed in exactly
// one extract.
func validateCoverage(parts map[domain.Season][]domain.Feature, input []domain.Feature, dateFields []string) *phase {
	p := &phase{name: "Season extracts cover dated input"}
	if len(input) == 0 {
		return p
	}
	field, ok := domain.ResolveField(domain.NewSchema(input[0].Properties), dateFields)
	if !ok {
		return p
	}

	want := 0
	for _, f := range input {
		v, _ := f.Properties.Get(field)
		if !domain.IsBlank(v) && domain.Classify(v).Known() {
			want++
		}
	}
	got := 0
	for _, features := range parts {
		got += len(features)
	}
	if got != want {
		p.errorf("extracts hold %d features, input has %d classifiable records", got, want)
	}
	return p
}
