package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
)

// EnrichedBoundary is a boundary with its count and density fields appended
// to the original properties.
type EnrichedBoundary struct {
	Name       string
	Matched    bool
	AreaKm2    float64
	Properties Attributes
	Geometry   Geometry
}

// EnrichedLayer is the output of Enrich. Fields lists the appended property
// names in the order they were added.
type EnrichedLayer struct {
	CRS        string
	NameField  string
	Fields     []string
	Categories []Category
	Features   []EnrichedBoundary
	Stats      EnrichStats
}

// EnrichStats tallies join and area outcomes.
type EnrichStats struct {
	Boundaries   int
	Matched      int
	Unmatched    int
	NullNames    int
	NameFromText bool

	// Neighbourhoods that have occurrences but no polygon, and how many
	// occurrences they hold.
	OrphanNeighborhoods []string
	OrphanOccurrences   int

	AreaFromAttribute int
	AreaFromGeometry  int
	AreaInvalid       int
	ZeroArea          int
}

// Enricher joins count tables onto a boundary layer.
type Enricher struct {
	fields FieldConfig
	area   AreaCalculator
	logger *slog.Logger
}

// NewEnricher creates an Enricher. area is used for boundaries without a
// usable area attribute.
func NewEnricher(fields FieldConfig, area AreaCalculator, logger *slog.Logger) *Enricher {
	return &Enricher{fields: fields, area: area, logger: logger}
}

// Enrich appends counts, area and densities to every boundary. Boundaries
// whose name matches no count keep zero counts; none are dropped.
func (e *Enricher) Enrich(layer BoundaryLayer, agg Aggregation) (EnrichedLayer, error) {
	rows := make([]Attributes, len(layer.Features))
	for i, b := range layer.Features {
		rows[i] = b.Properties
	}
	schema := NewSchema(rows...)

	nameField, fallback, err := ResolveFieldOrText(schema, e.fields.BoundaryNameFields)
	if err != nil {
		return EnrichedLayer{}, fmt.Errorf("boundary name field: %w", err)
	}
	if fallback {
		e.logger.Warn("no known name field, using first text field",
			"field", nameField, "available", schema.Fields())
	}
	e.logger.Info("joining boundaries on field", "field", nameField)

	crs := NormalizeCRS(layer.CRS)
	if crs == "" {
		e.logger.Warn("boundary CRS undefined, assuming default", "crs", DefaultCRS)
		crs = DefaultCRS
	}

	areaField, hasAreaField := ResolveField(schema, e.fields.AreaFields)
	if hasAreaField {
		e.logger.Info("using area attribute (m² to km²)", "field", areaField)
	}

	categories, typeCategory := buildCategories(agg.Types)
	byCategory, byCategorySeason := categoryTables(agg, typeCategory)

	out := EnrichedLayer{
		CRS:        crs,
		NameField:  nameField,
		Categories: categories,
		Fields:     enrichedFieldNames(categories),
		Features:   make([]EnrichedBoundary, 0, len(layer.Features)),
		Stats:      EnrichStats{Boundaries: len(layer.Features), NameFromText: fallback},
	}

	polygonNames := map[string]bool{}
	for i, b := range layer.Features {
		rawName, _ := b.Properties.Get(nameField)
		name, ok := NormalizeKey(rawName)
		if !ok {
			out.Stats.NullNames++
		} else {
			polygonNames[name] = true
		}

		area, err := e.boundaryArea(b, crs, areaField, hasAreaField, &out.Stats)
		if err != nil {
			return EnrichedLayer{}, fmt.Errorf("boundary %d (%s): %w", i, name, err)
		}
		if area <= 0 {
			out.Stats.ZeroArea++
		}

		matched := ok && agg.Total.Get(CountKey{Neighborhood: name}) > 0
		if matched {
			out.Stats.Matched++
		} else {
			out.Stats.Unmatched++
		}

		props := b.Properties.Clone()
		counts := func(field string, n int) {
			props.Set(field, n)
		}
		dens := func(field string, n int) {
			props.Set(field, Density(n, area))
		}

		lookup := func(table *CountTable, k CountKey) int {
			if !ok {
				return 0
			}
			k.Neighborhood = name
			return table.Get(k)
		}

		total := lookup(agg.Total, CountKey{})
		counts(FieldTotal, total)
		for _, c := range categories {
			counts(CountField(c), lookup(byCategory, CountKey{Type: c.Abbrev}))
		}
		props.Set(FieldArea, area)
		dens(FieldDensity, total)
		for _, c := range categories {
			dens(DensityField(c), lookup(byCategory, CountKey{Type: c.Abbrev}))
		}
		for _, s := range Seasons {
			n := lookup(agg.BySeason, CountKey{Season: s})
			counts(SeasonCountField(s), n)
			dens(SeasonDensityField(s), n)
		}
		for _, c := range categories {
			for _, s := range Seasons {
				n := lookup(byCategorySeason, CountKey{Type: c.Abbrev, Season: s})
				counts(CategorySeasonCountField(c, s), n)
				dens(CategorySeasonDensityField(c, s), n)
			}
		}

		out.Features = append(out.Features, EnrichedBoundary{
			Name:       name,
			Matched:    matched,
			AreaKm2:    area,
			Properties: props,
			Geometry:   b.Geometry,
		})
	}

	for _, hood := range agg.Total.Neighborhoods() {
		if polygonNames[hood] {
			continue
		}
		out.Stats.OrphanNeighborhoods = append(out.Stats.OrphanNeighborhoods, hood)
		out.Stats.OrphanOccurrences += agg.Total.Get(CountKey{Neighborhood: hood})
	}
	if len(out.Stats.OrphanNeighborhoods) > 0 {
		e.logger.Warn("neighborhoods with occurrences but no boundary",
			"count", len(out.Stats.OrphanNeighborhoods),
			"occurrences", out.Stats.OrphanOccurrences,
			"names", out.Stats.OrphanNeighborhoods,
		)
	}

	e.logger.Info("boundaries enriched",
		"boundaries", out.Stats.Boundaries,
		"matched", out.Stats.Matched,
		"unmatched", out.Stats.Unmatched,
		"area_from_attribute", out.Stats.AreaFromAttribute,
		"area_from_geometry", out.Stats.AreaFromGeometry,
		"area_invalid", out.Stats.AreaInvalid,
		"zero_area", out.Stats.ZeroArea,
	)
	return out, nil
}

// boundaryArea returns the area in km², preferring the area attribute.
func (e *Enricher) boundaryArea(b Boundary, crs, areaField string, hasAreaField bool, stats *EnrichStats) (float64, error) {
	if hasAreaField {
		v, _ := b.Properties.Get(areaField)
		if m2, ok := numericValue(v); ok {
			stats.AreaFromAttribute++
			return m2 / 1_000_000, nil
		}
		stats.AreaInvalid++
	}
	if b.Geometry.IsEmpty() {
		return 0, nil
	}
	area, err := e.area.AreaKm2(b.Geometry, crs)
	if err != nil {
		return 0, err
	}
	stats.AreaFromGeometry++
	return area, nil
}

// Density is count per km², or 0 when the area is not positive.
func Density(count int, areaKm2 float64) float64 {
	if areaKm2 > 0 {
		return float64(count) / areaKm2
	}
	return 0
}

// numericValue reads a finite number from a property value.
func numericValue(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// buildCategories maps every occurrence type to a category. The known
// categories come first, then generated ones ordered by name. Generated
// abbreviations that collide get a numeric suffix.
func buildCategories(types []string) ([]Category, map[string]Category) {
	typeCategory := make(map[string]Category, len(types))
	byName := map[string]Category{}
	used := map[string]string{}
	for _, k := range KnownCategories {
		byName[k.Name] = k
		used[k.Abbrev] = k.Name
	}
	for _, r := range reservedAbbrevs() {
		used[r] = ""
	}

	sorted := append([]string(nil), types...)
	sort.Strings(sorted)

	var generated []Category
	for _, t := range sorted {
		c := CategorizeType(t)
		if existing, ok := byName[c.Name]; ok {
			typeCategory[t] = existing
			continue
		}
		c.Abbrev = uniqueAbbrev(c.Abbrev, c.Name, used)
		byName[c.Name] = c
		generated = append(generated, c)
		typeCategory[t] = c
	}

	sort.Slice(generated, func(i, j int) bool { return generated[i].Name < generated[j].Name })
	categories := append(append([]Category(nil), KnownCategories...), generated...)
	return categories, typeCategory
}

// reservedAbbrevs are suffixes already owned by fixed and season fields:
// cont_<season>, dens_<season> and dens_km2.
func reservedAbbrevs() []string {
	out := []string{"km2"}
	for _, s := range Seasons {
		out = append(out, s.Code())
	}
	return out
}

func uniqueAbbrev(abbrev, name string, used map[string]string) string {
	candidate := abbrev
	for i := 1; ; i++ {
		owner, taken := used[candidate]
		if !taken || owner == name {
			used[candidate] = name
			return candidate
		}
		suffix := strconv.Itoa(i)
		candidate = truncate(abbrev, 4-len(suffix)) + suffix
	}
}

// categoryTables folds the per-type tables into per-category tables, keyed
// with the category abbreviation in the Type dimension.
func categoryTables(agg Aggregation, typeCategory map[string]Category) (*CountTable, *CountTable) {
	byCategory := NewCountTable()
	for _, k := range agg.ByType.Keys() {
		c := typeCategory[k.Type]
		byCategory.Add(CountKey{Neighborhood: k.Neighborhood, Type: c.Abbrev}, agg.ByType.Get(k))
	}
	byCategorySeason := NewCountTable()
	for _, k := range agg.ByTypeSeason.Keys() {
		c := typeCategory[k.Type]
		byCategorySeason.Add(CountKey{Neighborhood: k.Neighborhood, Type: c.Abbrev, Season: k.Season}, agg.ByTypeSeason.Get(k))
	}
	return byCategory, byCategorySeason
}

// enrichedFieldNames lists the appended fields in output order.
func enrichedFieldNames(categories []Category) []string {
	fields := []string{FieldTotal}
	for _, c := range categories {
		fields = append(fields, CountField(c))
	}
	fields = append(fields, FieldArea, FieldDensity)
	for _, c := range categories {
		fields = append(fields, DensityField(c))
	}
	for _, s := range Seasons {
		fields = append(fields, SeasonCountField(s), SeasonDensityField(s))
	}
	for _, c := range categories {
		for _, s := range Seasons {
			fields = append(fields, CategorySeasonCountField(c, s), CategorySeasonDensityField(c, s))
		}
	}
	return fields
}
