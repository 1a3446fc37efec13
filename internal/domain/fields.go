package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FieldConfig lists the property names the pipeline looks for. Candidate
// lists are tried in order and the first present one wins.
type FieldConfig struct {
	Neighborhood string
	Type         string
	DateFields   []string

	BoundaryNameFields []string
	AreaFields         []string
}

// DefaultFieldConfig returns the field names used by the city's exports.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		Neighborhood:       "bairro",
		Type:               "tipo",
		DateFields:         []string{"data_inicio", "data_fim", "data_particao"},
		BoundaryNameFields: []string{"bairro", "BAIRRO", "Bairro", "NOME", "nome", "NOME_BAIRRO", "nome_bairro"},
		AreaFields:         []string{"st_areasha", "Shape__Area", "SHAPE_Area", "shape_area"},
	}
}

// ResolveField returns the first candidate present in the schema.
func ResolveField(schema Schema, candidates []string) (string, bool) {
	for _, c := range candidates {
		if schema.Has(c) {
			return c, true
		}
	}
	return "", false
}

// ResolveFieldOrText resolves a join-key field: the first present candidate,
// otherwise the first text-typed field of the schema. Returns ErrSchema when
// neither exists.
func ResolveFieldOrText(schema Schema, candidates []string) (field string, fallback bool, err error) {
	if f, ok := ResolveField(schema, candidates); ok {
		return f, false, nil
	}
	for _, f := range schema.Fields() {
		if schema.IsText(f) {
			return f, true, nil
		}
	}
	return "", false, fmt.Errorf("no name field among %v and no text field in %v: %w", candidates, schema.Fields(), ErrSchema)
}

// MaxFieldNameLen is the attribute-name ceiling of the shapefile format.
const MaxFieldNameLen = 10

// Fixed output fields.
const (
	FieldTotal   = "cont_total"
	FieldArea    = "area_km2"
	FieldDensity = "dens_km2"
)

// Category groups occurrence types under one output column.
type Category struct {
	Name   string // display name, e.g. "alagamento"
	Abbrev string // at most 4 characters, used in field names
}

// Known categories, in matching priority order. They always appear in the
// enriched output, zero-filled when absent from the data.
var (
	CategoryFlood     = Category{Name: "alagamento", Abbrev: "alag"}
	CategorySink      = Category{Name: "bolsao", Abbrev: "bols"}
	CategorySheetFlow = Category{Name: "lamina", Abbrev: "lam"}

	KnownCategories = []Category{CategoryFlood, CategorySink, CategorySheetFlow}
)

// categoryMatchers pairs each known category with the folded substring that
// identifies it.
var categoryMatchers = []struct {
	needle   string
	category Category
}{
	{"alagamento", CategoryFlood},
	{"bols", CategorySink},
	{"lamina", CategorySheetFlow},
}

// CategorizeType maps an occurrence type to its category. Matching ignores
// case and diacritics so "Lâmina d'água" and "LAMINA" agree. Unknown types get
// a category derived from their slug.
func CategorizeType(occurrenceType string) Category {
	folded := strings.ToLower(FoldDiacritics(occurrenceType))
	for _, m := range categoryMatchers {
		if strings.Contains(folded, m.needle) {
			return m.category
		}
	}

	slug := Slugify(occurrenceType)
	if slug == "" {
		slug = "outro"
	}
	abbrev := truncate(slug, 4)
	for _, k := range KnownCategories {
		if k.Abbrev == abbrev {
			abbrev = truncate(abbrev, 3) + "0"
		}
	}
	return Category{Name: slug, Abbrev: abbrev}
}

// FoldDiacritics strips combining marks: "Bolsão" -> "Bolsao".
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify removes diacritics and anything that is not an ASCII letter or
// digit, then lower-cases: "Lâmina d'água" -> "laminadagua".
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(FoldDiacritics(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func CountField(c Category) string   { return "cont_" + c.Abbrev }
func DensityField(c Category) string { return "dens_" + c.Abbrev }

func SeasonCountField(s Season) string   { return "cont_" + s.Code() }
func SeasonDensityField(s Season) string { return "dens_" + s.Code() }

func CategorySeasonCountField(c Category, s Season) string {
	return "c_" + c.Abbrev + "_" + s.Code()
}

func CategorySeasonDensityField(c Category, s Season) string {
	return "d_" + c.Abbrev + "_" + s.Code()
}
