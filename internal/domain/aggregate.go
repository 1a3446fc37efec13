package domain

import (
	"fmt"
	"log/slog"
)

// Aggregation holds the count tables produced from one occurrence set.
//
// Total is keyed by neighbourhood only, ByType by neighbourhood and type,
// BySeason by neighbourhood and season, ByTypeSeason by all three.
type Aggregation struct {
	Total        *CountTable
	ByType       *CountTable
	BySeason     *CountTable
	ByTypeSeason *CountTable

	NeighborhoodField string
	TypeField         string // empty when the type field is absent
	DateField         string // empty when no date field is present

	// Types lists the distinct normalised type values in first-seen order.
	Types []string

	Stats AggregateStats
}

// HasTypes reports whether per-type tables were populated.
func (a Aggregation) HasTypes() bool { return a.TypeField != "" }

// HasSeasons reports whether per-season tables were populated.
func (a Aggregation) HasSeasons() bool { return a.DateField != "" }

// AggregateStats tallies the records that were only partially counted.
type AggregateStats struct {
	Records          int
	Counted          int
	NullNeighborhood int
	NullType         int
	UnknownSeason    int
}

// Aggregator groups occurrences by neighbourhood, type and season.
type Aggregator struct {
	fields FieldConfig
	logger *slog.Logger
}

// NewAggregator creates an Aggregator for the given field names.
func NewAggregator(fields FieldConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{fields: fields, logger: logger}
}

// Aggregate builds the four count tables.
//
// The neighbourhood field must appear in at least one record or ErrSchema is
// returned. A missing type field or date field degrades to total-only or
// season-less counting with a warning. The date field is chosen once for the
// whole set: the first candidate present in any record is used for every
// record, even those that carry a different candidate.
func (a *Aggregator) Aggregate(occurrences []Occurrence) (Aggregation, error) {
	rows := make([]Attributes, len(occurrences))
	for i, o := range occurrences {
		rows[i] = o.Properties
	}
	schema := NewSchema(rows...)

	if !schema.Has(a.fields.Neighborhood) {
		return Aggregation{}, fmt.Errorf("occurrence field %q: %w", a.fields.Neighborhood, ErrSchema)
	}

	agg := Aggregation{
		Total:             NewCountTable(),
		ByType:            NewCountTable(),
		BySeason:          NewCountTable(),
		ByTypeSeason:      NewCountTable(),
		NeighborhoodField: a.fields.Neighborhood,
		Stats:             AggregateStats{Records: len(occurrences)},
	}

	if schema.Has(a.fields.Type) {
		agg.TypeField = a.fields.Type
	} else {
		a.logger.Warn("type field not found, counting totals only", "field", a.fields.Type)
	}

	if f, ok := ResolveField(schema, a.fields.DateFields); ok {
		agg.DateField = f
		a.logger.Info("using date field for seasons", "field", f)
	} else {
		a.logger.Warn("no date field found, season counts disabled", "candidates", a.fields.DateFields)
	}

	seenType := map[string]bool{}
	for _, o := range occurrences {
		raw, _ := o.Properties.Get(agg.NeighborhoodField)
		hood, ok := NormalizeKey(raw)
		if !ok {
			agg.Stats.NullNeighborhood++
			continue
		}
		agg.Stats.Counted++
		agg.Total.Inc(CountKey{Neighborhood: hood})

		season := SeasonUnknown
		if agg.HasSeasons() {
			dateVal, _ := o.Properties.Get(agg.DateField)
			season = Classify(dateVal)
			if season.Known() {
				agg.BySeason.Inc(CountKey{Neighborhood: hood, Season: season})
			} else {
				agg.Stats.UnknownSeason++
			}
		}

		if !agg.HasTypes() {
			continue
		}
		typeVal, _ := o.Properties.Get(agg.TypeField)
		occType, ok := NormalizeKey(typeVal)
		if !ok {
			agg.Stats.NullType++
			continue
		}
		if !seenType[occType] {
			seenType[occType] = true
			agg.Types = append(agg.Types, occType)
		}
		agg.ByType.Inc(CountKey{Neighborhood: hood, Type: occType})
		if season.Known() {
			agg.ByTypeSeason.Inc(CountKey{Neighborhood: hood, Type: occType, Season: season})
		}
	}

	a.logger.Info("occurrences aggregated",
		"records", agg.Stats.Records,
		"counted", agg.Stats.Counted,
		"neighborhoods", agg.Total.Len(),
		"types", len(agg.Types),
		"null_neighborhood", agg.Stats.NullNeighborhood,
		"null_type", agg.Stats.NullType,
		"unknown_season", agg.Stats.UnknownSeason,
	)
	return agg, nil
}
