package domain

import "log/slog"

// SeasonPartitions holds the per-season extracts of an occurrence set.
type SeasonPartitions struct {
	DateField  string
	Partitions map[Season][]Feature
	Stats      SplitStats
}

// Get returns the features assigned to s.
func (p SeasonPartitions) Get(s Season) []Feature { return p.Partitions[s] }

// SplitStats tallies the features left out of every partition.
type SplitStats struct {
	Total        int
	Assigned     int
	MissingDate  int
	Unclassified int

	// NoDateField is set when the first feature carries none of the date
	// candidates and nothing was split.
	NoDateField bool
}

// Splitter partitions raw occurrences by season.
type Splitter struct {
	dateFields []string
	logger     *slog.Logger
}

// NewSplitter creates a Splitter that looks for the given date fields.
func NewSplitter(dateFields []string, logger *slog.Logger) *Splitter {
	return &Splitter{dateFields: dateFields, logger: logger}
}

// Split assigns each feature to at most one season. The date field is taken
// from the first feature's properties and used for the whole set. Features
// with a blank date or one that cannot be classified are left out and
// counted. Features are kept as read, geometry included.
func (s *Splitter) Split(features []Feature) SeasonPartitions {
	out := SeasonPartitions{
		Partitions: map[Season][]Feature{},
		Stats:      SplitStats{Total: len(features)},
	}
	if len(features) == 0 {
		s.logger.Warn("no features to split")
		return out
	}

	first := features[0].Properties
	field, ok := ResolveField(NewSchema(first), s.dateFields)
	if !ok {
		s.logger.Error("no date field in first feature, nothing split",
			"candidates", s.dateFields, "available", first.Keys())
		out.Stats.NoDateField = true
		return out
	}
	out.DateField = field
	s.logger.Info("using date field for seasons", "field", field)

	for _, f := range features {
		v, _ := f.Properties.Get(field)
		if IsBlank(v) {
			out.Stats.MissingDate++
			continue
		}
		season := Classify(v)
		if !season.Known() {
			out.Stats.Unclassified++
			continue
		}
		out.Partitions[season] = append(out.Partitions[season], f)
		out.Stats.Assigned++
	}

	attrs := []any{
		"assigned", out.Stats.Assigned,
		"missing_date", out.Stats.MissingDate,
		"unclassified", out.Stats.Unclassified,
	}
	for _, season := range Seasons {
		attrs = append(attrs, season.String(), len(out.Partitions[season]))
	}
	s.logger.Info("occurrences split by season", attrs...)
	return out
}
