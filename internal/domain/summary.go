package domain

import "time"

// DensityStats summarises the positive values of one density column.
type DensityStats struct {
	Field string
	N     int
	Mean  float64
	Max   float64
	Min   float64
}

// RunSummary is the end-of-run report of the counts pipeline.
type RunSummary struct {
	GeneratedAt       time.Time
	Boundaries        int
	WithOccurrences   int
	TotalOccurrences  int
	CategoryTotals    map[string]int
	Density           DensityStats
	CategoryDensities []DensityStats
}

// Summarize reports totals per known category and the mean, max and min of
// every positive density over the enriched layer.
func Summarize(layer EnrichedLayer) RunSummary {
	s := RunSummary{
		GeneratedAt:    Now(),
		Boundaries:     len(layer.Features),
		CategoryTotals: map[string]int{},
	}

	for _, f := range layer.Features {
		total := intProperty(f.Properties, FieldTotal)
		s.TotalOccurrences += total
		if total > 0 {
			s.WithOccurrences++
		}
		for _, c := range KnownCategories {
			s.CategoryTotals[c.Name] += intProperty(f.Properties, CountField(c))
		}
	}

	s.Density = densityStats(layer.Features, FieldDensity)
	for _, c := range KnownCategories {
		s.CategoryDensities = append(s.CategoryDensities, densityStats(layer.Features, DensityField(c)))
	}
	return s
}

func densityStats(features []EnrichedBoundary, field string) DensityStats {
	ds := DensityStats{Field: field}
	sum := 0.0
	for _, f := range features {
		v, _ := f.Properties.Get(field)
		d, ok := numericValue(v)
		if !ok || d <= 0 {
			continue
		}
		if ds.N == 0 || d > ds.Max {
			ds.Max = d
		}
		if ds.N == 0 || d < ds.Min {
			ds.Min = d
		}
		ds.N++
		sum += d
	}
	if ds.N > 0 {
		ds.Mean = sum / float64(ds.N)
	}
	return ds
}

func intProperty(a Attributes, key string) int {
	v, _ := a.Get(key)
	f, ok := numericValue(v)
	if !ok {
		return 0
	}
	return int(f)
}
