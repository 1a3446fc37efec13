package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CleanStats tallies the repairs made to one raw collection.
type CleanStats struct {
	Features         int
	Repaired         int
	EmptyCoordinates int
	EmptyLatitude    int
	EmptyLongitude   int
}

// Add accumulates other into s.
func (s *CleanStats) Add(other CleanStats) {
	s.Features += other.Features
	s.Repaired += other.Repaired
	s.EmptyCoordinates += other.EmptyCoordinates
	s.EmptyLatitude += other.EmptyLatitude
	s.EmptyLongitude += other.EmptyLongitude
}

// Changed reports whether any repair was made.
func (s CleanStats) Changed() bool {
	return s.EmptyCoordinates > 0 || s.EmptyLatitude > 0 || s.EmptyLongitude > 0
}

// CleanReport summarises the clean of a whole raw directory.
type CleanReport struct {
	Files    int // files written
	Changed  int // files with at least one repair
	Failed   int // files that could not be read or decoded
	Features CleanStats
}

var (
	jsonNull        = json.RawMessage("null")
	jsonEmptyString = []byte(`""`)
)

// CleanFeatures repairs the defects found in raw exports: a geometry whose
// coordinates are ["", ""] becomes null, and empty-string latitude or
// longitude properties become null. Everything else, member order included,
// is kept as is.
func CleanFeatures(features []json.RawMessage) ([]json.RawMessage, CleanStats, error) {
	stats := CleanStats{Features: len(features)}
	out := make([]json.RawMessage, len(features))

	for i, raw := range features {
		cleaned, fs, err := cleanFeature(raw)
		if err != nil {
			return nil, CleanStats{}, fmt.Errorf("feature %d: %w", i, err)
		}
		if fs.Changed() {
			fs.Repaired = 1
		}
		stats.Add(fs)
		out[i] = cleaned
	}
	return out, stats, nil
}

func cleanFeature(raw json.RawMessage) (json.RawMessage, CleanStats, error) {
	var stats CleanStats
	members, err := decodeObject(raw)
	if err != nil {
		return nil, stats, err
	}
	if members == nil {
		return raw, stats, nil
	}

	for i, m := range members {
		switch m.Key {
		case "geometry":
			if hasEmptyCoordinates(m.Value) {
				members[i].Value = jsonNull
				stats.EmptyCoordinates++
			}
		case "properties":
			props, err := decodeObject(m.Value)
			if err != nil || props == nil {
				continue
			}
			changed := false
			for j, p := range props {
				if !bytes.Equal(bytes.TrimSpace(p.Value), jsonEmptyString) {
					continue
				}
				switch p.Key {
				case "latitude":
					stats.EmptyLatitude++
				case "longitude":
					stats.EmptyLongitude++
				default:
					continue
				}
				props[j].Value = jsonNull
				changed = true
			}
			if changed {
				encoded, err := encodeObject(props)
				if err != nil {
					return nil, stats, err
				}
				members[i].Value = encoded
			}
		}
	}

	if !stats.Changed() {
		return raw, stats, nil
	}
	encoded, err := encodeObject(members)
	if err != nil {
		return nil, stats, err
	}
	return encoded, stats, nil
}

// hasEmptyCoordinates reports whether a geometry's coordinates are exactly
// ["", ""].
func hasEmptyCoordinates(raw json.RawMessage) bool {
	members, err := decodeObject(raw)
	if err != nil {
		return false
	}
	for _, m := range members {
		if m.Key != "coordinates" {
			continue
		}
		var coords []any
		if err := json.Unmarshal(m.Value, &coords); err != nil {
			return false
		}
		if len(coords) != 2 {
			return false
		}
		for _, c := range coords {
			if s, ok := c.(string); !ok || s != "" {
				return false
			}
		}
		return true
	}
	return false
}
