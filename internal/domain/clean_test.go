package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanFeatures(t *testing.T) {
	in := []json.RawMessage{
		json.RawMessage(`{"type":"Feature","geometry":{"type":"Point","coordinates":["",""]},"properties":{"bairro":"Centro","latitude":"","longitude":""}}`),
		json.RawMessage(`{"type":"Feature","geometry":{"type":"Point","coordinates":[-43.1,-22.9]},"properties":{"bairro":"Norte","latitude":-22.9,"longitude":""}}`),
		json.RawMessage(`{"type":"Feature","geometry":{"type":"Point","coordinates":[-43.2,-22.8]},"properties":{"bairro":"Sul","obs":""}}`),
	}

	out, stats, err := CleanFeatures(in)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.JSONEq(t, `{"type":"Feature","geometry":null,"properties":{"bairro":"Centro","latitude":null,"longitude":null}}`, string(out[0]))
	assert.JSONEq(t, `{"type":"Feature","geometry":{"type":"Point","coordinates":[-43.1,-22.9]},"properties":{"bairro":"Norte","latitude":-22.9,"longitude":null}}`, string(out[1]))
	assert.Equal(t, string(in[2]), string(out[2]), "untouched features keep their bytes")

	assert.Equal(t, CleanStats{
		Features:         3,
		Repaired:         2,
		EmptyCoordinates: 1,
		EmptyLatitude:    1,
		EmptyLongitude:   2,
	}, stats)
	assert.True(t, stats.Changed())
}

func TestCleanFeatures_KeepsMemberOrder(t *testing.T) {
	in := []json.RawMessage{
		json.RawMessage(`{"properties":{"z":1,"latitude":"","a":2},"type":"Feature","geometry":null}`),
	}
	out, _, err := CleanFeatures(in)
	require.NoError(t, err)
	assert.Equal(t, `{"properties":{"z":1,"latitude":null,"a":2},"type":"Feature","geometry":null}`, string(out[0]))
}

func TestCleanFeatures_OnlyExactEmptyPair(t *testing.T) {
	in := []json.RawMessage{
		json.RawMessage(`{"geometry":{"type":"Point","coordinates":["","",""]}}`),
		json.RawMessage(`{"geometry":{"type":"Point","coordinates":[""," "]}}`),
	}
	out, stats, err := CleanFeatures(in)
	require.NoError(t, err)
	assert.Zero(t, stats.EmptyCoordinates)
	assert.Equal(t, string(in[0]), string(out[0]))
	assert.Equal(t, string(in[1]), string(out[1]))
}

func TestCleanFeatures_InvalidFeature(t *testing.T) {
	_, _, err := CleanFeatures([]json.RawMessage{json.RawMessage(`[`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature 0")
}
