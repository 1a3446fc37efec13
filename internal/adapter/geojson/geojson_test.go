package geojson

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestDetectEncoding(t *testing.T) {
	t.Run("utf-8", func(t *testing.T) {
		enc, text := DetectEncoding(readFixture(t, "occurrences.json"))
		assert.Equal(t, EncodingUTF8, enc)
		assert.Contains(t, string(text), "Bolsão d'água")
	})

	t.Run("latin-1", func(t *testing.T) {
		enc, text := DetectEncoding(readFixture(t, "occurrences_latin1.json"))
		assert.Equal(t, EncodingLatin1, enc)
		assert.Contains(t, string(text), "Lâmina d'água")
	})

	t.Run("byte order mark", func(t *testing.T) {
		enc, text := DetectEncoding(append([]byte{0xEF, 0xBB, 0xBF}, `{"a":1}`...))
		assert.Equal(t, EncodingUTF8, enc)
		assert.Equal(t, `{"a":1}`, string(text))
	})

	t.Run("nothing parses", func(t *testing.T) {
		enc, text := DetectEncoding([]byte(`{"a":`))
		assert.Equal(t, EncodingUTF8, enc)
		assert.Equal(t, `{"a":`, string(text))
	})
}

func TestDecodeCollection(t *testing.T) {
	t.Run("legacy crs", func(t *testing.T) {
		c, err := DecodeCollection(readFixture(t, "boundaries.geojson"))
		require.NoError(t, err)
		assert.Equal(t, "EPSG:31983", c.CRS)
		assert.Equal(t, "Limite_de_Bairros", c.Name)
		assert.Len(t, c.Features, 4)
	})

	t.Run("epsg code form", func(t *testing.T) {
		c, err := DecodeCollection([]byte(`{"type":"FeatureCollection","crs":{"type":"EPSG","properties":{"code":4674}},"features":[]}`))
		require.NoError(t, err)
		assert.Equal(t, "EPSG:4674", c.CRS)
	})

	t.Run("not a collection", func(t *testing.T) {
		_, err := DecodeCollection([]byte(`{"type":"Feature"}`))
		assert.ErrorIs(t, err, ErrNotFeatureCollection)
		_, err = DecodeCollection([]byte(`[1,2]`))
		assert.ErrorIs(t, err, ErrNotFeatureCollection)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeCollection([]byte(`{"type":"FeatureCollection","features":[`))
		assert.Error(t, err)
	})

	t.Run("encode keeps members", func(t *testing.T) {
		c, err := DecodeCollection([]byte(`{"type":"FeatureCollection","name":"x","features":[{"a":1}],"extra":true}`))
		require.NoError(t, err)
		out, err := c.Encode([]json.RawMessage{json.RawMessage(`{"b":2}`)})
		require.NoError(t, err)
		assert.Equal(t, `{"type":"FeatureCollection","name":"x","features":[{"b":2}],"extra":true}`, string(out))
	})
}

func TestReadCollection_Missing(t *testing.T) {
	_, err := ReadCollection(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOccurrenceReader_Extract(t *testing.T) {
	for _, name := range []string{"occurrences.json", "occurrences_latin1.json"} {
		t.Run(name, func(t *testing.T) {
			r := NewOccurrenceReader(filepath.Join("testdata", name), discardLogger())
			features, err := r.Extract(context.Background())
			require.NoError(t, err)
			require.Len(t, features, 5)

			kind, _ := features[2].Properties.Get("tipo")
			assert.Equal(t, "Bolsão d'água", kind)

			kept, stats := domain.SanitizeOccurrences(features)
			assert.Len(t, kept, 3)
			assert.Equal(t, 1, stats.Rejected[domain.RejectEmptyCoordinates])
			assert.Equal(t, 1, stats.Rejected[domain.RejectNullGeometry])
		})
	}
}

func TestBoundaryReader_Extract(t *testing.T) {
	r := NewBoundaryReader(filepath.Join("testdata", "boundaries.geojson"), "", discardLogger())
	layer, err := r.Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "EPSG:31983", layer.CRS)
	require.Len(t, layer.Features, 4)

	centro := layer.Features[0]
	name, _ := centro.Properties.Get("NOME")
	assert.Equal(t, "Centro", name)
	assert.Equal(t, "Polygon", centro.Geometry.Type)
	require.Len(t, centro.Geometry.Polygons, 1)
	assert.Len(t, centro.Geometry.Polygons[0][0], 5)

	assert.Len(t, layer.Features[1].Geometry.Polygons, 2)
	assert.True(t, layer.Features[2].Geometry.IsEmpty())
	assert.True(t, layer.Features[3].Geometry.IsEmpty(), "points are not measurable")

	t.Run("crs override", func(t *testing.T) {
		r := NewBoundaryReader(filepath.Join("testdata", "boundaries.geojson"), "epsg:32723", discardLogger())
		layer, err := r.Extract(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "EPSG:32723", layer.CRS)
	})
}

func TestEnrichedWriter_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "Bairros_com_Contagem.geojson")
	layer := domain.EnrichedLayer{
		CRS: "EPSG:31983",
		Features: []domain.EnrichedBoundary{
			{
				Name:       "Centro",
				Properties: domain.Attributes{{Key: "NOME", Value: "Centro"}, {Key: "cont_total", Value: 2}, {Key: "dens_km2", Value: 0.5}},
				Geometry:   domain.Geometry{Type: "Polygon", Raw: json.RawMessage(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`)},
			},
			{
				Name:       "Ilha",
				Properties: domain.Attributes{{Key: "NOME", Value: "Ilha & Cia"}, {Key: "cont_total", Value: 0}},
			},
			{
				Name:       "Rebuilt",
				Properties: domain.Attributes{{Key: "NOME", Value: "Rebuilt"}},
				Geometry: domain.Geometry{Type: "Polygon", Polygons: []domain.Polygon{
					{domain.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 0}}},
				}},
			},
		},
	}

	require.NoError(t, NewEnrichedWriter(path, discardLogger()).Load(context.Background(), layer))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"NOME": "Ilha & Cia"`, "no HTML escaping")

	c, err := DecodeCollection(data)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:31983", c.CRS)
	assert.Equal(t, "Bairros_com_Contagem", c.Name)
	require.Len(t, c.Features, 3)

	f, err := domain.ParseFeature(c.Features[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"NOME", "cont_total", "dens_km2"}, f.Properties.Keys())
	assert.JSONEq(t, `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, string(f.Geometry))

	f, err = domain.ParseFeature(c.Features[1])
	require.NoError(t, err)
	assert.False(t, f.HasGeometry())

	f, err = domain.ParseFeature(c.Features[2])
	require.NoError(t, err)
	g, err := ParseGeometry(f.Geometry)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", g.Type)
	assert.Equal(t, domain.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 0}}, g.Polygons[0][0])
}

func TestSeasonWriter_Load(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ocorrencias")
	w := NewSeasonWriter(dir, discardLogger())

	summer, err := domain.ParseFeature([]byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"data_inicio":"2024-01-15","obs":"<b>"}}`))
	require.NoError(t, err)

	// A previous run left a winter extract behind.
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(w.SeasonFile(domain.Winter), []byte(`{}`), 0o644))

	p := domain.SeasonPartitions{Partitions: map[domain.Season][]domain.Feature{domain.Summer: {summer}}}
	require.NoError(t, w.Load(context.Background(), p))

	data, err := os.ReadFile(filepath.Join(dir, "summer.json"))
	require.NoError(t, err)
	c, err := DecodeCollection(data)
	require.NoError(t, err)
	require.Len(t, c.Features, 1)
	assert.JSONEq(t, string(summer.Raw), string(c.Features[0]))
	assert.Contains(t, string(data), `"<b>"`)

	_, err = os.Stat(w.SeasonFile(domain.Winter))
	assert.True(t, os.IsNotExist(err), "stale winter extract removed")
	_, err = os.Stat(w.SeasonFile(domain.Autumn))
	assert.True(t, os.IsNotExist(err))
}

func TestCleaner_Run(t *testing.T) {
	raw := t.TempDir()
	clean := filepath.Join(t.TempDir(), "clean")

	latin1 := readFixture(t, "occurrences_latin1.json")
	require.NoError(t, os.WriteFile(filepath.Join(raw, "ocorrencias-geojson.json"), latin1, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "broken.json"), []byte(`{"type":`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "notes.txt"), []byte(`ignored`), 0o644))

	report, err := NewCleaner(raw, clean, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 5, report.Features.Features)
	assert.Equal(t, 1, report.Features.EmptyCoordinates)
	assert.Equal(t, 1, report.Features.EmptyLatitude)
	assert.Equal(t, 1, report.Features.EmptyLongitude)

	out, err := os.ReadFile(filepath.Join(clean, "ocorrencias-geojson.json"))
	require.NoError(t, err)
	enc, _ := DetectEncoding(out)
	assert.Equal(t, EncodingUTF8, enc, "output is always UTF-8")

	c, err := DecodeCollection(out)
	require.NoError(t, err)
	assert.Equal(t, "ocorrencias", c.Name)
	f, err := domain.ParseFeature(c.Features[3])
	require.NoError(t, err)
	assert.False(t, f.HasGeometry())
	lat, _ := f.Properties.Get("latitude")
	assert.Nil(t, lat)

	_, err = os.Stat(filepath.Join(clean, "broken.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCleaner_MissingRawDir(t *testing.T) {
	_, err := NewCleaner(filepath.Join(t.TempDir(), "missing"), t.TempDir(), discardLogger()).Run(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
