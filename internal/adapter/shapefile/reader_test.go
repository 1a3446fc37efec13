package shapefile

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-occurrence-etl/internal/adapter/geojson"
	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
	"github.com/couchcryptid/flood-occurrence-etl/internal/geo"
)

const sirgasUTM23S = `PROJCS["SIRGAS 2000 / UTM zone 23S",GEOGCS["SIRGAS 2000",DATUM["Sistema_de_Referencia_Geocentrico_para_las_AmericaS_2000",SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],AUTHORITY["EPSG","6674"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4674"]],PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",-45],PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],PARAMETER["false_northing",10000000],UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","31983"]]`

const esriUTM23S = `PROJCS["SIRGAS_2000_UTM_Zone_23S",GEOGCS["GCS_SIRGAS_2000",DATUM["D_SIRGAS_2000",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",10000000.0],PARAMETER["Central_Meridian",-45.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

func TestCRSFromWKT(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
		want string
	}{
		{"authority clause", sirgasUTM23S, "EPSG:31983"},
		{"esri name", esriUTM23S, "EPSG:31983"},
		{"esri geographic", `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`, "EPSG:4326"},
		{"inner authority only", `GEOGCS["Custom",UNIT["degree",0.01745,AUTHORITY["EPSG","9122"]]]`, "unknown"},
		{"unknown", `LOCAL_CS["arbitrary"]`, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CRSFromWKT(tt.wkt))
		})
	}
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestProjectionCRS(t *testing.T) {
	t.Run("prj present", func(t *testing.T) {
		data := zipArchive(t, map[string]string{"Bairros.prj": esriUTM23S, "Bairros.shp": ""})
		crs, err := projectionCRS(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, "EPSG:31983", crs)
	})

	t.Run("no prj", func(t *testing.T) {
		data := zipArchive(t, map[string]string{"Bairros.shp": ""})
		crs, err := projectionCRS(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultCRS, crs)
	})

	t.Run("not a zip", func(t *testing.T) {
		data := []byte("plain text")
		_, err := projectionCRS(bytes.NewReader(data), int64(len(data)))
		assert.Error(t, err)
	})
}

func TestReader_Missing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewReader(filepath.Join(t.TempDir(), "Bairros.zip"), "", logger).Extract(context.Background())
	assert.ErrorIs(t, err, geojson.ErrNotFound)
}

func TestReader_NotAnArchive(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "Bairros.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := NewReader(path, "EPSG:31983", logger).Extract(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, geojson.ErrNotFound)
}

func TestDBFFieldNames(t *testing.T) {
	header := make([]byte, 32)
	field := func(name string) []byte {
		d := make([]byte, 32)
		copy(d, name)
		d[11] = 'C'
		return d
	}
	dbf := append(header, field("NOME")...)
	dbf = append(dbf, field("NOME_BAIRR")...)
	dbf = append(dbf, 0x0D)

	assert.Equal(t, []string{"NOME", "NOME_BAIRR"}, dbfFieldNames(dbf))
	assert.Empty(t, dbfFieldNames(nil))
}

func TestReader_Extract(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	layer, err := NewReader(filepath.Join("testdata", "Bairros.zip"), "", logger).Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "EPSG:31983", layer.CRS)
	require.Len(t, layer.Features, 2)

	centro := layer.Features[0]
	assert.Equal(t, []string{"NOME", "CODIGO"}, centro.Properties.Keys())
	name, _ := centro.Properties.Get("NOME")
	assert.Equal(t, "Centro", name)
	require.False(t, centro.Geometry.IsEmpty())
	assert.Len(t, centro.Geometry.Polygons[0][0], 5)
}

func TestReader_JoinByName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	layer, err := NewReader(filepath.Join("testdata", "Bairros.zip"), "", logger).Extract(context.Background())
	require.NoError(t, err)

	occurrence := func(bairro, date string) domain.Occurrence {
		return domain.Occurrence{Feature: domain.Feature{Properties: domain.Attributes{
			{Key: "bairro", Value: bairro}, {Key: "tipo", Value: "Alagamento"}, {Key: "data_inicio", Value: date},
		}}}
	}
	fields := domain.DefaultFieldConfig()
	agg, err := domain.NewAggregator(fields, logger).Aggregate([]domain.Occurrence{
		occurrence("Centro ", "2024-01-15"),
		occurrence("Norte", "2024-07-10"),
		occurrence("Norte", "2024-07-11"),
	})
	require.NoError(t, err)

	calc, err := geo.NewCalculator(geo.MethodUTM)
	require.NoError(t, err)
	out, err := domain.NewEnricher(fields, calc, logger).Enrich(layer, agg)
	require.NoError(t, err)
	require.Len(t, out.Features, 2)

	tests := []struct {
		name    string
		total   int
		areaKm2 float64
		density float64
	}{
		{"Centro", 1, 1, 1},
		{"Norte", 2, 2, 1},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := out.Features[i].Properties
			total, _ := p.Get(domain.FieldTotal)
			assert.Equal(t, tt.total, total)
			area, _ := p.Get(domain.FieldArea)
			assert.InDelta(t, tt.areaKm2, area, 1e-9)
			density, _ := p.Get(domain.FieldDensity)
			assert.InDelta(t, tt.density, density, 1e-9)
		})
	}
}
