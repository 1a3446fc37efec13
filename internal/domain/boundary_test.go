package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCRS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"EPSG:4326", "EPSG:4326"},
		{"epsg:31983", "EPSG:31983"},
		{"urn:ogc:def:crs:EPSG::31983", "EPSG:31983"},
		{"urn:ogc:def:crs:EPSG:6.6:4674", "EPSG:4674"},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", "EPSG:4326"},
		{"http://www.opengis.net/def/crs/EPSG/0/32723", "EPSG:32723"},
		{"31983", "EPSG:31983"},
		{"LOCAL_CS", "LOCAL_CS"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCRS(tt.in))
		})
	}
}

func TestEPSGCode(t *testing.T) {
	code, err := EPSGCode("urn:ogc:def:crs:EPSG::31983")
	require.NoError(t, err)
	assert.Equal(t, 31983, code)

	_, err = EPSGCode("LOCAL_CS")
	assert.ErrorIs(t, err, ErrUnsupportedCRS)
}
