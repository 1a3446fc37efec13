// Package geojson reads and writes the GeoJSON documents exchanged by the
// pipelines: occurrence collections, boundary layers, the enriched layer and
// the per-season extracts.
package geojson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

var (
	// ErrNotFound reports a required input file that does not exist.
	ErrNotFound = errors.New("input file not found")

	// ErrNotFeatureCollection reports a document that is valid JSON but not
	// a feature collection.
	ErrNotFeatureCollection = errors.New("not a GeoJSON FeatureCollection")
)

// Collection is a decoded FeatureCollection with each feature left as raw
// JSON. Top-level members are remembered so the document can be re-emitted
// with the same layout.
type Collection struct {
	Name     string
	CRS      string // normalised "EPSG:<code>", empty when undeclared
	Encoding string
	Features []json.RawMessage

	members []member
}

type member struct {
	key   string
	value json.RawMessage
}

// crsObject is the pre-RFC 7946 "crs" member. Both the named form and the
// older EPSG form are understood.
type crsObject struct {
	Type       string `json:"type"`
	Properties struct {
		Name string      `json:"name"`
		Code json.Number `json:"code"`
	} `json:"properties"`
}

// ReadCollection reads and decodes the collection at path, sniffing its
// character encoding first.
func ReadCollection(ctx context.Context, path string) (Collection, error) {
	if err := ctx.Err(); err != nil {
		return Collection{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Collection{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Collection{}, fmt.Errorf("read %s: %w", path, err)
	}

	enc, text := DetectEncoding(data)
	c, err := DecodeCollection(text)
	if err != nil {
		return Collection{}, fmt.Errorf("decode %s: %w", path, err)
	}
	c.Encoding = enc
	return c, nil
}

// DecodeCollection decodes a UTF-8 FeatureCollection document.
func DecodeCollection(data []byte) (Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return Collection{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Collection{}, ErrNotFeatureCollection
	}

	var c Collection
	var docType string
	hasFeatures := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Collection{}, err
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Collection{}, err
		}
		c.members = append(c.members, member{key: key, value: value})

		switch key {
		case "type":
			_ = json.Unmarshal(value, &docType)
		case "name":
			_ = json.Unmarshal(value, &c.Name)
		case "crs":
			c.CRS = parseCRS(value)
		case "features":
			hasFeatures = true
			if err := json.Unmarshal(value, &c.Features); err != nil {
				return Collection{}, fmt.Errorf("features: %w", err)
			}
		}
	}
	if _, err := dec.Token(); err != nil {
		return Collection{}, err
	}
	if docType != "FeatureCollection" && !hasFeatures {
		return Collection{}, ErrNotFeatureCollection
	}
	return c, nil
}

func parseCRS(raw json.RawMessage) string {
	var obj crsObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if obj.Properties.Name != "" {
		return domain.NormalizeCRS(obj.Properties.Name)
	}
	if obj.Properties.Code != "" {
		return domain.NormalizeCRS("EPSG:" + obj.Properties.Code.String())
	}
	return ""
}

// crsMember builds the "crs" member written to output documents.
func crsMember(crs string) map[string]any {
	code, err := domain.EPSGCode(crs)
	if err != nil {
		return nil
	}
	name := "urn:ogc:def:crs:EPSG::" + strconv.Itoa(code)
	if code == 4326 {
		name = "urn:ogc:def:crs:OGC:1.3:CRS84"
	}
	return map[string]any{
		"type":       "name",
		"properties": map[string]any{"name": name},
	}
}

// Encode re-emits the collection with its features replaced, keeping the
// original top-level members and their order.
func (c Collection) Encode(features []json.RawMessage) ([]byte, error) {
	encodedFeatures, err := json.Marshal(features)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	wrote := false
	for _, m := range c.members {
		value := m.value
		if m.key == "features" {
			value = encodedFeatures
			wrote = true
		}
		if err := writeMember(&buf, m.key, value); err != nil {
			return nil, err
		}
	}
	if !wrote {
		if err := writeMember(&buf, "features", encodedFeatures); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value json.RawMessage) error {
	if buf.Len() > 1 {
		buf.WriteByte(',')
	}
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(value)
	return nil
}

// writeDocument writes v as indented UTF-8 JSON without HTML escaping,
// creating parent directories as needed.
func writeDocument(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
