package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

// Pipeline names accepted in PIPELINES.
const (
	PipelineClean   = "clean"
	PipelineCounts  = "counts"
	PipelineSeasons = "seasons"
)

// File names written under OutputDir.
const (
	EnrichedFileName = "Bairros_com_Contagem.geojson"
	SeasonDirName    = "ocorrencias"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	DataDir         string
	OccurrencesPath string
	BoundariesPath  string // empty when discovery found nothing
	OutputDir       string
	RawDir          string
	CleanDir        string
	Pipelines       []string

	LogLevel  string
	LogFormat string

	AreaMethod  string
	BoundaryCRS string
	Fields      domain.FieldConfig

	MetricsTextfile string

	// Season fan-out to Kafka, enabled when KAFKA_BROKERS is set.
	KafkaBrokers     []string
	KafkaSeasonTopic string
	KafkaTimeout     time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	dataDir := envOrDefault("DATA_DIR", "dados")

	kafkaTimeout, err := time.ParseDuration(envOrDefault("KAFKA_TIMEOUT", "10s"))
	if err != nil || kafkaTimeout <= 0 {
		return nil, errors.New("invalid KAFKA_TIMEOUT")
	}

	fields := domain.DefaultFieldConfig()
	fields.Neighborhood = envOrDefault("NEIGHBORHOOD_FIELD", fields.Neighborhood)
	fields.Type = envOrDefault("TYPE_FIELD", fields.Type)
	fields.DateFields = listOrDefault("DATE_FIELDS", fields.DateFields)
	fields.BoundaryNameFields = listOrDefault("BOUNDARY_NAME_FIELDS", fields.BoundaryNameFields)
	fields.AreaFields = listOrDefault("AREA_FIELDS", fields.AreaFields)

	cfg := &Config{
		DataDir:         dataDir,
		OccurrencesPath: envOrDefault("OCCURRENCES_PATH", filepath.Join(dataDir, "clean", "ocorrencias-geojson.json")),
		BoundariesPath:  os.Getenv("BOUNDARIES_PATH"),
		OutputDir:       envOrDefault("OUTPUT_DIR", filepath.Join(dataDir, "processados")),
		RawDir:          envOrDefault("RAW_DIR", filepath.Join(dataDir, "brutos")),
		CleanDir:        envOrDefault("CLEAN_DIR", filepath.Join(dataDir, "clean")),
		Pipelines:       splitList(envOrDefault("PIPELINES", PipelineCounts+","+PipelineSeasons)),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),
		AreaMethod:      envOrDefault("AREA_METHOD", "utm"),
		BoundaryCRS:     os.Getenv("BOUNDARY_CRS"),
		Fields:          fields,
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaSeasonTopic: envOrDefault("KAFKA_SEASON_TOPIC", "flood-occurrences-by-season"),
		KafkaTimeout:     kafkaTimeout,
	}
	if cfg.BoundariesPath == "" {
		cfg.BoundariesPath, _ = DiscoverBoundaries(dataDir)
	}

	if len(cfg.Pipelines) == 0 {
		return nil, errors.New("PIPELINES is required")
	}
	for _, p := range cfg.Pipelines {
		if p != PipelineClean && p != PipelineCounts && p != PipelineSeasons {
			return nil, fmt.Errorf("invalid PIPELINES entry %q", p)
		}
	}
	if cfg.AreaMethod != "utm" && cfg.AreaMethod != "spherical" {
		return nil, fmt.Errorf("invalid AREA_METHOD %q", cfg.AreaMethod)
	}
	if cfg.Fields.Neighborhood == "" {
		return nil, errors.New("NEIGHBORHOOD_FIELD is required")
	}
	if len(cfg.Fields.DateFields) == 0 {
		return nil, errors.New("DATE_FIELDS is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSeasonTopic == "" {
		return nil, errors.New("KAFKA_SEASON_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// Runs reports whether the named pipeline was requested.
func (c *Config) Runs(pipeline string) bool {
	return slices.Contains(c.Pipelines, pipeline)
}

// KafkaEnabled reports whether season extracts are also published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// EnrichedPath is the enriched boundary layer written by the counts pipeline.
func (c *Config) EnrichedPath() string {
	return filepath.Join(c.OutputDir, EnrichedFileName)
}

// SeasonDir is the directory of the per-season extracts.
func (c *Config) SeasonDir() string {
	return filepath.Join(c.OutputDir, SeasonDirName)
}

// boundaryDirs are searched in order, relative to the data directory.
var boundaryDirs = []string{
	filepath.Join("brutos", "camadas", "Limite_de_Bairros"),
	filepath.Join("camadas", "Limite_de_Bairros"),
	"camadas",
	filepath.Join("brutos", "camadas"),
}

var boundaryExts = []string{".geojson", ".json", ".zip"}

// DiscoverBoundaries looks for Limite_de_Bairros.{geojson,json,zip} in the
// usual layer locations under dataDir and returns the first hit.
func DiscoverBoundaries(dataDir string) (string, bool) {
	for _, dir := range boundaryDirs {
		for _, ext := range boundaryExts {
			path := filepath.Join(dataDir, dir, "Limite_de_Bairros"+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func listOrDefault(key string, fallback []string) []string {
	if v := splitList(os.Getenv(key)); len(v) > 0 {
		return v
	}
	return fallback
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
