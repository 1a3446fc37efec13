package geojson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

// Cleaner repairs every *.json collection of a raw directory into a clean
// directory under the same file name.
// It implements pipeline.RawCleaner.
type Cleaner struct {
	rawDir   string
	cleanDir string
	logger   *slog.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(rawDir, cleanDir string, logger *slog.Logger) *Cleaner {
	return &Cleaner{rawDir: rawDir, cleanDir: cleanDir, logger: logger}
}

// Run cleans the directory. A file that cannot be decoded is logged and
// skipped; a missing raw directory is an error.
func (c *Cleaner) Run(ctx context.Context) (domain.CleanReport, error) {
	var report domain.CleanReport

	info, err := os.Stat(c.rawDir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return report, fmt.Errorf("raw dir %s: %w", c.rawDir, ErrNotFound)
	}
	if err != nil {
		return report, fmt.Errorf("stat raw dir: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(c.rawDir, "*.json"))
	if err != nil {
		return report, fmt.Errorf("list raw dir: %w", err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		c.logger.Warn("no raw collections found", "dir", c.rawDir)
		return report, nil
	}
	c.logger.Info("cleaning raw collections", "dir", c.rawDir, "dest", c.cleanDir, "files", len(files))

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dst := filepath.Join(c.cleanDir, filepath.Base(src))
		stats, err := c.cleanFile(ctx, src, dst)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			c.logger.Error("clean failed, skipping file", "file", src, "error", err)
			continue
		}
		report.Files++
		if stats.Changed() {
			report.Changed++
		}
		report.Features.Add(stats)
		c.logger.Info("collection cleaned",
			"file", filepath.Base(src),
			"features", stats.Features,
			"repaired", stats.Repaired,
			"empty_coordinates", stats.EmptyCoordinates,
			"empty_latitude", stats.EmptyLatitude,
			"empty_longitude", stats.EmptyLongitude,
		)
	}

	c.logger.Info("clean finished",
		"files", report.Files,
		"changed", report.Changed,
		"failed", report.Failed,
		"empty_coordinates", report.Features.EmptyCoordinates,
		"empty_latitude", report.Features.EmptyLatitude,
		"empty_longitude", report.Features.EmptyLongitude,
	)
	return report, nil
}

func (c *Cleaner) cleanFile(ctx context.Context, src, dst string) (domain.CleanStats, error) {
	coll, err := ReadCollection(ctx, src)
	if err != nil {
		return domain.CleanStats{}, err
	}
	c.logger.Debug("encoding detected", "file", src, "encoding", coll.Encoding)

	features, stats, err := domain.CleanFeatures(coll.Features)
	if err != nil {
		return domain.CleanStats{}, err
	}
	doc, err := coll.Encode(features)
	if err != nil {
		return domain.CleanStats{}, err
	}
	if err := writeDocument(dst, json.RawMessage(doc)); err != nil {
		return domain.CleanStats{}, err
	}
	return stats, nil
}
