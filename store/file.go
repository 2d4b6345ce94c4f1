package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/features"
	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// FileSink writes <dir>/<operator>_<date>_features.csv.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Name() string { return "file" }

// Path returns the file written for (operator, date).
func (s *FileSink) Path(operator, date string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_features.csv", operator, date))
}

func (s *FileSink) Write(ctx context.Context, operator, date string, rows []features.FeatureRow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := s.Path(operator, date)
	tmp, err := os.CreateTemp(s.dir, ".features-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(features.Columns); err != nil {
		tmp.Close()
		return "", err
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			tmp.Close()
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	logging.Logf("Wrote %d feature rows to %s", len(rows), path)
	return path, nil
}
