package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/filing-assistant/internal/model"
)

// maxConcurrentFiles bounds parallel file reads in LoadFiles.
const maxConcurrentFiles = 4

// LoadFile reads fact records from a .json, .csv or .xlsx file.
func (v *Validator) LoadFile(ctx context.Context, path string) ([]model.Fact, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		facts, err := v.ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		return facts, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var facts []model.Fact
	switch ext {
	case ".json":
		facts, err = v.DecodeJSON(ctx, f)
	case ".csv":
		facts, err = v.ReadCSV(ctx, f)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return facts, nil
}

// LoadFiles reads every file concurrently and returns the facts in the order
// the paths were given. Any failure fails the whole load.
func (v *Validator) LoadFiles(ctx context.Context, paths ...string) ([]model.Fact, error) {
	results := make([][]model.Fact, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)
	for i, path := range paths {
		g.Go(func() error {
			facts, err := v.LoadFile(gctx, path)
			if err != nil {
				return err
			}
			results[i] = facts
			zap.L().Debug("ingest: loaded file", zap.String("path", path), zap.Int("facts", len(facts)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.Fact
	for _, facts := range results {
		all = append(all, facts...)
	}
	return all, nil
}
