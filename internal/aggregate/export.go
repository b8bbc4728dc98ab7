package aggregate

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/music-crawler/internal/music"
)

// defaultLoadConcurrency bounds parallel album loads.
const defaultLoadConcurrency = 4

// AlbumSource is the read side of the store used for aggregation.
type AlbumSource interface {
	ListAlbumIDs(ctx context.Context) ([]int64, error)
	LoadAlbumDetail(ctx context.Context, id int64) (music.AlbumDetail, error)
}

// Result counts the outcome of an export.
type Result struct {
	Written int
	Skipped int
}

// Exporter writes normalized album vectors as CSV.
type Exporter struct {
	source      AlbumSource
	logger      *zap.Logger
	concurrency int
}

// NewExporter builds an Exporter reading from source.
func NewExporter(source AlbumSource, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{source: source, logger: logger, concurrency: defaultLoadConcurrency}
}

// Export loads every stored album, normalizes it, and writes one CSV row per
// album in ID order after a header row. Albums that fail to load or lack
// artist data are logged and skipped.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (Result, error) {
	ids, err := e.source.ListAlbumIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list albums: %w", err)
	}

	vectors := make([]*AlbumVector, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			detail, err := e.source.LoadAlbumDetail(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("skipping album", zap.Int64("album_id", id), zap.Error(err))
				return nil
			}
			raw, err := Build(detail)
			if err != nil {
				e.logger.Warn("skipping album", zap.Int64("album_id", id), zap.Error(err))
				return nil
			}
			v := Normalize(raw)
			vectors[i] = &v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("load albums: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return Result{}, fmt.Errorf("write csv header: %w", err)
	}
	var res Result
	for _, v := range vectors {
		if v == nil {
			res.Skipped++
			continue
		}
		if err := cw.Write(v.Record()); err != nil {
			return res, fmt.Errorf("write csv row: %w", err)
		}
		res.Written++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return res, fmt.Errorf("flush csv: %w", err)
	}
	e.logger.Info("aggregate export finished", zap.Int("written", res.Written), zap.Int("skipped", res.Skipped))
	return res, nil
}
