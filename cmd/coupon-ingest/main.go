package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/ingest"
	"github.com/xenking/coupon-engine/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		workers     int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing coupon files")
	flag.StringVar(&pattern, "pattern", "*.jsonl.gz", "glob of coupon files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "files decoded concurrently")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, workers); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, workers int) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrapf(err, "glob %s", glob)
	}
	if len(files) == 0 {
		slog.Info("no coupon files found", slog.String("glob", glob))
		return nil
	}
	// Files are applied in name order so later definitions win.
	slices.Sort(files)

	slog.Info("decoding coupon files", slog.Int("files", len(files)))
	perFile, err := decodeFiles(ctx, files, workers)
	if err != nil {
		return errors.Wrap(err, "decode files")
	}

	coupons, dups := mergeDefinitions(perFile)
	slog.Info("coupons decoded",
		slog.Int("unique", len(coupons)),
		slog.Int("duplicates", dups),
	)
	if len(coupons) == 0 {
		slog.Info("no valid coupons to write")
		return nil
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeCoupons(ctx, postgres.NewCouponRepository(pool), coupons)
}

// decodeFiles reads every file concurrently. The result keeps file order.
func decodeFiles(ctx context.Context, files []string, workers int) ([][]coupon.Coupon, error) {
	results := make([][]coupon.Coupon, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, f := range files {
		g.Go(func() error {
			coupons, err := decodeFile(ctx, f)
			if err != nil {
				return errors.Wrapf(err, "file %s", f)
			}
			results[i] = coupons
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeFile(ctx context.Context, path string) ([]coupon.Coupon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var (
		coupons []coupon.Coupon
		invalid int
	)
	err = ingest.Scan(ctx, gz, func(c coupon.Coupon) error {
		coupons = append(coupons, c)
		if len(coupons)%progressEvery == 0 {
			slog.Info("decode progress", slog.String("file", path), slog.Int("coupons", len(coupons)))
		}
		return nil
	}, func(e *ingest.LineError) {
		invalid++
		slog.Warn("skipping invalid coupon",
			slog.String("file", path),
			slog.Int("line", e.Line),
			slog.String("error", e.Err.Error()),
		)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("file decoded",
		slog.String("file", path),
		slog.Int("coupons", len(coupons)),
		slog.Int("invalid", invalid),
	)
	return coupons, nil
}

// mergeDefinitions flattens per-file results, keeping the last definition
// of each code at the position of its first appearance. Only codes the
// bloom filter flags as possible repeats get an index entry, so memory
// tracks the duplicates rather than the whole input.
func mergeDefinitions(perFile [][]coupon.Coupon) ([]coupon.Coupon, int) {
	var (
		suspects = repeatedCodes(perFile)
		index    = make(map[string]int, len(suspects))
		out      []coupon.Coupon
		dups     int
	)
	for _, coupons := range perFile {
		for _, c := range coupons {
			if _, ok := suspects[c.Code]; !ok {
				out = append(out, c)
				continue
			}
			if i, ok := index[c.Code]; ok {
				dups++
				slog.Debug("duplicate coupon code, later definition wins", slog.String("code", c.Code))
				out[i] = c
				continue
			}
			index[c.Code] = len(out)
			out = append(out, c)
		}
	}
	return out, dups
}

// repeatedCodes returns every code the bloom filter saw more than once.
// False positives only cost an index entry.
func repeatedCodes(perFile [][]coupon.Coupon) map[string]struct{} {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	suspects := make(map[string]struct{})
	for _, coupons := range perFile {
		for _, c := range coupons {
			if filter.TestAndAddString(c.Code) {
				suspects[c.Code] = struct{}{}
			}
		}
	}
	return suspects
}

// upserter is the subset of the coupon repository the writer needs.
type upserter interface {
	UpsertBatch(ctx context.Context, coupons []coupon.Coupon) error
}

func writeCoupons(ctx context.Context, repo upserter, coupons []coupon.Coupon) error {
	slog.Info("writing coupons to database", slog.Int("count", len(coupons)))

	for chunk := range slices.Chunk(coupons, batchSize) {
		if err := repo.UpsertBatch(ctx, chunk); err != nil {
			return errors.Wrap(err, "upsert coupons")
		}
	}
	return nil
}
