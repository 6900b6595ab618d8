// Command feed-ingest imports supplier catalog feeds: gzip-compressed JSONL
// files with one product per line. Feeds from different suppliers overlap
// heavily, so duplicate SKUs are dropped with a bloom filter (first feed
// listed wins) before upserting into the catalog.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/plutoshop/shop-api/internal/domain/product"
	"github.com/plutoshop/shop-api/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// feedProduct is one JSONL line in a supplier feed.
type feedProduct struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Unit        string          `json:"unit"`
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("at least one feed file is required")
		os.Exit(1)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("feed ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("feed ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
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

	return ingest(ctx, postgres.NewProductRepository(pool), files)
}

// ingest decompresses and parses the feed files concurrently, then a single
// writer deduplicates SKUs and upserts. The bloom filter trades a ~0.1%
// chance of dropping a genuinely new SKU for never holding the full SKU set
// in memory; a dropped SKU arrives with the next feed run.
func ingest(ctx context.Context, repo *postgres.ProductRepository, files []string) error {
	lines := make(chan feedProduct, 1024)

	g, ctx := errgroup.WithContext(ctx)
	parsers, ctx := errgroup.WithContext(ctx)

	for i, f := range files {
		parsers.Go(parseFeedFile(ctx, i, f, lines))
	}
	g.Go(func() error {
		defer close(lines)
		return parsers.Wait()
	})

	g.Go(func() error {
		seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var written, skipped uint64

		for fp := range lines {
			if seen.TestAndAddString(fp.SKU) {
				skipped++
				continue
			}
			// Deterministic id from the SKU so repeated ingests update the
			// same row.
			id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fp.SKU)).String()
			if err := repo.Upsert(ctx, &product.Product{
				ID:          id,
				Name:        fp.Name,
				Description: fp.Description,
				ImageURL:    fp.ImageURL,
				Price:       fp.Price,
				Stock:       fp.Stock,
				Unit:        fp.Unit,
				IsActive:    true,
			}); err != nil {
				return errors.Wrapf(err, "upsert product %s", fp.SKU)
			}
			written++
			if written%progressEvery == 0 {
				slog.Info("ingest progress",
					slog.Uint64("written", written),
					slog.Uint64("skipped", skipped),
				)
			}
		}

		slog.Info("ingest complete",
			slog.Uint64("written", written),
			slog.Uint64("skipped", skipped),
		)
		return nil
	})

	return g.Wait()
}

func parseFeedFile(ctx context.Context, idx int, path string, out chan<- feedProduct) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count, malformed uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var fp feedProduct
			if err := json.Unmarshal(scanner.Bytes(), &fp); err != nil {
				malformed++
				continue
			}
			if fp.SKU == "" || fp.Name == "" || fp.Price.IsNegative() || !product.ValidUnit(fp.Unit) {
				malformed++
				continue
			}
			select {
			case out <- fp:
			case <-ctx.Done():
				return ctx.Err()
			}
			count++
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("feed parsed",
			slog.Int("file", idx+1),
			slog.String("path", path),
			slog.Uint64("products", count),
			slog.Uint64("malformed", malformed),
		)
		return nil
	}
}
