// Command catalog-import loads product feeds into the catalog. Each feed is a
// gzip-compressed JSONL file, one product per line. Product codes must be
// unique across all feeds: a code appearing in two different feeds is a
// conflict between suppliers, and those products are skipped and reported
// rather than imported with whichever price happened to load last.
//
// Conflict detection is two-pass. Pass 1 builds a bloom filter of codes per
// feed; pass 2 re-streams each feed and tests its codes against the other
// feeds' filters. Bloom positives are confirmed by merging exact candidate
// sets, so false positives never block an import.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/repository"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	upsertWorkers = 8
	progressEvery = 100_000
)

type feedProduct struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	feeds, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list feed files")
	}
	if len(feeds) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	slog.Info("found feeds", slog.Int("count", len(feeds)))

	filters, err := buildBloomFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	conflicts, err := findConflicts(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "detect cross-feed conflicts")
	}
	for code := range conflicts {
		slog.Warn("skipping conflicting product code", slog.String("code", code))
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewProductRepository(pool)
	for _, feed := range feeds {
		if err := importFeed(ctx, repo, feed, conflicts); err != nil {
			return errors.Wrapf(err, "import feed %s", feed)
		}
	}

	return nil
}

// buildBloomFilters creates one filter of product codes per feed, concurrently.
func buildBloomFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			err := streamFeed(ctx, feed, func(p feedProduct) error {
				filter.AddString(p.Code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("feed", feed), slog.Uint64("products", count))
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", feed)
			}

			slog.Info("pass 1 complete", slog.String("feed", feed), slog.Uint64("products", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findConflicts re-streams each feed and tests its codes against the other
// feeds' filters. Candidates are confirmed exactly: a code is a conflict only
// when more than one feed actually recorded it.
func findConflicts(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	candidates := make([]map[string]struct{}, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			found := make(map[string]struct{})

			err := streamFeed(ctx, feed, func(p feedProduct) error {
				for j, f := range filters {
					if j == i {
						continue
					}
					if f.TestString(p.Code) {
						found[p.Code] = struct{}{}
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s for conflicts", feed)
			}

			candidates[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]int)
	for _, found := range candidates {
		for code := range found {
			seen[code]++
		}
	}

	conflicts := make(map[string]struct{})
	for code, n := range seen {
		if n >= 2 {
			conflicts[code] = struct{}{}
		}
	}
	return conflicts, nil
}

// importFeed upserts every non-conflicting product from the feed through a
// bounded worker pool.
func importFeed(ctx context.Context, repo *repository.ProductRepository, feed string, conflicts map[string]struct{}) error {
	slog.Info("importing feed", slog.String("feed", feed))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)

	var total, skipped uint64
	err := streamFeed(ctx, feed, func(fp feedProduct) error {
		total++
		if _, ok := conflicts[fp.Code]; ok {
			skipped++
			return nil
		}

		g.Go(func() error {
			p, err := repo.GetByCode(ctx, fp.Code)
			switch {
			case err == nil:
				// Existing product keeps its ID; the feed refreshes the rest.
			case errors.Is(err, product.ErrNotFound):
				p = &product.Product{ID: uuid.New().String()}
			default:
				return errors.Wrapf(err, "look up product %s", fp.Code)
			}

			p.Code = fp.Code
			p.Name = fp.Name
			p.Brand = fp.Brand
			p.Price = fp.Price
			p.Quantity = fp.Quantity
			p.Category = fp.Category
			p.Description = fp.Description

			if err := repo.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", fp.Code)
			}
			return nil
		})
		return nil
	})
	if err != nil {
		_ = g.Wait()
		return err
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("feed imported",
		slog.String("feed", feed),
		slog.Uint64("products", total-skipped),
		slog.Uint64("skipped", skipped),
	)
	return nil
}

// streamFeed decompresses the feed and calls fn for each decoded line.
func streamFeed(ctx context.Context, path string, fn func(feedProduct) error) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var p feedProduct
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			return errors.Wrapf(err, "parse line %d of %s", line, path)
		}
		if p.Code == "" {
			return errors.Errorf("line %d of %s: product code is required", line, path)
		}
		if err := fn(p); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
