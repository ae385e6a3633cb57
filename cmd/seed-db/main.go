// Command seed-db prepares a development database: it runs migrations,
// upserts the catalog from a JSON file, and registers API keys for a regular
// user and an elevated admin.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-api/internal/domain/auth"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/repository"
)

const upsertWorkers = 8

type productJSON struct {
	ID          string          `json:"id"`
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
		databaseURL  string
		productsFile string
		userKey      string
		adminKey     string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&userKey, "user-key", "", "API key to seed for a regular user (or STORE_SEED_USER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "API key to seed with elevated access (or STORE_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if userKey == "" {
		userKey = os.Getenv("STORE_SEED_USER_KEY")
	}
	if userKey == "" {
		slog.Error("user API key is required: set --user-key or STORE_SEED_USER_KEY")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("STORE_SEED_ADMIN_KEY")
	}
	if pepper == "" {
		pepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, userKey, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, userKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKeys(ctx, repository.NewAPIKeyRepository(pool), userKey, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)

	for _, p := range products {
		g.Go(func() error {
			err := repo.Upsert(ctx, &product.Product{
				ID:          p.ID,
				Code:        p.Code,
				Name:        p.Name,
				Brand:       p.Brand,
				Price:       p.Price,
				Quantity:    p.Quantity,
				Category:    p.Category,
				Description: p.Description,
			})
			if err != nil {
				return errors.Wrapf(err, "upsert product %s", p.Code)
			}
			slog.Info("upserted product", slog.String("code", p.Code), slog.String("name", p.Name))
			return nil
		})
	}

	return g.Wait()
}

func seedAPIKeys(ctx context.Context, repo *repository.APIKeyRepository, userKey, adminKey, pepper string) error {
	slog.Info("seeding API keys")

	if err := upsertKey(ctx, repo, "default-user", "Default user key", "user-1", userKey, pepper, false); err != nil {
		return err
	}
	if adminKey != "" {
		if err := upsertKey(ctx, repo, "default-admin", "Default admin key", "admin-1", adminKey, pepper, true); err != nil {
			return err
		}
	}
	return nil
}

func upsertKey(ctx context.Context, repo *repository.APIKeyRepository, id, name, userID, key, pepper string, elevated bool) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))

	err := repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:       id,
		KeyHash:  hex.EncodeToString(mac.Sum(nil)),
		UserID:   userID,
		Name:     name,
		Elevated: elevated,
	}, true)
	if err != nil {
		return errors.Wrapf(err, "upsert API key %s", id)
	}

	slog.Info("upserted API key", slog.String("id", id), slog.String("user_id", userID))
	return nil
}
