package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopkeep/internal/storage/postgres"
)

const (
	upsertUserSQL = `
INSERT INTO users (id, username, email, password)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET username = EXCLUDED.username, email = EXCLUDED.email, password = EXCLUDED.password`

	upsertItemSQL = `
INSERT INTO items (id, name, price, stock, sold)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock, sold = EXCLUDED.sold`

	// Explicit ids bypass BIGSERIAL, so the sequences are moved past them.
	syncSequencesSQL = `
SELECT setval(pg_get_serial_sequence('users', 'id'), COALESCE((SELECT MAX(id) FROM users), 0) + 1, false),
       setval(pg_get_serial_sequence('items', 'id'), COALESCE((SELECT MAX(id) FROM items), 0) + 1, false)`
)

func main() {
	var (
		databaseURL string
		itemsFile   string
		usersFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&itemsFile, "items-file", "db/seed/items.json", "path to items JSON file, optionally .gz")
	flag.StringVar(&usersFile, "users-file", "db/seed/users.json", "path to users JSON file, optionally .gz")
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

	if err := run(ctx, databaseURL, itemsFile, usersFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, itemsFile, usersFile string) error {
	var (
		items []itemFixture
		users []userFixture
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = loadFixture[itemFixture](gctx, itemsFile)
		return errors.Wrap(err, "load items")
	})
	g.Go(func() (err error) {
		users, err = loadFixture[userFixture](gctx, usersFile)
		return errors.Wrap(err, "load users")
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := validateFixtures(items, users); err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := seedUsers(ctx, tx, users); err != nil {
			return errors.Wrap(err, "seed users")
		}
		if err := seedItems(ctx, tx, items); err != nil {
			return errors.Wrap(err, "seed items")
		}
		if _, err := tx.Exec(ctx, syncSequencesSQL); err != nil {
			return errors.Wrap(err, "sync sequences")
		}
		return nil
	})
}

func seedUsers(ctx context.Context, tx pgx.Tx, users []userFixture) error {
	slog.Info("upserting users", slog.Int("count", len(users)))

	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(upsertUserSQL, u.ID, u.Username, u.Email, u.Password)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert users")
	}
	return nil
}

func seedItems(ctx context.Context, tx pgx.Tx, items []itemFixture) error {
	slog.Info("upserting items", slog.Int("count", len(items)))

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(upsertItemSQL, it.ID, it.Name, it.Price, it.Stock, it.Sold)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert items")
	}
	return nil
}
