package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
)

type itemFixture struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
	Sold  int             `json:"sold"`
}

type userFixture struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loadFixture decodes a JSON array from path. Files ending in .gz are
// decompressed on the fly.
func loadFixture[T any](ctx context.Context, path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return out, nil
}

func validateFixtures(items []itemFixture, users []userFixture) error {
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		switch {
		case it.ID <= 0:
			return errors.Errorf("item %q: id must be positive", it.Name)
		case it.Price.IsNegative():
			return errors.Errorf("item %d: negative price", it.ID)
		case it.Stock < 0 || it.Sold < 0:
			return errors.Errorf("item %d: negative stock or sold", it.ID)
		}
		if _, ok := seen[it.ID]; ok {
			return errors.Errorf("item %d: duplicate id", it.ID)
		}
		seen[it.ID] = struct{}{}
	}

	clear(seen)
	for _, u := range users {
		if u.ID <= 0 {
			return errors.Errorf("user %q: id must be positive", u.Username)
		}
		if u.Username == "" || u.Email == "" {
			return errors.Errorf("user %d: username and email are required", u.ID)
		}
		if _, ok := seen[u.ID]; ok {
			return errors.Errorf("user %d: duplicate id", u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}
