// Package seed loads a YAML catalog fixture into the product tables.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/facetbot/core/logger"
)

// ErrInvalidFixture is wrapped by every Validate failure.
var ErrInvalidFixture = errors.New("seed: invalid fixture")

// Product is one catalog model. Type, Brand and Characters refer to names
// declared elsewhere in the fixture.
type Product struct {
	Model       string   `yaml:"model" db:"model"`
	Type        string   `yaml:"type" db:"-"`
	Brand       string   `yaml:"brand" db:"-"`
	Characters  []string `yaml:"characters" db:"-"`
	Dimensions  string   `yaml:"dimensions" db:"dimensions"`
	Description string   `yaml:"description" db:"description"`
	Price       *int     `yaml:"price" db:"price"`
	Power       *float64 `yaml:"power" db:"power"`
	PDFURL      string   `yaml:"pdf_url" db:"pdf_url"`
	ImageURL    string   `yaml:"image_url" db:"image_url"`

	TypeID  int64 `yaml:"-" db:"typeproduct_id"`
	BrandID int64 `yaml:"-" db:"brand_id"`
}

// Fixture is the seed file layout.
type Fixture struct {
	Types      []string  `yaml:"types"`
	Brands     []string  `yaml:"brands"`
	Characters []string  `yaml:"characters"`
	Products   []Product `yaml:"products"`
}

// Stats counts the rows written by Seed.
type Stats struct {
	Types, Brands, Characters, Products, Links int
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: parse %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names are unique and every product reference resolves.
func (f *Fixture) Validate() error {
	types, err := nameSet("types", f.Types)
	if err != nil {
		return err
	}
	brands, err := nameSet("brands", f.Brands)
	if err != nil {
		return err
	}
	chars, err := nameSet("characters", f.Characters)
	if err != nil {
		return err
	}
	models := make(map[string]struct{}, len(f.Products))
	for i, p := range f.Products {
		if p.Model == "" {
			return fmt.Errorf("%w: product %d has no model", ErrInvalidFixture, i)
		}
		if _, dup := models[p.Model]; dup {
			return fmt.Errorf("%w: duplicate model %q", ErrInvalidFixture, p.Model)
		}
		models[p.Model] = struct{}{}
		if _, ok := types[p.Type]; !ok {
			return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidFixture, p.Model, p.Type)
		}
		if _, ok := brands[p.Brand]; !ok {
			return fmt.Errorf("%w: %s: unknown brand %q", ErrInvalidFixture, p.Model, p.Brand)
		}
		for _, c := range p.Characters {
			if _, ok := chars[c]; !ok {
				return fmt.Errorf("%w: %s: unknown characteristic %q", ErrInvalidFixture, p.Model, c)
			}
		}
		if p.Power != nil && *p.Power < 0 {
			return fmt.Errorf("%w: %s: negative power", ErrInvalidFixture, p.Model)
		}
	}
	return nil
}

func nameSet(kind string, names []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%w: empty name in %s", ErrInvalidFixture, kind)
		}
		if _, dup := set[n]; dup {
			return nil, fmt.Errorf("%w: duplicate %q in %s", ErrInvalidFixture, n, kind)
		}
		set[n] = struct{}{}
	}
	return set, nil
}

const (
	upsertProduct = `INSERT INTO product
  (model, typeproduct_id, brand_id, dimensions, description, price, power, pdf_url, image_url)
VALUES
  (:model, :typeproduct_id, :brand_id, :dimensions, :description, :price, :power, :pdf_url, :image_url)
ON CONFLICT (model) DO UPDATE SET
  typeproduct_id = EXCLUDED.typeproduct_id,
  brand_id = EXCLUDED.brand_id,
  dimensions = EXCLUDED.dimensions,
  description = EXCLUDED.description,
  price = EXCLUDED.price,
  power = EXCLUDED.power,
  pdf_url = EXCLUDED.pdf_url,
  image_url = EXCLUDED.image_url,
  updated_at = TIMEZONE('utc', now())
RETURNING id`
	linkCharacter = `INSERT INTO product_character_association (product_id, character_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`
)

func upsertName(table string) string {
	return `INSERT INTO ` + pq.QuoteIdentifier(table) + ` (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`
}

// Seeder writes a fixture in one transaction. Rerunning it updates rows in place.
type Seeder struct {
	Fixture *Fixture
}

// Seed implements bootstrap.Seeder.
func (s Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	_, err := Apply(ctx, db, s.Fixture)
	return err
}

// Apply upserts f into db and reports how many rows were touched.
func Apply(ctx context.Context, db *sqlx.DB, f *Fixture) (st Stats, err error) {
	if f == nil {
		return st, fmt.Errorf("%w: nil fixture", ErrInvalidFixture)
	}
	if err := f.Validate(); err != nil {
		return st, err
	}
	start := time.Now()
	defer func() {
		attrs := []slog.Attr{
			slog.Int("count", st.Products),
			slog.Int("types", st.Types),
			slog.Int("brands", st.Brands),
			slog.Int("characters", st.Characters),
			slog.Int("links", st.Links),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			logger.Error(ctx, logger.CompSeed, "db.seed", append(attrs,
				slog.String("status", "fail"),
				slog.String("err", err.Error()))...)
			return
		}
		logger.Info(ctx, logger.CompSeed, "db.seed", append(attrs, slog.String("status", "ok"))...)
	}()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("seed: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	typeIDs, err := upsertNames(ctx, tx, "typeproduct", f.Types)
	if err != nil {
		return st, err
	}
	st.Types = len(typeIDs)
	brandIDs, err := upsertNames(ctx, tx, "brand", f.Brands)
	if err != nil {
		return st, err
	}
	st.Brands = len(brandIDs)
	charIDs, err := upsertNames(ctx, tx, "character", f.Characters)
	if err != nil {
		return st, err
	}
	st.Characters = len(charIDs)

	insert, err := tx.PrepareNamedContext(ctx, upsertProduct)
	if err != nil {
		return st, fmt.Errorf("seed: prepare product: %w", err)
	}
	defer insert.Close()

	for _, p := range f.Products {
		p.TypeID = typeIDs[p.Type]
		p.BrandID = brandIDs[p.Brand]
		var id int64
		if err = insert.GetContext(ctx, &id, p); err != nil {
			return st, fmt.Errorf("seed: product %s: %w", p.Model, err)
		}
		st.Products++
		for _, c := range p.Characters {
			if _, err = tx.ExecContext(ctx, linkCharacter, id, charIDs[c]); err != nil {
				return st, fmt.Errorf("seed: link %s/%s: %w", p.Model, c, err)
			}
			st.Links++
		}
	}

	if err = tx.Commit(); err != nil {
		return st, fmt.Errorf("seed: commit: %w", err)
	}
	return st, nil
}

func upsertNames(ctx context.Context, tx *sqlx.Tx, table string, names []string) (map[string]int64, error) {
	stmt := upsertName(table)
	ids := make(map[string]int64, len(names))
	for _, n := range names {
		var id int64
		if err := tx.GetContext(ctx, &id, stmt, n); err != nil {
			return nil, fmt.Errorf("seed: %s %q: %w", table, n, err)
		}
		ids[n] = id
	}
	return ids, nil
}
