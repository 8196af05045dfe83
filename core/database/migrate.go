package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/facetbot/core/logger"
)

// RunMigrations applies every pending up migration from cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	return migrateWith(cfg, "up", func(m *migrate.Migrate) error { return m.Up() })
}

// RollbackMigrations reverts the last n applied migrations.
func RollbackMigrations(cfg Config, n int) error {
	if n <= 0 {
		return fmt.Errorf("rollback: steps must be > 0, got %d", n)
	}
	return migrateWith(cfg, "down", func(m *migrate.Migrate) error { return m.Steps(-n) })
}

func migrateWith(cfg Config, direction string, apply func(*migrate.Migrate) error) error {
	ctx := context.Background()
	dsn := cfg.DSN()
	if err := WaitForPostgres(ctx, dsn, 30*time.Second); err != nil {
		logger.Error(ctx, logger.CompMIG, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database not ready: %w", err)
	}

	dir, err := resolveDir(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	files := listMigrationFiles(dir)
	preview, truncated := logger.SummarizeStrings(files, 6)
	logger.Debug(ctx, logger.CompMIG, "resolve",
		slog.String("path", dir),
		slog.Int("count", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		logger.Error(ctx, logger.CompMIG, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	fromVer, _, _ := m.Version()
	start := time.Now()
	applyErr := apply(m)
	took := logger.Took(start)

	if applyErr != nil && !errors.Is(applyErr, migrate.ErrNoChange) {
		logger.Error(ctx, logger.CompMIG, "apply",
			slog.String("status", "fail"),
			slog.String("mode", direction),
			slog.String("err", applyErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", applyErr)
	}

	toVer, _, _ := m.Version()
	touched := between(files, uint64(fromVer), uint64(toVer))
	if len(touched) > 0 {
		names, more := logger.SummarizeStrings(touched, 6)
		logger.Debug(ctx, logger.CompMIG, "apply",
			slog.String("mode", direction),
			slog.Int("count", len(touched)),
			slog.String("files_preview", names),
			slog.Bool("files_truncated", more),
		)
	}
	logger.Info(ctx, logger.CompMIG, "summary",
		slog.String("status", "ok"),
		slog.String("mode", direction),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("count", len(touched)),
		slog.Duration("duration", took),
	)
	return nil
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, dir), nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

// between lists the files whose version lies in (lo, hi], in either direction.
func between(files []string, from, to uint64) []string {
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > lo && v <= hi {
			out = append(out, f)
		}
	}
	return out
}
