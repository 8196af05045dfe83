package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/m3rciful/facetbot/catalog/metrics"
	"github.com/m3rciful/facetbot/catalog/query"
	"github.com/m3rciful/facetbot/catalog/steps"
	"github.com/m3rciful/facetbot/catalog/tgbot"
	"github.com/m3rciful/facetbot/catalog/views"
	"github.com/m3rciful/facetbot/catalog/wizard"
	"github.com/m3rciful/facetbot/core/bootstrap"
	corecmd "github.com/m3rciful/facetbot/core/cmd"
	coreconfig "github.com/m3rciful/facetbot/core/config"
	"github.com/m3rciful/facetbot/core/logger"
	tg "github.com/m3rciful/facetbot/core/telegram"
	"github.com/m3rciful/facetbot/core/telegram/middleware"
	"github.com/m3rciful/facetbot/core/telegram/router"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		skip, _ := cmd.Flags().GetBool("skip-migrations")
		return corecmd.Run(corecmd.Options{
			Config: cfg,
			Build: func(ctx context.Context, cfg *coreconfig.Config) (tg.RunOptions, error) {
				return build(ctx, cfg, skip)
			},
		})
	},
}

func init() {
	runCmd.Flags().Bool("skip-migrations", false, "Do not apply pending migrations on startup")
	rootCmd.AddCommand(runCmd)
}

// loadWizard returns the step registry and texts from the configured file,
// or the built-in flow when none is set.
func loadWizard(cfg *coreconfig.Config) (*steps.Registry, wizard.Texts, error) {
	path := cfg.Wizard.StepsFile
	if path == "" {
		return steps.Default(), wizard.DefaultTexts(), nil
	}
	reg, err := steps.Load(path)
	if err != nil {
		return nil, wizard.Texts{}, err
	}
	texts, err := wizard.LoadTexts(path)
	if err != nil {
		return nil, wizard.Texts{}, err
	}
	return reg, texts, nil
}

func build(ctx context.Context, cfg *coreconfig.Config, skipMigrations bool) (tg.RunOptions, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg, SkipMigrations: skipMigrations})
	if err != nil {
		return tg.RunOptions{}, err
	}
	db := res.DB

	reg, texts, err := loadWizard(cfg)
	if err != nil {
		_ = db.Close()
		return tg.RunOptions{}, err
	}
	schema := query.DefaultSchema()
	if err := schema.Validate(reg); err != nil {
		_ = db.Close()
		return tg.RunOptions{}, err
	}

	counter, closeViews, err := views.Open(views.Options{
		Backend:  cfg.Views.Backend,
		DB:       db,
		RedisURL: cfg.Views.RedisURL,
		RedisKey: cfg.Views.RedisKey,
	})
	if err != nil {
		_ = db.Close()
		return tg.RunOptions{}, err
	}

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, m); err != nil {
				logger.Error(ctx, logger.CompApp, "metrics.listen",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}()
	}

	ctrl := wizard.NewController(reg, query.NewSQLExecutor(db, schema), counter, wizard.Options{
		PageSize:     cfg.Wizard.PageSize,
		QueryTimeout: cfg.Wizard.QueryTimeout(),
		ViewTimeout:  cfg.Wizard.ViewTimeout(),
		Texts:        texts,
		Metrics:      m,
	})
	engine := wizard.NewEngine(ctrl, cfg.Wizard.SessionTTL(), cfg.Wizard.MailboxSize, m)
	go engine.Run(ctx)

	handlers := tgbot.New(engine, counter)
	tgReg := tg.NewRegistry()
	if err := handlers.Register(tgReg); err != nil {
		_ = closeViews()
		_ = db.Close()
		return tg.RunOptions{}, fmt.Errorf("register handlers: %w", err)
	}

	admin := middleware.AdminOptions{IsAdmin: cfg.IsAdmin}
	routes := router.CommandRoutes(tgReg, router.CommandRouteOptions{Admin: admin})
	routes = append(routes, router.CallbackRoute(tgReg))
	routes = append(routes, router.TextRoutes(tgReg, router.TextOptions{Admin: admin})...)

	logger.Info(ctx, logger.CompApp, "wizard.ready",
		slog.Int("count", reg.Count()),
		slog.String("backend", cfg.Views.Backend),
		slog.Int("page_size", cfg.Wizard.PageSize),
	)

	return tg.RunOptions{
		Registry:    tgReg,
		Middlewares: tg.DefaultMiddlewares(cfg, handlers.OnLimited),
		Routes:      routes,
		Synchronous: true,
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			return shutdown(ctx, engine, closeViews, db)
		},
	}, nil
}

func shutdown(ctx context.Context, engine *wizard.Engine, closeViews func() error, db *sqlx.DB) error {
	return errors.Join(
		engine.Close(ctx),
		closeViews(),
		db.Close(),
	)
}
