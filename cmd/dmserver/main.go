// Package main provides the dungeon master server binary: the combat and
// check engine behind a JSON HTTP API, with optional narration and
// persistence.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/dmforge/dungeonmaster/internal/config"
	"github.com/dmforge/dungeonmaster/internal/game/ruleset"
	"github.com/dmforge/dungeonmaster/internal/game/session"
	"github.com/dmforge/dungeonmaster/internal/llm"
	"github.com/dmforge/dungeonmaster/internal/observability"
	"github.com/dmforge/dungeonmaster/internal/server"
	"github.com/dmforge/dungeonmaster/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	rulesetPath := flag.String("ruleset", "", "path to ruleset YAML file; overrides the config value")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting dungeon master server",
		zap.String("addr", cfg.Server.Addr()),
	)

	// Load the ruleset overrides, if any
	path := cfg.Ruleset.Path
	if *rulesetPath != "" {
		path = *rulesetPath
	}
	var rules *ruleset.Ruleset
	if path != "" {
		rules, err = ruleset.Load(path)
		if err != nil {
			logger.Fatal("loading ruleset", zap.Error(err))
		}
		logger.Info("ruleset loaded",
			zap.String("path", path),
			zap.String("name", rules.Name),
		)
	} else {
		rules = ruleset.Default()
	}

	// Connect to PostgreSQL for encounter persistence
	var store server.EncounterStore
	var pool *postgres.Pool
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewEncounterRepository(pool.DB())
	} else {
		logger.Info("persistence disabled, encounters kept in memory")
	}

	// Narration
	var narrator server.Narrator
	if cfg.LLM.Enabled {
		narrator = llm.NewNarrator(cfg.LLM, logger.Named("llm"))
		logger.Info("narration enabled", zap.String("model", cfg.LLM.Model))
	} else {
		logger.Info("narration disabled, responses carry raw combat logs")
	}

	sessions := session.NewManager(rules, nil, logger.Named("session"))
	api := server.NewAPI(sessions, nil, narrator, store, logger.Named("api"))

	// Services stop in reverse order: the HTTP server drains before the
	// database pool closes.
	lc := server.NewLifecycle(logger)
	if pool != nil {
		lc.Add("database", &server.FuncService{
			StartFn: func() error { return nil },
			StopFn:  pool.Close,
		})
	}
	lc.Add("http", server.NewHTTPService(cfg.Server, api.Routes(), logger))

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
