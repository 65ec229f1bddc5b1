// Package main is the entry point for the dogma attribute engine's HTTP
// API: it wires a catalogue, an optional Redis cache in front of it, a
// context pool, and optional Postgres auditing and ESI skill import,
// then serves the /api/v1/contexts routes.
package main

import (
	"context"
	"flag"
	"log"

	esiclient "github.com/Sternrassler/eve-esi-client/pkg/client"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/eve-o-provit/backend/internal/apipool"
	"github.com/Sternrassler/eve-o-provit/backend/internal/audit"
	"github.com/Sternrassler/eve-o-provit/backend/internal/cataloguecache"
	"github.com/Sternrassler/eve-o-provit/backend/internal/config"
	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
	"github.com/Sternrassler/eve-o-provit/backend/internal/handlers"
	"github.com/Sternrassler/eve-o-provit/backend/internal/sde"
	"github.com/Sternrassler/eve-o-provit/backend/internal/skillimport"
	applogger "github.com/Sternrassler/eve-o-provit/backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger := applogger.New()
	ctx := context.Background()

	cat, err := sde.Open(ctx, cfg.SDE.Path)
	if err != nil {
		log.Fatalf("failed to open SDE catalogue %s: %v", cfg.SDE.Path, err)
	}
	defer cat.Close()

	var catalogue dogma.Catalogue = cat

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Warn("redis unavailable, running without catalogue cache", "error", err)
			redisClient = nil
		} else {
			catalogue = cataloguecache.New(ctx, cat, redisClient)
		}
	}

	pool := apipool.New()

	var auditLog *audit.Log
	if cfg.Postgres.DSN != "" {
		pgPool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			appLogger.Warn("postgres unavailable, running without audit trail", "error", err)
		} else {
			defer pgPool.Close()
			if err := audit.Migrate(ctx, pgPool); err != nil {
				appLogger.Warn("audit migration failed, running without audit trail", "error", err)
			} else {
				auditLog = audit.New(pgPool, appLogger)
			}
		}
	}

	var skillImporter *skillimport.Importer
	if redisClient != nil {
		esiCfg := esiclient.DefaultConfig(redisClient, "dogma-api/0.1.0")
		esiCfg.RespectExpires = true
		rawClient, err := esiclient.New(esiCfg)
		if err != nil {
			appLogger.Warn("esi client unavailable, running without skill import", "error", err)
		} else {
			defer rawClient.Close()
			skillImporter = skillimport.New(rawClient, redisClient, appLogger)
		}
	}

	h := handlers.New(pool, catalogue, appLogger, auditLog, skillImporter)

	app := fiber.New(fiber.Config{AppName: "dogma-api"})
	app.Use(cors.New())
	h.RegisterRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	appLogger.Info("starting dogma-api", "addr", cfg.HTTP.Addr)
	log.Fatal(app.Listen(cfg.HTTP.Addr))
}
