package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "guardia/internal/adapters/http_server"
	"guardia/internal/adapters/knowledge"
	"guardia/internal/adapters/llm"
	"guardia/internal/adapters/maps"
	"guardia/internal/adapters/observability"
	redisad "guardia/internal/adapters/redis"
	"guardia/internal/app"
	"guardia/internal/shared"
	mysqlrepo "guardia/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// outbound clients
	mapsClient, err := maps.New(cfg.MapsBase, cfg.MapsKey, cfg.MapsRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize maps client")
	}
	gen, err := llm.New(cfg.LLMBase, cfg.LLMKey, cfg.LLMModel, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize llm client")
	}
	kb, err := knowledge.New(cfg.ElasticURL, cfg.KnowledgeIndex)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize knowledge store")
	}

	// services
	conv := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	places := app.NewPlacesService(mapsClient, cache, cfg.CacheTTL, cfg.DefaultRadiusM, cfg.EnrichWorkers)
	router := app.NewRouter(gen, kb, app.NewToolkit(places, gen))

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Router:       router,
		Places:       places,
		KB:           kb,
		Conv:         conv,
		HistoryLimit: cfg.HistoryWindow,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
