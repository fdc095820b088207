// @title           VIO Product Recommendation API
// @version         1.0
// @description     REST API рекомендаций продукции по ZIP-коду. Модель прогнозирует число совместимых единиц техники (VIO) для каждого продукта каталога.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  akozadaev@inbox.ru
// @contact.url    https://github.com/akozadaev/go_vio_recommender

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @schemes   http https
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/akozadaev/go_vio_recommender/docs" // swagger docs
	"github.com/akozadaev/go_vio_recommender/internal/config"
	"github.com/akozadaev/go_vio_recommender/internal/handlers"
	"github.com/akozadaev/go_vio_recommender/internal/logging"
	"github.com/akozadaev/go_vio_recommender/internal/pipeline"
	"github.com/akozadaev/go_vio_recommender/internal/storage"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Named("server")

	// Модель загружается один раз и передаётся обработчикам.
	p := pipeline.New(cfg, logging.Named("pipeline"))
	bundle, err := p.LoadBundle()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model artifacts, run `vio train` first")
	}
	ranker, err := p.Ranker(bundle)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ranker")
	}

	var index handlers.CompatibilityIndex
	if cfg.Elasticsearch.Enabled {
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses:         []string{cfg.Elasticsearch.URL},
			DisableMetaHeader: true,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Elasticsearch client")
		}

		esStorage := storage.NewElasticsearchStorageWithURL(esClient, cfg.Elasticsearch.Index, cfg.Elasticsearch.URL, logging.Named("elasticsearch"))
		if err := esStorage.CreateIndex(context.Background(), storage.CompatibilityMapping); err != nil {
			log.Warn().Err(err).Msg("could not create index")
		} else {
			log.Info().Str("index", cfg.Elasticsearch.Index).Msg("Elasticsearch index created/verified")
		}
		index = esStorage
	}

	var families handlers.FamilyStore
	if cfg.Postgres.Enabled {
		pgStorage, err := storage.NewPostgresStorage(cfg.Postgres.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
		}
		defer pgStorage.Close()
		log.Info().Msg("connected to PostgreSQL")
		families = pgStorage
	}

	h := handlers.NewHandlers(ranker, index, families, logging.Named("handlers"))

	router := mux.NewRouter()
	router.HandleFunc("/", h.Form).Methods("GET")
	router.HandleFunc("/", h.SubmitForm).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/products/recommend", h.RecommendProducts).Methods("POST")
	router.HandleFunc("/families", h.GetFamilies).Methods("GET")
	router.HandleFunc("/zips/{zip}/compatibility", h.GetZipCompatibility).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.App.Port).
			Str("artifact_id", bundle.ID).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
