package main

import (
	"context"
	"errors"
	"io/fs"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog"

	"github.com/akozadaev/go_vio_recommender/internal/config"
	"github.com/akozadaev/go_vio_recommender/internal/dataset"
	"github.com/akozadaev/go_vio_recommender/internal/logging"
	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/pipeline"
	"github.com/akozadaev/go_vio_recommender/internal/storage"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Named("indexer")

	if !cfg.Elasticsearch.Enabled && !cfg.Postgres.Enabled {
		log.Warn().Msg("neither Elasticsearch nor PostgreSQL is enabled, nothing to index")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, logging.Named("pipeline"))

	rows, err := dataset.LoadCompatibility(cfg.Paths.Compatibility)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", cfg.Paths.Compatibility).Msg("compatibility table not found, building it")
		rows, err = p.BuildTable(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load compatibility table")
	}

	if cfg.Elasticsearch.Enabled {
		if err := indexElasticsearch(ctx, cfg, rows, log); err != nil {
			log.Fatal().Err(err).Msg("Elasticsearch indexing failed")
		}
	}

	if cfg.Postgres.Enabled {
		if err := loadPostgres(ctx, cfg, p, rows, log); err != nil {
			log.Fatal().Err(err).Msg("PostgreSQL load failed")
		}
	}

	log.Info().Msg("indexing completed successfully")
}

func indexElasticsearch(ctx context.Context, cfg *config.Config, rows []models.CompatibilityRow, log *zerolog.Logger) error {
	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:         []string{cfg.Elasticsearch.URL},
		DisableMetaHeader: true,
	})
	if err != nil {
		return err
	}

	esStorage := storage.NewElasticsearchStorageWithURL(esClient, cfg.Elasticsearch.Index, cfg.Elasticsearch.URL, logging.Named("elasticsearch"))
	if err := esStorage.CreateIndex(ctx, storage.CompatibilityMapping); err != nil {
		return err
	}

	start := time.Now()
	log.Info().Int("rows", len(rows)).Str("index", cfg.Elasticsearch.Index).Msg("indexing compatibility rows")
	if err := esStorage.BulkIndexCompatibility(ctx, rows); err != nil {
		return err
	}
	if err := esStorage.Refresh(ctx); err != nil {
		return err
	}

	log.Info().Dur("duration", time.Since(start)).Msg("Elasticsearch index updated")
	return nil
}

func loadPostgres(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, rows []models.CompatibilityRow, log *zerolog.Logger) error {
	pgStorage, err := storage.NewPostgresStorage(cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	defer pgStorage.Close()

	if err := pgStorage.EnsureSchema(ctx); err != nil {
		return err
	}

	start := time.Now()
	if err := pgStorage.ReplaceCompatibility(ctx, rows); err != nil {
		return err
	}
	log.Info().Int("rows", len(rows)).Dur("duration", time.Since(start)).Msg("PostgreSQL compatibility table replaced")

	// Журнал обучений пополняется, только если артефакты уже сохранены.
	bundle, err := p.LoadBundle()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Msg("model artifacts not found, training run not recorded")
			return nil
		}
		return err
	}
	if err := pgStorage.RecordTrainingRun(ctx, bundle.Run()); err != nil {
		return err
	}
	log.Info().Str("artifact_id", bundle.ID).Msg("training run recorded")
	return nil
}
