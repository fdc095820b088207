// Package pipeline связывает загрузку данных, построение таблицы совместимости, обучение и загрузку модели.
// Используется CLI, сервером и индексатором.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/akozadaev/go_vio_recommender/internal/compat"
	"github.com/akozadaev/go_vio_recommender/internal/config"
	"github.com/akozadaev/go_vio_recommender/internal/dataset"
	"github.com/akozadaev/go_vio_recommender/internal/forest"
	"github.com/akozadaev/go_vio_recommender/internal/metrics"
	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/normalize"
	"github.com/akozadaev/go_vio_recommender/internal/recommend"
)

// Pipeline выполняет пакетные этапы по конфигурации.
type Pipeline struct {
	cfg *config.Config
	log *zerolog.Logger
}

// New создаёт пайплайн.
func New(cfg *config.Config, log *zerolog.Logger) *Pipeline {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Pipeline{cfg: cfg, log: log}
}

// TrainConfig переводит параметры модели из конфигурации в параметры обучения.
func TrainConfig(m config.ModelConfig) recommend.TrainConfig {
	return recommend.TrainConfig{
		Forest: forest.Config{
			Trees:           m.Trees,
			Seed:            m.Seed,
			MaxDepth:        m.MaxDepth,
			MinSamplesSplit: m.MinSamplesSplit,
			Workers:         m.Workers,
		},
		TestFraction: m.TestFraction,
	}
}

// BuildTable загружает исходные файлы, нормализует их, агрегирует по семействам
// и сохраняет таблицу совместимости в paths.compatibility.
func (p *Pipeline) BuildTable(ctx context.Context) ([]models.CompatibilityRow, error) {
	start := time.Now()

	equipment, err := dataset.LoadEquipment(p.cfg.Paths.Equipment)
	if err != nil {
		return nil, err
	}
	catalog, err := dataset.LoadCatalog(p.cfg.Paths.Catalog)
	if err != nil {
		return nil, err
	}
	normalize.Equipment(equipment)
	normalize.Catalog(catalog)
	metrics.ObserveStage("load", start)

	p.log.Info().
		Int("equipment", len(equipment)).
		Int("catalog", len(catalog)).
		Dur("duration", time.Since(start)).
		Msg("input loaded")

	rows, err := p.Aggregate(ctx, equipment, catalog)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	if err := dataset.SaveCompatibility(p.cfg.Paths.Compatibility, rows); err != nil {
		return nil, err
	}
	metrics.ObserveStage("persist", start)

	p.log.Info().
		Str("path", p.cfg.Paths.Compatibility).
		Int("rows", len(rows)).
		Msg("compatibility table saved")

	return rows, nil
}

// Aggregate строит единую таблицу совместимости по нормализованным данным.
func (p *Pipeline) Aggregate(ctx context.Context, equipment []models.EquipmentRecord, catalog []models.CatalogEntry) ([]models.CompatibilityRow, error) {
	start := time.Now()

	families := compat.Families(equipment, catalog)
	parts, err := compat.NewAggregator(p.cfg.Aggregate.Workers, p.log).Build(ctx, families, equipment, catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate compatibility: %w", err)
	}
	rows := compat.Merge(parts)

	metrics.ObserveStage("aggregate", start)
	metrics.CompatibilityRows.Set(float64(len(rows)))

	p.log.Info().
		Int("families", len(families)).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("compatibility table built")

	return rows, nil
}

// Train обучает модель на таблице совместимости.
func (p *Pipeline) Train(ctx context.Context, rows []models.CompatibilityRow) (*recommend.Bundle, error) {
	start := time.Now()
	b, err := recommend.Train(ctx, rows, TrainConfig(p.cfg.Model), p.log)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("fit", start)
	return b, nil
}

// TrainAndSave строит таблицу, обучает модель и сохраняет артефакты.
func (p *Pipeline) TrainAndSave(ctx context.Context) (*recommend.Bundle, []models.CompatibilityRow, error) {
	rows, err := p.BuildTable(ctx)
	if err != nil {
		return nil, nil, err
	}

	b, err := p.Train(ctx, rows)
	if err != nil {
		return nil, nil, err
	}

	if err := recommend.SaveArtifacts(b, p.cfg.Paths.Model, p.cfg.Paths.Encoder); err != nil {
		return nil, nil, err
	}
	p.log.Info().
		Str("artifact_id", b.ID).
		Str("model", p.cfg.Paths.Model).
		Str("encoder", p.cfg.Paths.Encoder).
		Msg("artifacts saved")

	return b, rows, nil
}

// LoadBundle загружает сохранённые артефакты и список продуктов из таблицы совместимости.
func (p *Pipeline) LoadBundle() (*recommend.Bundle, error) {
	rows, err := dataset.LoadCompatibility(p.cfg.Paths.Compatibility)
	if err != nil {
		return nil, err
	}

	b, err := recommend.LoadArtifacts(p.cfg.Paths.Model, p.cfg.Paths.Encoder, compat.Products(rows))
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Str("artifact_id", b.ID).
		Time("trained_at", b.TrainedAt).
		Int("products", len(b.Products)).
		Msg("model loaded")

	return b, nil
}

// Ranker создаёт ранжировщик с размером выдачи из конфигурации.
func (p *Pipeline) Ranker(b *recommend.Bundle) (*recommend.Ranker, error) {
	r, err := recommend.NewRanker(b, p.cfg.Recommend.TopN)
	if err != nil {
		return nil, err
	}
	metrics.ProductsServed.Set(float64(len(b.Products)))
	return r, nil
}
