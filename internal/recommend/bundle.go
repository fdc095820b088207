// Package recommend обучает модель рекомендаций и ранжирует продукты по прогнозу VIO для ZIP-кода.
//
// Обученный кодировщик, лес и список продуктов объединены в Bundle. Bundle создаётся явно через Train
// или LoadArtifacts и передаётся в Ranker; пакет не хранит глобального состояния.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akozadaev/go_vio_recommender/internal/compat"
	"github.com/akozadaev/go_vio_recommender/internal/encoder"
	"github.com/akozadaev/go_vio_recommender/internal/forest"
	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/normalize"
)

// ErrInvalidZip возвращается, если ZIP-код не является числом.
var ErrInvalidZip = errors.New("invalid zip code")

// Признаки модели: числовой ZIP-код и код продукта.
const (
	featureZip = iota
	featureProduct
	numFeatures
)

// Bundle - версионированная модель рекомендаций. После создания только читается.
type Bundle struct {
	ID        string
	TrainedAt time.Time
	Encoder   *encoder.LabelEncoder
	Forest    *forest.Forest
	Products  []models.Product
	Seed      int64
	TrainRows int
	TestRows  int
	Scores    forest.Scores
}

// Run возвращает описание обучения для журнала.
func (b *Bundle) Run() models.TrainingRun {
	return models.TrainingRun{
		ArtifactID: b.ID,
		Trees:      len(b.Forest.Trees),
		Seed:       b.Seed,
		TrainRows:  b.TrainRows,
		TestRows:   b.TestRows,
		MAE:        b.Scores.MAE,
		RMSE:       b.Scores.RMSE,
		R2:         b.Scores.R2,
		TrainedAt:  b.TrainedAt,
	}
}

// TrainConfig содержит параметры обучения.
type TrainConfig struct {
	Forest       forest.Config
	TestFraction float64
}

// ParseZip приводит ZIP-код к пяти символам и переводит в число.
func ParseZip(zip string) (float64, error) {
	z := normalize.Zip(strings.TrimSpace(zip))
	n, err := strconv.Atoi(z)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidZip, zip, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w %q: negative value", ErrInvalidZip, zip)
	}
	return float64(n), nil
}

// Train обучает кодировщик на всех названиях продуктов таблицы и лес на обучающей части выборки.
// Отложенная часть используется только для диагностических метрик.
func Train(ctx context.Context, rows []models.CompatibilityRow, cfg TrainConfig, log *zerolog.Logger) (*Bundle, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to train model: %w", forest.ErrEmptyTrainingSet)
	}

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.ProductName
	}
	enc := encoder.Fit(names)

	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		zip, err := ParseZip(r.ZipCode)
		if err != nil {
			return nil, fmt.Errorf("compatibility row %d: %w", i+1, err)
		}
		code, err := enc.Transform(r.ProductName)
		if err != nil {
			return nil, err
		}

		x := make([]float64, numFeatures)
		x[featureZip] = zip
		x[featureProduct] = float64(code)
		X[i] = x
		y[i] = float64(r.FleetSize)
	}

	trainIdx, testIdx := forest.TrainTestSplit(len(rows), cfg.TestFraction, cfg.Forest.Seed)
	Xtrain, ytrain := subset(X, y, trainIdx)

	start := time.Now()
	f, err := forest.Fit(ctx, Xtrain, ytrain, cfg.Forest)
	if err != nil {
		return nil, fmt.Errorf("failed to fit forest: %w", err)
	}

	b := &Bundle{
		ID:        uuid.NewString(),
		TrainedAt: time.Now().UTC(),
		Encoder:   enc,
		Forest:    f,
		Products:  compat.Products(rows),
		Seed:      cfg.Forest.Seed,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
	}

	log.Info().
		Str("artifact_id", b.ID).
		Int("trees", len(f.Trees)).
		Int("classes", enc.Len()).
		Int("train_rows", b.TrainRows).
		Int("products", len(b.Products)).
		Dur("duration", time.Since(start)).
		Msg("model trained")

	if len(testIdx) > 0 {
		Xtest, ytest := subset(X, y, testIdx)
		pred, err := f.PredictBatch(Xtest)
		if err != nil {
			return nil, err
		}
		b.Scores = forest.Evaluate(ytest, pred)

		log.Info().
			Str("artifact_id", b.ID).
			Int("test_rows", b.Scores.N).
			Float64("mae", b.Scores.MAE).
			Float64("rmse", b.Scores.RMSE).
			Float64("r2", b.Scores.R2).
			Msg("holdout evaluated")
	}

	return b, nil
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
