package recommend

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/akozadaev/go_vio_recommender/internal/encoder"
	"github.com/akozadaev/go_vio_recommender/internal/metrics"
	"github.com/akozadaev/go_vio_recommender/internal/models"
)

// DefaultTopN - число рекомендаций по умолчанию.
const DefaultTopN = 10

// Ranker ранжирует продукты по прогнозу числа совместимых единиц техники.
// Запросы не меняют состояние, Ranker безопасен для конкурентного использования.
type Ranker struct {
	bundle *Bundle
	topN   int
}

// NewRanker создаёт ранжировщик для модели. topN <= 0 заменяется на DefaultTopN.
func NewRanker(b *Bundle, topN int) (*Ranker, error) {
	switch {
	case b == nil:
		return nil, errors.New("model bundle is nil")
	case b.Encoder == nil:
		return nil, errors.New("model bundle has no encoder")
	case b.Forest == nil:
		return nil, errors.New("model bundle has no forest")
	case b.Forest.NFeatures != numFeatures:
		return nil, fmt.Errorf("model expects %d features, ranker provides %d", b.Forest.NFeatures, numFeatures)
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Ranker{bundle: b, topN: topN}, nil
}

// Bundle возвращает модель ранжировщика.
func (r *Ranker) Bundle() *Bundle { return r.bundle }

// TopN возвращает размер выдачи по умолчанию.
func (r *Ranker) TopN() int { return r.topN }

// Recommend возвращает TopN продуктов для ZIP-кода.
func (r *Ranker) Recommend(zip string) ([]models.Recommendation, error) {
	return r.RecommendN(zip, r.topN)
}

// RecommendN прогнозирует VIO для каждого продукта в указанном ZIP-коде, округляет прогноз вверх
// и возвращает n лучших по убыванию. При равных прогнозах сохраняется порядок списка продуктов.
// Продукт, неизвестный кодировщику, приводит к ошибке encoder.ErrUnknownLabel.
func (r *Ranker) RecommendN(zip string, n int) ([]models.Recommendation, error) {
	zipValue, err := ParseZip(zip)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = r.topN
	}

	recs := make([]models.Recommendation, 0, len(r.bundle.Products))
	x := make([]float64, numFeatures)
	x[featureZip] = zipValue

	for _, p := range r.bundle.Products {
		code, err := r.bundle.Encoder.Transform(p.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to encode product %s: %w", p.ID, err)
		}
		x[featureProduct] = float64(code)

		recs = append(recs, models.Recommendation{
			ProductName:        p.Name,
			ProductID:          p.ID,
			PredictedFleetSize: math.Ceil(r.bundle.Forest.Predict(x)),
		})
	}

	slices.SortStableFunc(recs, func(a, b models.Recommendation) int {
		return cmp.Compare(b.PredictedFleetSize, a.PredictedFleetSize)
	})

	if len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}

// Outcome возвращает метку исхода запроса рекомендаций для метрик.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrInvalidZip):
		return metrics.OutcomeInvalidZip
	case errors.Is(err, encoder.ErrUnknownLabel):
		return metrics.OutcomeUnknownProduct
	default:
		return metrics.OutcomeError
	}
}
