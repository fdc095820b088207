package forest

import (
	"math"
	"math/rand"
)

// Scores - диагностические метрики качества на отложенной выборке.
type Scores struct {
	N    int     `json:"n"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// TrainTestSplit перемешивает индексы 0..n-1 и отделяет долю testFraction под проверку.
// Размер проверочной части округляется вверх; в обучающей части всегда остаётся хотя бы одна строка.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n) //nolint:gosec

	nTest := 0
	if testFraction > 0 {
		nTest = int(math.Ceil(float64(n) * testFraction))
	}
	if nTest >= n {
		nTest = n - 1
	}

	return perm[nTest:], perm[:nTest]
}

// Evaluate сравнивает предсказания с фактическими значениями.
// При нулевой дисперсии фактических значений R2 равен 1 для точного совпадения и 0 иначе.
func Evaluate(actual, predicted []float64) Scores {
	n := len(actual)
	if n == 0 || n != len(predicted) {
		return Scores{}
	}

	var mean float64
	for _, v := range actual {
		mean += v
	}
	mean /= float64(n)

	var absSum, ssRes, ssTot float64
	for i := range actual {
		d := actual[i] - predicted[i]
		absSum += math.Abs(d)
		ssRes += d * d
		t := actual[i] - mean
		ssTot += t * t
	}

	s := Scores{
		N:    n,
		MAE:  absSum / float64(n),
		RMSE: math.Sqrt(ssRes / float64(n)),
	}
	switch {
	case ssTot > 0:
		s.R2 = 1 - ssRes/ssTot
	case ssRes == 0:
		s.R2 = 1
	}
	return s
}
