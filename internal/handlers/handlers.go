// Package handlers содержит HTTP обработчики формы и REST API рекомендаций продукции.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/akozadaev/go_vio_recommender/internal/metrics"
	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/normalize"
	"github.com/akozadaev/go_vio_recommender/internal/recommend"
	"github.com/akozadaev/go_vio_recommender/internal/storage"
)

// CompatibilityIndex ищет наблюдаемые строки совместимости по ZIP-коду.
type CompatibilityIndex interface {
	GetCompatibilityByZip(ctx context.Context, zip string, limit int) ([]models.CompatibilityRow, error)
}

// FamilyStore возвращает справочник семейств двигателей.
type FamilyStore interface {
	GetEngineFamilies(ctx context.Context) ([]models.EngineFamily, error)
}

// Pinger проверяет доступность хранилища. HealthCheck опрашивает хранилища, которые его реализуют.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers содержит зависимости для обработки HTTP запросов.
// index и families необязательны: nil означает, что хранилище отключено.
type Handlers struct {
	ranker   *recommend.Ranker
	index    CompatibilityIndex
	families FamilyStore
	validate *validator.Validate
	log      *zerolog.Logger
}

// NewHandlers создает новый экземпляр Handlers.
func NewHandlers(ranker *recommend.Ranker, index CompatibilityIndex, families FamilyStore, log *zerolog.Logger) *Handlers {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Handlers{
		ranker:   ranker,
		index:    index,
		families: families,
		validate: validator.New(),
		log:      log,
	}
}

// RecommendProducts обрабатывает POST запрос на получение рекомендаций продукции для ZIP-кода.
// Эндпоинт: POST /products/recommend
//
// @Summary      Получить рекомендации продукции
// @Description  Возвращает продукты, отсортированные по прогнозу числа совместимых единиц техники (VIO) в указанном ZIP-коде. Прогноз округляется вверх.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        request  body      models.RecommendRequest  true  "Запрос на рекомендации"
// @Success      200      {object}  models.RecommendResponse
// @Failure      400      {object}  map[string]string  "Неверный запрос"
// @Failure      500      {object}  map[string]string  "Внутренняя ошибка сервера"
// @Router       /products/recommend [post]
func (h *Handlers) RecommendProducts(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	zip := normalize.Zip(strings.TrimSpace(req.ZipCode))
	limit := req.Limit
	if limit == 0 {
		limit = h.ranker.TopN()
	}

	start := time.Now()
	recs, err := h.ranker.RecommendN(zip, limit)
	h.record("api", err, start)

	if err != nil {
		status, msg := userError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("zip_code", zip).Msg("recommendation failed")
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, models.RecommendResponse{
		ZipCode:    zip,
		ArtifactID: h.ranker.Bundle().ID,
		Products:   recs,
		Total:      len(recs),
	})
}

// GetFamilies обрабатывает GET запрос на получение списка семейств двигателей.
// Если PostgreSQL отключен, возвращается канонический список без счётчиков.
// Эндпоинт: GET /families
//
// @Summary      Получить список семейств двигателей
// @Description  Возвращает семейства двигателей с числом продуктов и ZIP-кодов из PostgreSQL либо канонический список
// @Tags         families
// @Accept       json
// @Produce      json
// @Success      200  {array}   models.EngineFamily
// @Failure      500  {object}  map[string]string  "Внутренняя ошибка сервера"
// @Router       /families [get]
func (h *Handlers) GetFamilies(w http.ResponseWriter, r *http.Request) {
	if h.families == nil {
		families := make([]models.EngineFamily, len(normalize.Families))
		for i, f := range normalize.Families {
			families[i] = models.EngineFamily{Name: f}
		}
		writeJSON(w, http.StatusOK, families)
		return
	}

	families, err := h.families.GetEngineFamilies(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get engine families")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if families == nil {
		families = []models.EngineFamily{}
	}
	writeJSON(w, http.StatusOK, families)
}

// GetZipCompatibility обрабатывает GET запрос на получение наблюдаемой совместимости в ZIP-коде.
// Эндпоинт: GET /zips/{zip}/compatibility
//
// @Summary      Получить наблюдаемую совместимость для ZIP-кода
// @Description  Возвращает строки таблицы совместимости из Elasticsearch, отсортированные по убыванию числа единиц техники
// @Tags         zips
// @Accept       json
// @Produce      json
// @Param        zip    path      string  true   "ZIP-код"
// @Param        limit  query     int     false  "Максимальное число строк"
// @Success      200    {array}   models.CompatibilityRow
// @Failure      400    {object}  map[string]string  "Неверный ZIP-код"
// @Failure      404    {object}  map[string]string  "Данные не найдены"
// @Failure      503    {object}  map[string]string  "Elasticsearch отключен или недоступен"
// @Router       /zips/{zip}/compatibility [get]
func (h *Handlers) GetZipCompatibility(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "Compatibility index is not enabled")
		return
	}

	zip := normalize.Zip(strings.TrimSpace(mux.Vars(r)["zip"]))
	if _, err := recommend.ParseZip(zip); err != nil {
		writeError(w, http.StatusBadRequest, "Zip code must be numeric")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	rows, err := h.index.GetCompatibilityByZip(r.Context(), zip, limit)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No compatibility data for zip code")
			return
		}
		h.log.Error().Err(err).Str("zip_code", zip).Msg("failed to query compatibility index")
		writeError(w, http.StatusServiceUnavailable, "Compatibility index unavailable")
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// HealthCheck обрабатывает GET запрос на проверку работоспособности сервиса.
// Эндпоинт: GET /health
//
// @Summary      Проверка работоспособности сервиса
// @Description  Возвращает статус сервиса, идентификатор загруженной модели и доступность подключенных хранилищ
// @Tags         health
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	b := h.ranker.Bundle()
	resp := map[string]string{
		"status":      "ok",
		"artifact_id": b.ID,
		"trained_at":  b.TrainedAt.Format(time.RFC3339),
		"products":    strconv.Itoa(len(b.Products)),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	stores := []struct {
		name  string
		store any
	}{
		{"elasticsearch", h.index},
		{"postgres", h.families},
	}
	for _, s := range stores {
		p, ok := s.store.(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("store", s.name).Msg("health check failed")
			resp[s.name] = "unavailable"
			resp["status"] = "degraded"
			continue
		}
		resp[s.name] = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) record(source string, err error, start time.Time) {
	metrics.RecordRecommend(source, recommend.Outcome(err), time.Since(start))
}

// userError переводит ошибку ранжирования в HTTP статус и сообщение для пользователя.
func userError(err error) (int, string) {
	if errors.Is(err, recommend.ErrInvalidZip) {
		return http.StatusBadRequest, "Please enter a valid numeric zip code."
	}
	return http.StatusInternalServerError, "Could not compute recommendations: " + err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
