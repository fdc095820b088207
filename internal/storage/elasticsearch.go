// Package storage содержит реализации хранилищ для Elasticsearch/OpenSearch и PostgreSQL.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/akozadaev/go_vio_recommender/internal/metrics"
	"github.com/akozadaev/go_vio_recommender/internal/models"
)

// ErrNotFound возвращается, если запрошенные данные отсутствуют в хранилище.
var ErrNotFound = errors.New("not found")

// CompatibilityMapping - маппинг индекса таблицы совместимости.
const CompatibilityMapping = `{
  "mappings": {
    "properties": {
      "product_id":    {"type": "keyword"},
      "product_name":  {"type": "keyword"},
      "engine_family": {"type": "keyword"},
      "zip_code":      {"type": "keyword"},
      "fleet_size":    {"type": "integer"}
    }
  }
}`

// bulkBatchSize - число документов в одном запросе Bulk API.
const bulkBatchSize = 5000

type esReply struct {
	status int
	body   []byte
}

// ElasticsearchStorage предоставляет методы для работы с Elasticsearch/OpenSearch.
// Запросы на чтение и массовую индексацию идут прямыми HTTP запросами через предохранитель.
type ElasticsearchStorage struct {
	client     *elasticsearch.Client // Официальный клиент Elasticsearch
	index      string                // Имя индекса таблицы совместимости
	httpClient *http.Client          // HTTP клиент для прямых запросов
	baseURL    string                // Базовый URL Elasticsearch/OpenSearch
	breaker    *gobreaker.CircuitBreaker[esReply]
}

// NewElasticsearchStorageWithURL создает новый экземпляр ElasticsearchStorage с указанным URL.
func NewElasticsearchStorageWithURL(client *elasticsearch.Client, index string, baseURL string, log *zerolog.Logger) *ElasticsearchStorage {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	settings := gobreaker.Settings{
		Name:        "elasticsearch",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &ElasticsearchStorage{
		client:     client,
		index:      index,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		breaker:    gobreaker.NewCircuitBreaker[esReply](settings),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// CreateIndex создает индекс с заданным маппингом.
// Если индекс уже существует, функция возвращает nil без ошибки.
func (es *ElasticsearchStorage) CreateIndex(ctx context.Context, mappingJSON string) error {
	res, err := es.client.Indices.Exists([]string{es.index}, es.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = es.client.Indices.Create(
		es.index,
		es.client.Indices.Create.WithBody(strings.NewReader(mappingJSON)),
		es.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error creating index: %s", string(body))
	}

	return nil
}

// Refresh делает проиндексированные документы доступными для поиска.
func (es *ElasticsearchStorage) Refresh(ctx context.Context) error {
	req := esapi.IndicesRefreshRequest{Index: []string{es.index}}
	res, err := req.Do(ctx, es.client)
	if err != nil {
		return fmt.Errorf("failed to refresh index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error refreshing index: %s", string(body))
	}
	return nil
}

// DocumentID возвращает детерминированный идентификатор документа по ключу строки,
// поэтому повторная индексация перезаписывает документы.
func DocumentID(row models.CompatibilityRow) string {
	key := strings.Join([]string{row.ProductID, row.ProductName, row.EngineFamily, row.ZipCode}, "\x1f")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// BulkIndexCompatibility индексирует строки таблицы совместимости пачками по bulkBatchSize.
func (es *ElasticsearchStorage) BulkIndexCompatibility(ctx context.Context, rows []models.CompatibilityRow) error {
	for start := 0; start < len(rows); start += bulkBatchSize {
		end := min(start+bulkBatchSize, len(rows))
		if err := es.bulk(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("failed to bulk index rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (es *ElasticsearchStorage) bulk(ctx context.Context, rows []models.CompatibilityRow) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, row := range rows {
		meta := map[string]any{
			"index": map[string]any{
				"_index": es.index,
				"_id":    DocumentID(row),
			},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode meta: %w", err)
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}

	reply, err := es.do(ctx, http.MethodPost, "/_bulk", "application/x-ndjson", &buf)
	if err != nil {
		return err
	}
	if reply.status >= 400 {
		return fmt.Errorf("error bulk indexing: status %d, body: %s", reply.status, string(reply.body))
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(reply.body, &result); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if result.Errors {
		return fmt.Errorf("bulk response reported item errors")
	}
	return nil
}

// GetCompatibilityByZip возвращает наблюдаемые строки совместимости для ZIP-кода,
// отсортированные по убыванию числа единиц техники.
func (es *ElasticsearchStorage) GetCompatibilityByZip(ctx context.Context, zip string, limit int) ([]models.CompatibilityRow, error) {
	if limit <= 0 {
		limit = 20
	}

	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"term": map[string]any{"zip_code": zip},
		},
		"sort": []map[string]any{
			{"fleet_size": map[string]any{"order": "desc"}},
			{"product_id": map[string]any{"order": "asc"}},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	reply, err := es.do(ctx, http.MethodPost, "/"+es.index+"/_search", "application/json", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if reply.status == http.StatusNotFound {
		return nil, fmt.Errorf("index %s: %w", es.index, ErrNotFound)
	}
	if reply.status >= 400 {
		return nil, fmt.Errorf("error searching: status %d, body: %s", reply.status, string(reply.body))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source models.CompatibilityRow `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(reply.body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	rows := make([]models.CompatibilityRow, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		rows = append(rows, hit.Source)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("zip %s: %w", zip, ErrNotFound)
	}
	return rows, nil
}

// Ping проверяет доступность кластера.
func (es *ElasticsearchStorage) Ping(ctx context.Context) error {
	reply, err := es.do(ctx, http.MethodGet, "/_cluster/health", "", nil)
	if err != nil {
		return fmt.Errorf("failed to ping cluster: %w", err)
	}
	if reply.status >= 400 {
		return fmt.Errorf("cluster health: status %d", reply.status)
	}
	return nil
}

// do выполняет прямой HTTP запрос через предохранитель. Ответы 5xx и сетевые ошибки
// считаются отказами, ответы 4xx возвращаются вызывающему.
func (es *ElasticsearchStorage) do(ctx context.Context, method, path, contentType string, body io.Reader) (esReply, error) {
	req, err := http.NewRequestWithContext(ctx, method, es.baseURL+path, body)
	if err != nil {
		return esReply{}, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return es.breaker.Execute(func() (esReply, error) {
		res, err := es.httpClient.Do(req)
		if err != nil {
			return esReply{}, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return esReply{}, fmt.Errorf("failed to read response: %w", err)
		}
		if res.StatusCode >= 500 {
			return esReply{}, fmt.Errorf("server error: status %d, body: %s", res.StatusCode, string(data))
		}
		return esReply{status: res.StatusCode, body: data}, nil
	})
}
