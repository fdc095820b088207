// Package config предоставляет загрузку конфигурации приложения.
// Источники применяются слоями: значения по умолчанию, YAML-файл, переменные окружения (в т.ч. из .env).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar переопределяет путь к YAML-файлу конфигурации.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths перечисляет файлы, которые ищутся по порядку, если путь не задан явно.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// Config содержит все параметры конфигурации приложения.
type Config struct {
	Paths         PathsConfig         `koanf:"paths"`
	Model         ModelConfig         `koanf:"model"`
	Aggregate     AggregateConfig     `koanf:"aggregate"`
	Recommend     RecommendConfig     `koanf:"recommend"`
	Elasticsearch ElasticsearchConfig `koanf:"elasticsearch"`
	Postgres      PostgresConfig      `koanf:"postgres"`
	App           AppConfig           `koanf:"app"`
	Log           LogConfig           `koanf:"log"`
}

// PathsConfig содержит пути к входным данным и артефактам модели.
type PathsConfig struct {
	Equipment     string `koanf:"equipment" validate:"required"`     // CSV с парком техники
	Catalog       string `koanf:"catalog" validate:"required"`       // CSV каталога продукции
	Compatibility string `koanf:"compatibility" validate:"required"` // Итоговая таблица совместимости
	Model         string `koanf:"model" validate:"required"`         // Сериализованный лес
	Encoder       string `koanf:"encoder" validate:"required"`       // Сериализованный кодировщик продуктов
}

// ModelConfig содержит гиперпараметры случайного леса.
type ModelConfig struct {
	Trees           int     `koanf:"trees" validate:"min=1"`
	Seed            int64   `koanf:"seed"`
	TestFraction    float64 `koanf:"test_fraction" validate:"gte=0,lt=1"`
	MaxDepth        int     `koanf:"max_depth" validate:"gte=0"` // 0 - без ограничения
	MinSamplesSplit int     `koanf:"min_samples_split" validate:"min=2"`
	Workers         int     `koanf:"workers" validate:"min=1"`
}

// AggregateConfig управляет построением таблицы совместимости.
type AggregateConfig struct {
	Workers int `koanf:"workers" validate:"min=1"` // 1 - последовательная обработка семейств
}

// RecommendConfig управляет выдачей рекомендаций.
type RecommendConfig struct {
	TopN int `koanf:"top_n" validate:"min=1"`
}

// ElasticsearchConfig содержит параметры подключения к Elasticsearch/OpenSearch.
type ElasticsearchConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true"`
	Index   string `koanf:"index" validate:"required_if=Enabled true"`
}

// PostgresConfig содержит параметры подключения к PostgreSQL.
type PostgresConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DB       string `koanf:"db"`
}

// AppConfig содержит параметры HTTP сервера.
type AppConfig struct {
	Port string `koanf:"port" validate:"required,numeric"`
}

// LogConfig содержит параметры логирования.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// DSN собирает строку подключения к PostgreSQL в формате lib/pq.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DB)
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Equipment:     "data/merged_equipment.csv",
			Catalog:       "data/catalogue.csv",
			Compatibility: "data/all_product_compatibilities.csv",
			Model:         "model/train_model.json",
			Encoder:       "model/label_encoder.json",
		},
		Model: ModelConfig{
			Trees:           100,
			Seed:            42,
			TestFraction:    0.2,
			MaxDepth:        0,
			MinSamplesSplit: 2,
			Workers:         4,
		},
		Aggregate: AggregateConfig{Workers: 1},
		Recommend: RecommendConfig{TopN: 10},
		Elasticsearch: ElasticsearchConfig{
			Enabled: false,
			URL:     "http://localhost:9200",
			Index:   "compatibility",
		},
		Postgres: PostgresConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     "5432",
			User:     "vio_user",
			Password: "vio_pass",
			DB:       "vio",
		},
		App: AppConfig{Port: "8080"},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load загружает конфигурацию. Если path пуст, файл ищется через CONFIG_PATH и DefaultConfigPaths;
// отсутствие файла не является ошибкой. Переменные окружения имеют наивысший приоритет.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет конфигурацию по тегам validate.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings связывает переменные окружения с ключами конфигурации.
// Имена ELASTICSEARCH_URL, POSTGRES_* и APP_PORT сохранены для совместимости с развёртываниями.
var envMappings = map[string]string{
	"equipment_path":          "paths.equipment",
	"catalog_path":            "paths.catalog",
	"compatibility_path":      "paths.compatibility",
	"model_path":              "paths.model",
	"encoder_path":            "paths.encoder",
	"model_trees":             "model.trees",
	"model_seed":              "model.seed",
	"model_test_fraction":     "model.test_fraction",
	"model_max_depth":         "model.max_depth",
	"model_min_samples_split": "model.min_samples_split",
	"model_workers":           "model.workers",
	"aggregate_workers":       "aggregate.workers",
	"recommend_top_n":         "recommend.top_n",
	"elasticsearch_enabled":   "elasticsearch.enabled",
	"elasticsearch_url":       "elasticsearch.url",
	"elasticsearch_index":     "elasticsearch.index",
	"postgres_enabled":        "postgres.enabled",
	"postgres_host":           "postgres.host",
	"postgres_port":           "postgres.port",
	"postgres_user":           "postgres.user",
	"postgres_password":       "postgres.password",
	"postgres_db":             "postgres.db",
	"app_port":                "app.port",
	"log_level":               "log.level",
	"log_format":              "log.format",
}

// envTransformFunc возвращает пустую строку для неизвестных переменных, koanf их пропускает.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
