package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/akozadaev/go_vio_recommender/internal/models"
)

// Schema создает таблицы совместимости и журнала обучений.
const Schema = `
CREATE TABLE IF NOT EXISTS product_compatibility (
    product_id    TEXT    NOT NULL,
    product_name  TEXT    NOT NULL,
    engine_family TEXT    NOT NULL,
    zip_code      TEXT    NOT NULL,
    fleet_size    INTEGER NOT NULL,
    PRIMARY KEY (product_id, product_name, engine_family, zip_code)
);

CREATE INDEX IF NOT EXISTS idx_product_compatibility_zip ON product_compatibility (zip_code);

CREATE TABLE IF NOT EXISTS training_runs (
    artifact_id UUID PRIMARY KEY,
    trees       INTEGER          NOT NULL,
    seed        BIGINT           NOT NULL,
    train_rows  INTEGER          NOT NULL,
    test_rows   INTEGER          NOT NULL,
    mae         DOUBLE PRECISION NOT NULL,
    rmse        DOUBLE PRECISION NOT NULL,
    r2          DOUBLE PRECISION NOT NULL,
    trained_at  TIMESTAMPTZ      NOT NULL
);
`

// PostgresStorage хранит таблицу совместимости и журнал обучений в PostgreSQL.
type PostgresStorage struct {
	db *sql.DB // Подключение к базе данных PostgreSQL
}

// NewPostgresStorage создает новый экземпляр PostgresStorage и устанавливает подключение к БД.
// DSN должен быть в формате: "host=... port=... user=... password=... dbname=... sslmode=..."
func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

// Close закрывает подключение к базе данных PostgreSQL.
func (ps *PostgresStorage) Close() error {
	return ps.db.Close()
}

// Ping проверяет доступность базы.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

// EnsureSchema создает таблицы, если их нет.
func (ps *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := ps.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ReplaceCompatibility заменяет содержимое product_compatibility строками rows.
// Загрузка идёт через COPY в одной транзакции.
func (ps *PostgresStorage) ReplaceCompatibility(ctx context.Context, rows []models.CompatibilityRow) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE product_compatibility`); err != nil {
		return fmt.Errorf("failed to truncate compatibility: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("product_compatibility",
		"product_id", "product_name", "engine_family", "zip_code", "fleet_size"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ProductID, r.ProductName, r.EngineFamily, r.ZipCode, r.FleetSize); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit compatibility: %w", err)
	}
	return nil
}

// RecordTrainingRun сохраняет описание обучения. Повторная запись того же артефакта игнорируется.
func (ps *PostgresStorage) RecordTrainingRun(ctx context.Context, run models.TrainingRun) error {
	query := `
		INSERT INTO training_runs (artifact_id, trees, seed, train_rows, test_rows, mae, rmse, r2, trained_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (artifact_id) DO NOTHING`

	_, err := ps.db.ExecContext(ctx, query,
		run.ArtifactID, run.Trees, run.Seed, run.TrainRows, run.TestRows, run.MAE, run.RMSE, run.R2, run.TrainedAt)
	if err != nil {
		return fmt.Errorf("failed to record training run: %w", err)
	}
	return nil
}

// GetEngineFamilies возвращает семейства двигателей с числом продуктов и ZIP-кодов.
// Результаты отсортированы по имени.
func (ps *PostgresStorage) GetEngineFamilies(ctx context.Context) ([]models.EngineFamily, error) {
	query := `
		SELECT engine_family, COUNT(DISTINCT product_id), COUNT(DISTINCT zip_code)
		FROM product_compatibility
		GROUP BY engine_family
		ORDER BY engine_family`

	rows, err := ps.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query engine families: %w", err)
	}
	defer rows.Close()

	var families []models.EngineFamily
	for rows.Next() {
		var f models.EngineFamily
		if err := rows.Scan(&f.Name, &f.ProductCount, &f.ZipCount); err != nil {
			return nil, fmt.Errorf("failed to scan engine family: %w", err)
		}
		families = append(families, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return families, nil
}
