package models

import "time"

// EquipmentRecord представляет строку парка техники: число единиц с данным двигателем в ZIP-коде.
type EquipmentRecord struct {
	ZipCode      string `json:"zip_code"`
	EngineFamily string `json:"engine_family"`
	FleetSize    int    `json:"fleet_size"`
}

// CatalogEntry представляет позицию каталога продукции, совместимую с семейством двигателей.
type CatalogEntry struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	EngineFamily string `json:"engine_family"`
}

// CompatibilityRow представляет агрегированную совместимость продукта с парком в ZIP-коде.
// Ключ строки: (ProductID, ProductName, EngineFamily, ZipCode).
type CompatibilityRow struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	EngineFamily string `json:"engine_family"`
	ZipCode      string `json:"zip_code"`
	FleetSize    int    `json:"fleet_size"`
}

// Product представляет пару (название, номер) из таблицы совместимости.
type Product struct {
	Name string `json:"product_name"`
	ID   string `json:"product_id"`
}

// Recommendation представляет продукт с прогнозом числа совместимых единиц техники (VIO).
type Recommendation struct {
	ProductName        string  `json:"product_name"`
	ProductID          string  `json:"product_id"`
	PredictedFleetSize float64 `json:"predicted_fleet_size"`
}

// RecommendRequest представляет запрос на рекомендацию
type RecommendRequest struct {
	ZipCode string `json:"zip_code" validate:"required"`
	Limit   int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// RecommendResponse представляет ответ с рекомендациями
type RecommendResponse struct {
	ZipCode    string           `json:"zip_code"`
	ArtifactID string           `json:"artifact_id"`
	Products   []Recommendation `json:"products"`
	Total      int              `json:"total"`
}

// TrainingRun описывает обученный артефакт в журнале PostgreSQL.
type TrainingRun struct {
	ArtifactID string    `json:"artifact_id"`
	Trees      int       `json:"trees"`
	Seed       int64     `json:"seed"`
	TrainRows  int       `json:"train_rows"`
	TestRows   int       `json:"test_rows"`
	MAE        float64   `json:"mae"`
	RMSE       float64   `json:"rmse"`
	R2         float64   `json:"r2"`
	TrainedAt  time.Time `json:"trained_at"`
}

// EngineFamily представляет семейство двигателей из справочника PostgreSQL.
type EngineFamily struct {
	Name         string `json:"name"`
	ProductCount int    `json:"product_count"`
	ZipCount     int    `json:"zip_count"`
}
