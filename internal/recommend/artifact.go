package recommend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/akozadaev/go_vio_recommender/internal/encoder"
	"github.com/akozadaev/go_vio_recommender/internal/forest"
	"github.com/akozadaev/go_vio_recommender/internal/models"
)

// ErrArtifactMismatch возвращается, если модель и кодировщик сохранены разными обучениями.
var ErrArtifactMismatch = errors.New("model and encoder artifacts belong to different training runs")

type modelFile struct {
	ArtifactID string         `json:"artifact_id"`
	TrainedAt  time.Time      `json:"trained_at"`
	Seed       int64          `json:"seed"`
	TrainRows  int            `json:"train_rows"`
	TestRows   int            `json:"test_rows"`
	Scores     forest.Scores  `json:"scores"`
	Forest     *forest.Forest `json:"forest"`
}

type encoderFile struct {
	ArtifactID string                `json:"artifact_id"`
	Encoder    *encoder.LabelEncoder `json:"encoder"`
}

// SaveArtifacts сохраняет лес и кодировщик в отдельные JSON-файлы с общим идентификатором обучения.
func SaveArtifacts(b *Bundle, modelPath, encoderPath string) error {
	mf := modelFile{
		ArtifactID: b.ID,
		TrainedAt:  b.TrainedAt,
		Seed:       b.Seed,
		TrainRows:  b.TrainRows,
		TestRows:   b.TestRows,
		Scores:     b.Scores,
		Forest:     b.Forest,
	}
	if err := writeJSON(modelPath, mf); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	ef := encoderFile{ArtifactID: b.ID, Encoder: b.Encoder}
	if err := writeJSON(encoderPath, ef); err != nil {
		return fmt.Errorf("failed to save encoder: %w", err)
	}
	return nil
}

// LoadArtifacts загружает лес и кодировщик и собирает модель со списком продуктов products.
func LoadArtifacts(modelPath, encoderPath string, products []models.Product) (*Bundle, error) {
	var mf modelFile
	if err := readJSON(modelPath, &mf); err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if mf.Forest == nil {
		return nil, fmt.Errorf("model file %s has no forest", modelPath)
	}
	if err := mf.Forest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", modelPath, err)
	}

	var ef encoderFile
	if err := readJSON(encoderPath, &ef); err != nil {
		return nil, fmt.Errorf("failed to load encoder: %w", err)
	}
	if ef.Encoder == nil {
		return nil, fmt.Errorf("encoder file %s has no classes", encoderPath)
	}

	if mf.ArtifactID != ef.ArtifactID {
		return nil, fmt.Errorf("%w: model %s, encoder %s", ErrArtifactMismatch, mf.ArtifactID, ef.ArtifactID)
	}

	return &Bundle{
		ID:        mf.ArtifactID,
		TrainedAt: mf.TrainedAt,
		Encoder:   ef.Encoder,
		Forest:    mf.Forest,
		Products:  products,
		Seed:      mf.Seed,
		TrainRows: mf.TrainRows,
		TestRows:  mf.TestRows,
		Scores:    mf.Scores,
	}, nil
}

func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
