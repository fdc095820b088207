// Package dataset читает входные CSV (парк техники, каталог продукции) и
// читает/пишет итоговую таблицу совместимости.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akozadaev/go_vio_recommender/internal/models"
)

// Колонки файла парка техники.
const (
	ColEquipmentZip       = "Zipcode"
	ColEquipmentEngine    = "Engine"
	ColEquipmentFleetSize = "Fleet Size"
)

// Колонки файла каталога.
const (
	ColCatalogProductName = "Dinex Product"
	ColCatalogProductID   = "Dinex Number"
	ColCatalogEngine      = "Engine"
)

// Колонки таблицы совместимости.
const (
	ColCompatProductID    = "ProductId"
	ColCompatProductName  = "ProductName"
	ColCompatEngineFamily = "EngineFamily"
	ColCompatZip          = "ZipCode"
	ColCompatFleetSize    = "FleetSize"
)

// CompatibilityHeader - заголовок CSV таблицы совместимости.
var CompatibilityHeader = []string{
	ColCompatProductID,
	ColCompatProductName,
	ColCompatEngineFamily,
	ColCompatZip,
	ColCompatFleetSize,
}

// flushEvery - число строк между сбросами буфера csv.Writer.
const flushEvery = 1000

// header сопоставляет имя колонки с её позицией в строке.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	rec, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: missing header")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	h := make(header, len(rec))
	for i, name := range rec {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		h[strings.TrimSpace(name)] = i
	}

	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return h, nil
}

func (h header) get(rec []string, col string) string {
	i := h[col]
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

// ReadEquipment читает строки парка техники. Индекс читается как строка, ведущие нули сохраняются.
// Нормализация значений здесь не выполняется.
func ReadEquipment(r io.Reader) ([]models.EquipmentRecord, error) {
	cr := newReader(r)
	h, err := readHeader(cr, ColEquipmentZip, ColEquipmentEngine, ColEquipmentFleetSize)
	if err != nil {
		return nil, err
	}

	var records []models.EquipmentRecord
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		zip := h.get(rec, ColEquipmentZip)
		if zip == "" {
			return nil, fmt.Errorf("line %d: empty %s", line, ColEquipmentZip)
		}

		fleet, err := parseFleetSize(h.get(rec, ColEquipmentFleetSize))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		records = append(records, models.EquipmentRecord{
			ZipCode:      zip,
			EngineFamily: h.get(rec, ColEquipmentEngine),
			FleetSize:    fleet,
		})
	}

	return records, nil
}

// ReadCatalog читает позиции каталога. Лишние колонки игнорируются.
func ReadCatalog(r io.Reader) ([]models.CatalogEntry, error) {
	cr := newReader(r)
	h, err := readHeader(cr, ColCatalogProductName, ColCatalogProductID, ColCatalogEngine)
	if err != nil {
		return nil, err
	}

	var entries []models.CatalogEntry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		entries = append(entries, models.CatalogEntry{
			ProductID:    h.get(rec, ColCatalogProductID),
			ProductName:  h.get(rec, ColCatalogProductName),
			EngineFamily: h.get(rec, ColCatalogEngine),
		})
	}

	return entries, nil
}

// ReadCompatibility читает ранее сохранённую таблицу совместимости.
func ReadCompatibility(r io.Reader) ([]models.CompatibilityRow, error) {
	cr := newReader(r)
	h, err := readHeader(cr, CompatibilityHeader...)
	if err != nil {
		return nil, err
	}

	var rows []models.CompatibilityRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		fleet, err := parseFleetSize(h.get(rec, ColCompatFleetSize))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rows = append(rows, models.CompatibilityRow{
			ProductID:    h.get(rec, ColCompatProductID),
			ProductName:  h.get(rec, ColCompatProductName),
			EngineFamily: h.get(rec, ColCompatEngineFamily),
			ZipCode:      h.get(rec, ColCompatZip),
			FleetSize:    fleet,
		})
	}

	return rows, nil
}

// WriteCompatibility пишет таблицу совместимости в CSV с заголовком CompatibilityHeader.
func WriteCompatibility(w io.Writer, rows []models.CompatibilityRow) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CompatibilityHeader); err != nil {
		return err
	}

	for i, row := range rows {
		if err := writer.Write([]string{
			row.ProductID,
			row.ProductName,
			row.EngineFamily,
			row.ZipCode,
			strconv.Itoa(row.FleetSize),
		}); err != nil {
			return err
		}

		if (i+1)%flushEvery == 0 {
			writer.Flush()
		}
	}

	writer.Flush()
	return writer.Error()
}

// parseFleetSize принимает целые и дробные значения. Дробная часть отбрасывается, поэтому
// суммы по дробным значениям меньше, чем при суммировании исходных чисел: число единиц техники
// считается целым. Пустое значение считается нулём, значения вне диапазона int отклоняются.
func parseFleetSize(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fleet size %q: %w", s, err)
	}
	if math.IsNaN(f) || f >= math.MaxInt || f < math.MinInt {
		return 0, fmt.Errorf("fleet size %q out of range", s)
	}
	return int(f), nil
}

// LoadEquipment читает файл парка техники.
func LoadEquipment(path string) ([]models.EquipmentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open equipment file: %w", err)
	}
	defer f.Close()

	records, err := ReadEquipment(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read equipment file %s: %w", path, err)
	}
	return records, nil
}

// LoadCatalog читает файл каталога продукции.
func LoadCatalog(path string) ([]models.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	entries, err := ReadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return entries, nil
}

// LoadCompatibility читает файл таблицы совместимости.
func LoadCompatibility(path string) ([]models.CompatibilityRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open compatibility file: %w", err)
	}
	defer f.Close()

	rows, err := ReadCompatibility(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read compatibility file %s: %w", path, err)
	}
	return rows, nil
}

// SaveCompatibility записывает таблицу совместимости в файл, создавая каталоги при необходимости.
// Запись идёт во временный файл, который затем переименовывается.
func SaveCompatibility(path string, rows []models.CompatibilityRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriterSize(tmp, 1024*1024)
	if err := WriteCompatibility(bw, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write compatibility table: %w", err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush compatibility table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move compatibility table into place: %w", err)
	}
	return nil
}
