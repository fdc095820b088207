// Package compat строит таблицу совместимости продукции с парком техники:
// для каждого семейства двигателей записи парка соединяются со всеми позициями каталога
// того же семейства, и число единиц техники суммируется по (продукт, семейство, ZIP).
package compat

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/normalize"
)

// Aggregator выполняет поэтапную агрегацию по семействам двигателей.
// Одновременно в памяти находится промежуточное состояние не более чем workers семейств.
type Aggregator struct {
	workers int
	log     *zerolog.Logger
}

// NewAggregator создает агрегатор. workers <= 1 означает последовательную обработку.
func NewAggregator(workers int, log *zerolog.Logger) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Aggregator{workers: workers, log: log}
}

// Families возвращает список семейств для обработки: сначала замкнутый канонический список,
// затем в алфавитном порядке прочие семейства, встречающиеся и в парке, и в каталоге.
// Пустое семейство не является семейством: такие строки не участвуют в соединении.
func Families(equipment []models.EquipmentRecord, catalog []models.CatalogEntry) []string {
	inEquipment := make(map[string]struct{})
	for _, e := range equipment {
		inEquipment[e.EngineFamily] = struct{}{}
	}

	extra := make(map[string]struct{})
	for _, c := range catalog {
		if strings.TrimSpace(c.EngineFamily) == "" {
			continue
		}
		if _, ok := inEquipment[c.EngineFamily]; ok && !normalize.IsCanonical(c.EngineFamily) {
			extra[c.EngineFamily] = struct{}{}
		}
	}

	families := slices.Clone(normalize.Families)
	rest := make([]string, 0, len(extra))
	for f := range extra {
		rest = append(rest, f)
	}
	sort.Strings(rest)

	return append(families, rest...)
}

type productKey struct {
	id   string
	name string
}

// AggregateFamily соединяет записи парка и каталога одного семейства и суммирует FleetSize
// по ключу (ProductID, ProductName, EngineFamily, ZipCode).
//
// Соединение идёт только по семейству, поэтому каждая запись парка образует пару с каждой позицией
// каталога. Сумма по парам раскладывается на множители: для позиции, встречающейся в каталоге
// k раз, и индекса с суммарным парком s результат равен k*s. Декартово произведение не строится.
//
// Строки упорядочены по (ProductID, ProductName, ZipCode). Пустая сторона даёт пустой результат.
func AggregateFamily(family string, equipment []models.EquipmentRecord, catalog []models.CatalogEntry) []models.CompatibilityRow {
	zipTotals := make(map[string]int)
	for _, e := range equipment {
		if e.EngineFamily == family {
			zipTotals[e.ZipCode] += e.FleetSize
		}
	}
	if len(zipTotals) == 0 {
		return nil
	}

	products := make(map[productKey]int)
	for _, c := range catalog {
		if c.EngineFamily == family {
			products[productKey{id: c.ProductID, name: c.ProductName}]++
		}
	}
	if len(products) == 0 {
		return nil
	}

	keys := make([]productKey, 0, len(products))
	for k := range products {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b productKey) int {
		if c := cmp.Compare(a.id, b.id); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	zips := make([]string, 0, len(zipTotals))
	for z := range zipTotals {
		zips = append(zips, z)
	}
	sort.Strings(zips)

	rows := make([]models.CompatibilityRow, 0, len(keys)*len(zips))
	for _, k := range keys {
		multiplicity := products[k]
		for _, z := range zips {
			rows = append(rows, models.CompatibilityRow{
				ProductID:    k.id,
				ProductName:  k.name,
				EngineFamily: family,
				ZipCode:      z,
				FleetSize:    multiplicity * zipTotals[z],
			})
		}
	}

	return rows
}

// Build агрегирует все семейства и возвращает результаты в порядке families.
// Семейства независимы; при workers > 1 они обрабатываются параллельно, порядок результата не меняется.
func (a *Aggregator) Build(ctx context.Context, families []string, equipment []models.EquipmentRecord, catalog []models.CatalogEntry) ([][]models.CompatibilityRow, error) {
	parts := make([][]models.CompatibilityRow, len(families))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, family := range families {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			parts[i] = AggregateFamily(family, equipment, catalog)

			a.log.Debug().
				Str("family", family).
				Int("rows", len(parts[i])).
				Dur("duration", time.Since(start)).
				Msg("family aggregated")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// Merge объединяет результаты семейств в единую таблицу без удаления дубликатов:
// строки разных семейств с одинаковыми ProductID и ZipCode остаются раздельными.
func Merge(parts [][]models.CompatibilityRow) []models.CompatibilityRow {
	total := 0
	for _, p := range parts {
		total += len(p)
	}

	merged := make([]models.CompatibilityRow, 0, total)
	for _, p := range parts {
		merged = append(merged, p...)
	}
	return merged
}

// Products возвращает различные пары (ProductName, ProductID) таблицы в порядке первого появления.
func Products(rows []models.CompatibilityRow) []models.Product {
	seen := make(map[models.Product]struct{})
	var products []models.Product
	for _, r := range rows {
		p := models.Product{Name: r.ProductName, ID: r.ProductID}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		products = append(products, p)
	}
	return products
}
