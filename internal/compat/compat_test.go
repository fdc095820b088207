package compat

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/normalize"
)

func TestAggregateFamily_SumsFleetPerZip(t *testing.T) {
	equipment := []models.EquipmentRecord{
		{ZipCode: "00001", EngineFamily: "FAM", FleetSize: 3},
		{ZipCode: "00001", EngineFamily: "FAM", FleetSize: 5},
	}
	catalog := []models.CatalogEntry{
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "FAM"},
	}

	got := AggregateFamily("FAM", equipment, catalog)
	want := []models.CompatibilityRow{
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "FAM", ZipCode: "00001", FleetSize: 8},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

// bruteForce строит декартово произведение явно и служит эталоном.
func bruteForce(family string, equipment []models.EquipmentRecord, catalog []models.CatalogEntry) map[models.CompatibilityRow]int {
	out := make(map[models.CompatibilityRow]int)
	for _, e := range equipment {
		if e.EngineFamily != family {
			continue
		}
		for _, c := range catalog {
			if c.EngineFamily != family {
				continue
			}
			key := models.CompatibilityRow{ProductID: c.ProductID, ProductName: c.ProductName, EngineFamily: family, ZipCode: e.ZipCode}
			out[key] += e.FleetSize
		}
	}
	return out
}

func TestAggregateFamily_MatchesCrossJoin(t *testing.T) {
	equipment := []models.EquipmentRecord{
		{ZipCode: "33435", EngineFamily: "MP8", FleetSize: 4},
		{ZipCode: "10001", EngineFamily: "MP8", FleetSize: 1},
		{ZipCode: "33435", EngineFamily: "MP8", FleetSize: 6},
		{ZipCode: "33435", EngineFamily: "MP7", FleetSize: 100},
		{ZipCode: "10001", EngineFamily: "MP8", FleetSize: 0},
	}
	catalog := []models.CatalogEntry{
		{ProductID: "B", ProductName: "NOX Sensor", EngineFamily: "MP8"},
		{ProductID: "A", ProductName: "Injector", EngineFamily: "MP8"},
		{ProductID: "A", ProductName: "Injector", EngineFamily: "MP8"},
		{ProductID: "A", ProductName: "DPF", EngineFamily: "MP8"},
		{ProductID: "C", ProductName: "Injector", EngineFamily: "MP7"},
	}

	got := AggregateFamily("MP8", equipment, catalog)
	want := bruteForce("MP8", equipment, catalog)

	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for _, row := range got {
		key := row
		key.FleetSize = 0
		if want[key] != row.FleetSize {
			t.Errorf("row %+v: fleet %d, want %d", key, row.FleetSize, want[key])
		}
	}

	// Упорядочено по (ProductID, ProductName, ZipCode).
	order := make([]string, len(got))
	for i, r := range got {
		order[i] = r.ProductID + "/" + r.ProductName + "/" + r.ZipCode
	}
	wantOrder := []string{"A/DPF/10001", "A/DPF/33435", "A/Injector/10001", "A/Injector/33435", "B/NOX Sensor/10001", "B/NOX Sensor/33435"}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Fatalf("order = %v, want %v", order, wantOrder)
	}
}

func TestAggregateFamily_EmptySides(t *testing.T) {
	equipment := []models.EquipmentRecord{{ZipCode: "00001", EngineFamily: "MP8", FleetSize: 3}}
	catalog := []models.CatalogEntry{{ProductID: "P1", ProductName: "Injector", EngineFamily: "DD15"}}

	if rows := AggregateFamily("DD15", equipment, catalog); len(rows) != 0 {
		t.Fatalf("no equipment for DD15: got %+v", rows)
	}
	if rows := AggregateFamily("MP8", equipment, catalog); len(rows) != 0 {
		t.Fatalf("no catalog for MP8: got %+v", rows)
	}
	if rows := AggregateFamily("PX-9", nil, nil); len(rows) != 0 {
		t.Fatalf("empty inputs: got %+v", rows)
	}
}

func TestFamilies_CanonicalFirstThenExtras(t *testing.T) {
	equipment := []models.EquipmentRecord{
		{EngineFamily: "X15"}, {EngineFamily: "MP8"}, {EngineFamily: "L9"}, {EngineFamily: "Z1"},
	}
	catalog := []models.CatalogEntry{
		{EngineFamily: "Z1"}, {EngineFamily: "X15"}, {EngineFamily: "ONLY-CATALOG"},
	}

	got := Families(equipment, catalog)
	n := len(normalize.Families)
	if !reflect.DeepEqual(got[:n], normalize.Families) {
		t.Fatalf("canonical prefix mismatch: %v", got[:n])
	}
	if !reflect.DeepEqual(got[n:], []string{"X15", "Z1"}) {
		t.Fatalf("extras = %v", got[n:])
	}
}

func TestBuild_BlankFamilyNotJoined(t *testing.T) {
	equipment := []models.EquipmentRecord{
		{ZipCode: "33435", EngineFamily: "", FleetSize: 4},
		{ZipCode: "10001", EngineFamily: " ", FleetSize: 2},
	}
	catalog := []models.CatalogEntry{
		{ProductID: "P1", ProductName: "Injector", EngineFamily: ""},
		{ProductID: "P2", ProductName: "DPF", EngineFamily: " "},
	}

	families := Families(equipment, catalog)
	if !reflect.DeepEqual(families, normalize.Families) {
		t.Fatalf("families = %v, want only canonical", families)
	}

	parts, err := NewAggregator(1, nil).Build(context.Background(), families, equipment, catalog)
	if err != nil {
		t.Fatal(err)
	}
	if rows := Merge(parts); len(rows) != 0 {
		t.Fatalf("blank engine rows joined: %+v", rows)
	}
}

func TestMerge_KeepsFamiliesDistinct(t *testing.T) {
	equipment := []models.EquipmentRecord{
		{ZipCode: "33435", EngineFamily: "MP8", FleetSize: 2},
		{ZipCode: "33435", EngineFamily: "MP7", FleetSize: 7},
	}
	catalog := []models.CatalogEntry{
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "MP8"},
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "MP7"},
	}

	agg := NewAggregator(1, nil)
	parts, err := agg.Build(context.Background(), Families(equipment, catalog), equipment, catalog)
	if err != nil {
		t.Fatal(err)
	}
	merged := Merge(parts)

	want := []models.CompatibilityRow{
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "MP8", ZipCode: "33435", FleetSize: 2},
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "MP7", ZipCode: "33435", FleetSize: 7},
	}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("got %+v\nwant %+v", merged, want)
	}

	if products := Products(merged); len(products) != 1 || products[0] != (models.Product{Name: "Injector", ID: "P1"}) {
		t.Fatalf("Products = %+v", products)
	}
}

func syntheticData(families, zips, products int) ([]models.EquipmentRecord, []models.CatalogEntry) {
	var equipment []models.EquipmentRecord
	var catalog []models.CatalogEntry
	for f := 0; f < families; f++ {
		family := normalize.Families[f%len(normalize.Families)]
		for z := 0; z < zips; z++ {
			equipment = append(equipment, models.EquipmentRecord{
				ZipCode:      fmt.Sprintf("%05d", z*7+f),
				EngineFamily: family,
				FleetSize:    (z*13 + f) % 17,
			})
		}
		for p := 0; p < products; p++ {
			catalog = append(catalog, models.CatalogEntry{
				ProductID:    fmt.Sprintf("%dEL%03d", f, p),
				ProductName:  fmt.Sprintf("Product %d", p%5),
				EngineFamily: family,
			})
		}
	}
	return equipment, catalog
}

func TestBuild_ParallelMatchesSequential(t *testing.T) {
	equipment, catalog := syntheticData(8, 30, 12)
	families := Families(equipment, catalog)

	seq, err := NewAggregator(1, nil).Build(context.Background(), families, equipment, catalog)
	if err != nil {
		t.Fatal(err)
	}
	par, err := NewAggregator(4, nil).Build(context.Background(), families, equipment, catalog)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(Merge(seq), Merge(par)) {
		t.Fatal("parallel build differs from sequential build")
	}
}

func TestBuild_Cancelled(t *testing.T) {
	equipment, catalog := syntheticData(2, 3, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewAggregator(1, nil).Build(ctx, normalize.Families, equipment, catalog); err == nil {
		t.Fatal("expected context error")
	}
}

func BenchmarkBuild_Sequential(b *testing.B) {
	equipment, catalog := syntheticData(12, 500, 80)
	families := Families(equipment, catalog)
	agg := NewAggregator(1, nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = agg.Build(context.Background(), families, equipment, catalog)
	}
}

func BenchmarkBuild_4Workers(b *testing.B) {
	equipment, catalog := syntheticData(12, 500, 80)
	families := Families(equipment, catalog)
	agg := NewAggregator(4, nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = agg.Build(context.Background(), families, equipment, catalog)
	}
}
