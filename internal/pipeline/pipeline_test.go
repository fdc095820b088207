package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/akozadaev/go_vio_recommender/internal/config"
	"github.com/akozadaev/go_vio_recommender/internal/dataset"
)

const equipmentCSV = `Zipcode,Engine,Fleet Size
33435,MP8,40
33435,MX13,11
33435,MP8,12
3435,ISX 15L,6
10001,MP7,25
10001,MX13,3
02134,ISX/SIGNATURE,7
`

const catalogCSV = `Dinex Product,Dinex Number,Engine,Notes
Injector,MP8-01,MP8,
DPF,MP8-02,MP8,
NOX Sensor,MP7-01,MP7-355E,
Injector,MP7-02,MP7,
PM sensor,MX-01,MX-13,
EGR Cooler,MX-02,MX13,
Turbo,ISX-01,Cummins ISX,
DOC,ISX-02,ISX,
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.Equipment = filepath.Join(dir, "equipment.csv")
	cfg.Paths.Catalog = filepath.Join(dir, "catalogue.csv")
	cfg.Paths.Compatibility = filepath.Join(dir, "out", "all_product_compatibilities.csv")
	cfg.Paths.Model = filepath.Join(dir, "model", "train_model.json")
	cfg.Paths.Encoder = filepath.Join(dir, "model", "label_encoder.json")
	cfg.Model.Trees = 10
	cfg.Model.Workers = 2

	if err := os.WriteFile(cfg.Paths.Equipment, []byte(equipmentCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Paths.Catalog, []byte(catalogCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuildTable_NormalizesAndPersists(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil)

	rows, err := p.BuildTable(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	persisted, err := dataset.LoadCompatibility(cfg.Paths.Compatibility)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rows, persisted) {
		t.Fatal("persisted table differs from the built table")
	}

	byKey := make(map[string]int)
	for _, r := range rows {
		byKey[r.ProductID+"|"+r.EngineFamily+"|"+r.ZipCode] = r.FleetSize
	}

	tests := []struct {
		key  string
		want int
	}{
		{"MP8-01|MP8|33435", 52},
		{"MP7-01|MP7|10001", 25},
		{"MX-02|MX-13|33435", 11},
		{"ISX-01|Cummins ISX|03435", 6},
		{"ISX-02|Cummins ISX|02134", 7},
	}
	for _, tt := range tests {
		if got, ok := byKey[tt.key]; !ok || got != tt.want {
			t.Errorf("%s = %d (present %v), want %d", tt.key, got, ok, tt.want)
		}
	}

	for _, r := range rows {
		if strings.Contains(r.EngineFamily, "MX13") || r.EngineFamily == "MP7-355E" {
			t.Errorf("raw engine name leaked into table: %+v", r)
		}
		if len(r.ZipCode) != 5 {
			t.Errorf("zip %q is not 5 characters", r.ZipCode)
		}
	}
}

func TestTrainAndSave_ThenLoad(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil)

	trained, _, err := p.TrainAndSave(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := p.LoadBundle()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID != trained.ID {
		t.Fatalf("loaded artifact %s, trained %s", loaded.ID, trained.ID)
	}
	if !reflect.DeepEqual(loaded.Products, trained.Products) {
		t.Fatal("product list differs after reload")
	}

	fresh, err := p.Ranker(trained)
	if err != nil {
		t.Fatal(err)
	}
	reloaded, err := p.Ranker(loaded)
	if err != nil {
		t.Fatal(err)
	}

	want, err := fresh.Recommend("33435")
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Recommend("33435")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reloaded model ranks differently:\n%v\n%v", got, want)
	}
	if len(got) != len(trained.Products) {
		t.Fatalf("got %d rows for %d products", len(got), len(trained.Products))
	}
}

func TestBuildTable_MissingInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.Equipment = filepath.Join(t.TempDir(), "absent.csv")

	if _, err := New(cfg, nil).BuildTable(context.Background()); err == nil {
		t.Fatal("expected error for missing equipment file")
	}
}
