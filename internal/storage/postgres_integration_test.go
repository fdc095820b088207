//go:build integration_pg
// +build integration_pg

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/akozadaev/go_vio_recommender/internal/models"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "vio",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("host=%s port=%s user=postgres password=postgres dbname=vio sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func TestPostgresStorage_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	ps, err := NewPostgresStorage(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer ps.Close()

	if err := ps.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if err := ps.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	// Повторный вызов не должен падать.
	if err := ps.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	rows := []models.CompatibilityRow{
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "MP8", ZipCode: "33435", FleetSize: 52},
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "MP8", ZipCode: "10001", FleetSize: 3},
		{ProductID: "P2", ProductName: "DPF", EngineFamily: "MP8", ZipCode: "33435", FleetSize: 52},
		{ProductID: "P1", ProductName: "Injector", EngineFamily: "MP7", ZipCode: "33435", FleetSize: 9},
	}
	if err := ps.ReplaceCompatibility(ctx, rows); err != nil {
		t.Fatal(err)
	}
	// Повторная загрузка заменяет, а не дополняет таблицу.
	if err := ps.ReplaceCompatibility(ctx, rows); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_compatibility`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != len(rows) {
		t.Fatalf("table has %d rows, want %d", count, len(rows))
	}

	families, err := ps.GetEngineFamilies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.EngineFamily{
		{Name: "MP7", ProductCount: 1, ZipCount: 1},
		{Name: "MP8", ProductCount: 2, ZipCount: 2},
	}
	if len(families) != len(want) {
		t.Fatalf("families = %+v", families)
	}
	for i := range want {
		if families[i] != want[i] {
			t.Errorf("family %d = %+v, want %+v", i, families[i], want[i])
		}
	}

	run := models.TrainingRun{
		ArtifactID: uuid.NewString(),
		Trees:      100,
		Seed:       42,
		TrainRows:  3,
		TestRows:   1,
		MAE:        1.5,
		RMSE:       2,
		R2:         0.5,
		TrainedAt:  time.Now().UTC(),
	}
	if err := ps.RecordTrainingRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := ps.RecordTrainingRun(ctx, run); err != nil {
		t.Fatalf("duplicate run must be ignored: %v", err)
	}

	var trees int
	if err := ps.db.QueryRowContext(ctx, `SELECT trees FROM training_runs WHERE artifact_id = $1`, run.ArtifactID).Scan(&trees); err != nil {
		t.Fatal(err)
	}
	if trees != 100 {
		t.Fatalf("trees = %d", trees)
	}
}
